package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparkTeachesDirectiveTags(t *testing.T) {
	p := Spark()
	for _, tag := range []string{"[THEME:#RRGGBB]", "[COVER_IMAGE_PROMPT:", "[GENERATE_IMAGE:", "[GENERATE_COMIC:", "<!-- 3D_MODEL_VIEWER -->", "```html"} {
		assert.Contains(t, p, tag)
	}
}

func TestSystemInstructionWithoutContext(t *testing.T) {
	assert.Equal(t, Spark(), SystemInstruction(t.TempDir(), nil))
	assert.Equal(t, Spark(), SystemInstruction(t.TempDir(), []string{"missing.md"}))
}

func TestSystemInstructionAppendsContextFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.md"), []byte("Prefer short sentences."), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "tone.md"), []byte("Stay warm."), 0o644))

	got := SystemInstruction(dir, []string{"style.md", "guides/", "style.md"})
	assert.True(t, strings.HasPrefix(got, Spark()))
	assert.Contains(t, got, "Prefer short sentences.")
	assert.Contains(t, got, "Stay warm.")
	assert.Equal(t, 1, strings.Count(got, "Prefer short sentences."))
}

func TestProcessFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.md")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", maxContextFileSize+50)), 0o644))
	out := processFile(path)
	assert.Contains(t, out, "(truncated)")
	assert.Contains(t, out, "[file truncated]")
}
