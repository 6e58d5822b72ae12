package markdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

func TestPrepare(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "## Title\nBody",
			expected: "## Title\nBody",
		},
		{
			name:     "inline data image becomes alt text",
			input:    "![Cover Image](data:image/png;base64,AAAA)\nText",
			expected: "*[Cover Image]*\nText",
		},
		{
			name:     "remote image kept",
			input:    "![Cover Image](https://image.example/x.png)",
			expected: "![Cover Image](https://image.example/x.png)",
		},
		{
			name:     "3d marker dropped",
			input:    "<!-- 3D_MODEL_VIEWER -->\nPalace",
			expected: "\nPalace",
		},
		{
			name: "comic block becomes caption list",
			input: "Story\n```comic-strip\n" +
				`[{"image":"data:image/png;base64,AA","caption":"a cat"},{"image":"https://img.example/2","caption":"a dog"}]` +
				"\n```\n",
			expected: "Story\n1. a cat\n2. a dog ([panel](https://img.example/2))\n\n",
		},
		{
			name:     "malformed comic block left alone",
			input:    "```comic-strip\nnot json\n```",
			expected: "```comic-strip\nnot json\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Prepare(tt.input))
		})
	}
}

func TestSummarizeApps(t *testing.T) {
	in := "## App\n```html\n<div>\n<p>x</p>\n</div>\n```\n```go\nfmt.Println()\n```"
	out := SummarizeApps(in)
	assert.Contains(t, out, "interactive app (3 lines of HTML)")
	assert.NotContains(t, out, "<div>")
	assert.Contains(t, out, "```go\nfmt.Println()\n```")
}

func TestExtractCodeBlocks(t *testing.T) {
	content := "Intro\n```javascript\nfunction hello() {}\n```\n```\nplain\n```"
	blocks := ExtractCodeBlocks(content)
	require.Len(t, blocks, 2)
	assert.Equal(t, "javascript", blocks[0].Language)
	assert.Equal(t, "function hello() {}", blocks[0].Code)
	assert.Equal(t, "text", blocks[1].Language)
	assert.Equal(t, "block_1", blocks[1].ID)
}

func TestSources(t *testing.T) {
	assert.Empty(t, Sources(nil))
	out := Sources([]domain.GroundingChunk{
		{Web: &domain.WebSource{URI: "https://a.example", Title: "A"}},
		{Maps: &domain.MapsSource{URI: "https://maps.example/b", Title: "B"}},
		{},
	})
	assert.Equal(t, "Sources:\n  [web] A https://a.example\n  [map] B https://maps.example/b\n", out)
}

func TestFormatMessage(t *testing.T) {
	r, err := NewRenderer(&RendererConfig{Width: 60, Style: "notty"})
	require.NoError(t, err)
	mp := NewMessageProcessorWith(r)

	out, err := mp.FormatMessage(domain.Message{
		Role:         domain.RoleModel,
		Text:         "## Morning Tea\nA quiet ritual.",
		ThemeColor:   "#88B596",
		Timestamp:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		IsBookmarked: true,
		GroundingChunks: []domain.GroundingChunk{
			{Web: &domain.WebSource{URI: "https://tea.example", Title: "Tea"}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Spark · ")
	assert.Contains(t, out, "★")
	assert.Contains(t, out, "Morning Tea")
	assert.Contains(t, out, "A quiet ritual.")
	assert.Contains(t, out, "[web] Tea https://tea.example")
}

func TestRenderer_EmptyInput(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	out, err := r.Render("")
	require.NoError(t, err)
	assert.Empty(t, out)
}
