package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Theme(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTheme string
		wantText  string
	}{
		{
			name:      "anchored theme is stripped with trailing whitespace",
			input:     "[THEME:#AE88B5]\n\n## Title\nBody",
			wantTheme: "#AE88B5",
			wantText:  "## Title\nBody",
		},
		{
			name:      "theme directly followed by content",
			input:     "[THEME:#88B596]## Title\nBody",
			wantTheme: "#88B596",
			wantText:  "## Title\nBody",
		},
		{
			name:     "theme not at start is ignored",
			input:    "Intro [THEME:#AE88B5] text",
			wantText: "Intro [THEME:#AE88B5] text",
		},
		{
			name:     "short colour is not a theme",
			input:    "[THEME:#FFF] text",
			wantText: "[THEME:#FFF] text",
		},
		{
			name:     "non hex colour is not a theme",
			input:    "[THEME:#GG0000] text",
			wantText: "[THEME:#GG0000] text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.input)
			assert.Equal(t, tt.wantTheme, ex.Theme)
			assert.Equal(t, tt.wantText, ex.CleanedText)
		})
	}
}

func TestExtract_NoDirectivesLeavesTextUntouched(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"## Heading\n\n| a | b |\n| - | - |\n| 1 | 2 |",
		"a [link](http://example.com) and [COVER_IMAGE_PROMPT without colon]",
		"[GENERATE_IMAGE:\nnext line]",
		"```go\nfmt.Println(\"[x]\")\n```",
	}
	for _, in := range inputs {
		ex := Extract(in)
		assert.Equal(t, in, ex.CleanedText, "input %q", in)
		assert.Empty(t, ex.Theme)
		assert.Empty(t, ex.Directives)
	}
}

func TestParse_PromptDirectives(t *testing.T) {
	text := "## T\n[COVER_IMAGE_PROMPT: a misty lake]\nbody [GENERATE_IMAGE: a red fox] end"
	ds := Parse(text)
	require.Len(t, ds, 2)

	assert.Equal(t, KindCover, ds[0].Kind)
	assert.Equal(t, "a misty lake", ds[0].Payload)
	assert.Equal(t, "[COVER_IMAGE_PROMPT: a misty lake]", text[ds[0].Start:ds[0].End])

	assert.Equal(t, KindGenerateImage, ds[1].Kind)
	assert.Equal(t, "a red fox", ds[1].Payload)
	assert.Equal(t, ds[1].Raw, text[ds[1].Start:ds[1].End])
}

func TestParse_FirstOccurrenceOnly(t *testing.T) {
	text := "[GENERATE_IMAGE: one] and [GENERATE_IMAGE: two]"
	ds := Parse(text)
	require.Len(t, ds, 1)
	assert.Equal(t, "one", ds[0].Payload)

	ex := Extract(text)
	assert.Equal(t, " and [GENERATE_IMAGE: two]", ex.CleanedText)
}

func TestParse_PromptMustCloseOnSameLine(t *testing.T) {
	text := "[COVER_IMAGE_PROMPT: broken\n] then [COVER_IMAGE_PROMPT: ok]"
	ds := Parse(text)
	require.Len(t, ds, 1)
	assert.Equal(t, "ok", ds[0].Payload)
}

func TestExtract_CoverSuppressedByHTML(t *testing.T) {
	text := "## App\n[COVER_IMAGE_PROMPT: neon city]\n```html\n<div></div>\n```"
	ex := Extract(text)
	assert.True(t, ex.CoverSuppressed)
	assert.Empty(t, ex.CoverPrompt)
	assert.Equal(t, "## App\n\n```html\n<div></div>\n```", ex.CleanedText)
}

func TestExtract_CoverSuppressedBy3DMarker(t *testing.T) {
	text := "[COVER_IMAGE_PROMPT: palace]\n<!-- 3D_MODEL_VIEWER -->"
	ex := Extract(text)
	assert.True(t, ex.CoverSuppressed)
	assert.Equal(t, "\n<!-- 3D_MODEL_VIEWER -->", ex.CleanedText)
}

func TestExtract_Comic(t *testing.T) {
	text := `Story: [GENERATE_COMIC: ["a","b","c"]] done`
	ex := Extract(text)
	require.NoError(t, ex.ComicErr)
	assert.Equal(t, []string{"a", "b", "c"}, ex.ComicPrompts)
	assert.Equal(t, "Story:  done", ex.CleanedText)
}

func TestExtract_ComicWithWhitespaceBeforePayload(t *testing.T) {
	ds := Parse("[GENERATE_COMIC:\n  [\"x\", \"y\"]]")
	require.Len(t, ds, 1)
	assert.Equal(t, []string{"x", "y"}, ds[0].Prompts)
}

func TestExtract_MalformedComicIsLeftInPlace(t *testing.T) {
	tests := []string{
		`[GENERATE_COMIC: ["a", invalid json]]`,
		`[GENERATE_COMIC: ["a", 3]]`,
	}
	for _, text := range tests {
		ex := Extract(text)
		assert.Error(t, ex.ComicErr, text)
		assert.Nil(t, ex.ComicPrompts)
		assert.Equal(t, text, ex.CleanedText)
	}
}

func TestParse_AllKindsInResolutionOrder(t *testing.T) {
	text := `[THEME:#749FAE]` +
		`[GENERATE_COMIC: ["p1"]] ` +
		`[GENERATE_IMAGE: g] ` +
		`[COVER_IMAGE_PROMPT: c]`
	ds := Parse(text)
	require.Len(t, ds, 4)
	assert.Equal(t, []Kind{KindTheme, KindCover, KindGenerateImage, KindComic},
		[]Kind{ds[0].Kind, ds[1].Kind, ds[2].Kind, ds[3].Kind})
}

func TestSplice_ReplacesExactSpans(t *testing.T) {
	text := "A [GENERATE_IMAGE: x] B [COVER_IMAGE_PROMPT: y] C"
	ds := Parse(text)
	require.Len(t, ds, 2)

	out := Splice(text, []Replacement{
		{Directive: ds[0], Text: "<cover>"},
		{Directive: ds[1], Text: "<image>"},
	})
	assert.Equal(t, "A <image> B <cover> C", out)
}
