package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/response"
)

// RendererConfig holds configuration for markdown rendering
type RendererConfig struct {
	Width int
	// Style is a glamour standard style name; empty selects automatically
	Style string
}

// DefaultConfig returns a default renderer configuration
func DefaultConfig() *RendererConfig {
	return &RendererConfig{
		Width: 80,
	}
}

// ChatConfig returns a configuration optimized for chat answers
func ChatConfig() *RendererConfig {
	return &RendererConfig{
		Width: 100,
	}
}

// Renderer wraps glamour for Spark documents
type Renderer struct {
	glamourRenderer *glamour.TermRenderer
	config          *RendererConfig
}

// NewRenderer creates a new markdown renderer with the given configuration
func NewRenderer(config *RendererConfig) (*Renderer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	styleOpt := glamour.WithAutoStyle()
	if config.Style != "" {
		styleOpt = glamour.WithStandardStyle(config.Style)
	}
	glamourRenderer, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(config.Width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create glamour renderer: %w", err)
	}

	return &Renderer{
		glamourRenderer: glamourRenderer,
		config:          config,
	}, nil
}

// NewChatRenderer creates a renderer optimized for chat answers
func NewChatRenderer() (*Renderer, error) {
	return NewRenderer(ChatConfig())
}

// Render renders an assembled document to styled terminal output
func (r *Renderer) Render(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}

	rendered, err := r.glamourRenderer.Render(Prepare(markdown))
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return collapseBlankLines(rendered), nil
}

var (
	comicBlockRe   = regexp.MustCompile("(?s)```" + response.ComicFence + "\\n(.*?)\\n```")
	inlineImageRe  = regexp.MustCompile(`!\[([^\]]*)\]\((data:[^)]*)\)`)
	trailingSpaces = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Prepare rewrites constructs a terminal cannot show: comic-strip blocks
// become a numbered caption list, inline data-URI images become their alt
// text and the 3D viewer marker is dropped.
func Prepare(doc string) string {
	doc = comicBlockRe.ReplaceAllStringFunc(doc, func(block string) string {
		m := comicBlockRe.FindStringSubmatch(block)
		panels, err := response.ParseComicBlock(m[1])
		if err != nil {
			return block
		}
		return comicList(panels)
	})
	doc = inlineImageRe.ReplaceAllString(doc, "*[$1]*")
	doc = strings.ReplaceAll(doc, domain.ModelViewerMarker, "")
	return trailingSpaces.ReplaceAllString(doc, "")
}

func comicList(panels []response.Panel) string {
	var b strings.Builder
	for i, p := range panels {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Caption)
		if p.Image != "" && !strings.HasPrefix(p.Image, "data:") {
			fmt.Fprintf(&b, " ([panel](%s))", p.Image)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// collapseBlankLines allows at most one consecutive blank line
func collapseBlankLines(rendered string) string {
	lines := strings.Split(rendered, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
