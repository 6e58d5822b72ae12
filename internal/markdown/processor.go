package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// Role labels shown above each message
const (
	userLabel  = "You"
	modelLabel = "Spark"
)

// fallbackAccent colours headers of answers without a theme
const fallbackAccent = "#749FAE"

// MessageProcessor formats chat messages for the terminal
type MessageProcessor struct {
	renderer *Renderer
}

// NewMessageProcessor creates a processor with the chat renderer
func NewMessageProcessor() (*MessageProcessor, error) {
	renderer, err := NewChatRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create chat renderer: %w", err)
	}
	return &MessageProcessor{renderer: renderer}, nil
}

// NewMessageProcessorWith uses the given renderer
func NewMessageProcessorWith(r *Renderer) *MessageProcessor {
	return &MessageProcessor{renderer: r}
}

// FormatMessage renders one message: a header coloured by the answer's
// theme, the rendered body and the citation list.
func (mp *MessageProcessor) FormatMessage(msg domain.Message) (string, error) {
	var b strings.Builder
	b.WriteString(header(msg))
	b.WriteString("\n")

	body := SummarizeApps(msg.Text)
	if msg.Image != "" {
		body = "*[attached image]*\n\n" + body
	}
	rendered, err := mp.renderer.Render(body)
	if err != nil {
		// fall back to the raw text
		rendered = body + "\n"
	}
	b.WriteString(rendered)

	if sources := Sources(msg.GroundingChunks); sources != "" {
		b.WriteString(sources)
	}
	return b.String(), nil
}

func header(msg domain.Message) string {
	label := userLabel
	style := lipgloss.NewStyle().Bold(true)
	if msg.Role == domain.RoleModel {
		label = modelLabel
		accent := msg.ThemeColor
		if accent == "" {
			accent = fallbackAccent
		}
		style = style.Foreground(lipgloss.Color(accent))
	}
	line := label
	if !msg.Timestamp.IsZero() {
		line += " · " + msg.Timestamp.Local().Format("2006-01-02 15:04")
	}
	if msg.IsBookmarked {
		line += " ★"
	}
	return style.Render(line)
}

// Sources lists citations, one per line, or returns ""
func Sources(chunks []domain.GroundingChunk) string {
	var lines []string
	for _, c := range chunks {
		switch {
		case c.Web != nil:
			lines = append(lines, fmt.Sprintf("  [web] %s %s", c.Web.Title, c.Web.URI))
		case c.Maps != nil:
			lines = append(lines, fmt.Sprintf("  [map] %s %s", c.Maps.Title, c.Maps.URI))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Sources:\n" + strings.Join(lines, "\n") + "\n"
}

// CodeBlock represents an extracted code block
type CodeBlock struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

var codeBlockRegex = regexp.MustCompile("```(\\w*)\\n([\\s\\S]*?)```")

// ExtractCodeBlocks extracts fenced code blocks from markdown content
func ExtractCodeBlocks(content string) []CodeBlock {
	var blocks []CodeBlock

	matches := codeBlockRegex.FindAllStringSubmatch(content, -1)
	for i, match := range matches {
		language := match[1]
		if language == "" {
			language = "text"
		}
		blocks = append(blocks, CodeBlock{
			ID:       fmt.Sprintf("block_%d", i),
			Language: language,
			Code:     strings.TrimSpace(match[2]),
		})
	}
	return blocks
}

// SummarizeApps replaces embedded HTML apps with a one-line note, since a
// terminal cannot run them.
func SummarizeApps(content string) string {
	return codeBlockRegex.ReplaceAllStringFunc(content, func(block string) string {
		m := codeBlockRegex.FindStringSubmatch(block)
		if m[1] != "html" {
			return block
		}
		lines := strings.Count(strings.TrimSpace(m[2]), "\n") + 1
		return fmt.Sprintf("> interactive app (%d lines of HTML), bookmark to save it as an app", lines)
	})
}
