package storage

import (
	"regexp"
	"strings"
	"time"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultPreviewColor is used when the answer carries no valid theme
const DefaultPreviewColor = "#D68C6E"

// Fallback app titles
const (
	DefaultHTMLAppTitle = "Spark 灵动微应用"
	Default3DAppTitle   = "Spark 3D 空间视图"
)

var (
	htmlBlockRe = regexp.MustCompile("(?s)```html(.*?)```")
	headingRe   = regexp.MustCompile(`(?m)^##\s+(.+)$`)
	htmlTitleRe = regexp.MustCompile(`<title>(.*?)</title>`)
)

// AppFromMessage extracts the interactive artifact embedded in msg. The
// second result is false when msg has no complete html block.
func AppFromMessage(msg domain.Message, createdAt time.Time) (domain.AppItem, bool) {
	m := htmlBlockRe.FindStringSubmatch(msg.Text)
	if m == nil {
		return domain.AppItem{}, false
	}
	code := strings.TrimSpace(m[1])
	is3D := strings.Contains(code, domain.ModelViewerMarker)

	app := domain.AppItem{
		ID:           msg.ID,
		Title:        appTitle(msg.Text, code, is3D),
		Code:         code,
		Type:         domain.AppTypeHTML,
		CreatedAt:    createdAt,
		PreviewColor: previewColor(msg.ThemeColor),
	}
	if is3D {
		app.Type = domain.AppType3D
	}
	return app, true
}

func appTitle(text, code string, is3D bool) string {
	if h := headingRe.FindStringSubmatch(text); h != nil && h[1] != "" {
		return strings.ReplaceAll(strings.TrimSpace(h[1]), "**", "")
	}
	if t := htmlTitleRe.FindStringSubmatch(code); t != nil && t[1] != "" && t[1] != "Document" {
		return t[1]
	}
	if is3D {
		return Default3DAppTitle
	}
	return DefaultHTMLAppTitle
}

func previewColor(theme string) string {
	if theme == "" {
		return DefaultPreviewColor
	}
	if _, err := colorful.Hex(theme); err != nil {
		return DefaultPreviewColor
	}
	return theme
}
