package storage

import (
	"testing"
	"time"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAppFromMessage(t *testing.T) {
	now := time.Unix(100, 0)
	tests := []struct {
		name      string
		text      string
		theme     string
		wantOK    bool
		wantTitle string
		wantType  domain.AppType
		wantColor string
	}{
		{
			name:   "no html block",
			text:   "plain answer",
			wantOK: false,
		},
		{
			name:   "unterminated block",
			text:   "```html\n<div>",
			wantOK: false,
		},
		{
			name:      "heading title",
			text:      "## Snake Game\n```html\n<canvas></canvas>\n```",
			theme:     "#88B596",
			wantOK:    true,
			wantTitle: "Snake Game",
			wantType:  domain.AppTypeHTML,
			wantColor: "#88B596",
		},
		{
			name:      "html title fallback",
			text:      "Here you go\n```html\n<title>Weather</title>\n```",
			wantOK:    true,
			wantTitle: "Weather",
			wantType:  domain.AppTypeHTML,
			wantColor: DefaultPreviewColor,
		},
		{
			name:      "document title ignored",
			text:      "```html\n<title>Document</title>\n```",
			wantOK:    true,
			wantTitle: DefaultHTMLAppTitle,
			wantType:  domain.AppTypeHTML,
			wantColor: DefaultPreviewColor,
		},
		{
			name:      "3d viewer",
			text:      "```html\n<!-- 3D_MODEL_VIEWER -->\n<script></script>\n```",
			theme:     "not-a-colour",
			wantOK:    true,
			wantTitle: Default3DAppTitle,
			wantType:  domain.AppType3D,
			wantColor: DefaultPreviewColor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, ok := AppFromMessage(domain.Message{ID: "m1", Text: tt.text, ThemeColor: tt.theme}, now)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, "m1", app.ID)
			assert.Equal(t, tt.wantTitle, app.Title)
			assert.Equal(t, tt.wantType, app.Type)
			assert.Equal(t, tt.wantColor, app.PreviewColor)
			assert.Equal(t, now, app.CreatedAt)
		})
	}
}
