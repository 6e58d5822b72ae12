package response

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ComicFence labels the fenced block that carries comic panels
const ComicFence = "comic-strip"

// Panel fallback size when a panel asset comes back empty
const (
	panelFallbackWidth  = 1024
	panelFallbackHeight = 576
)

// Panel is one comic frame
type Panel struct {
	Image   string `json:"image"`
	Caption string `json:"caption"`
}

// resolveComic generates every panel concurrently and serializes them in
// prompt order.
func (a *Assembler) resolveComic(ctx context.Context, prompts []string, settings domain.ImageSettings) (string, error) {
	panels := make([]Panel, len(prompts))

	var g errgroup.Group
	if a.comicConcurrency > 0 {
		g.SetLimit(a.comicConcurrency)
	}
	for i, prompt := range prompts {
		g.Go(func() error {
			asset := a.images.Generate(ctx, prompt, settings, "")
			uri := asset.URI
			if uri == "" {
				fallback, err := a.panelFallback.URL(prompt, panelFallbackWidth, panelFallbackHeight)
				if err != nil {
					a.logger.Warn("Comic panel has no image", "panel", i, "error", err)
				}
				uri = fallback
			}
			panels[i] = Panel{Image: uri, Caption: prompt}
			return nil
		})
	}
	// panels never fail individually
	_ = g.Wait()

	return comicBlock(panels)
}

func comicBlock(panels []Panel) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(panels); err != nil {
		return "", fmt.Errorf("failed to encode comic panels: %w", err)
	}
	return "\n```" + ComicFence + "\n" + strings.TrimRight(buf.String(), "\n") + "\n```\n", nil
}

// ParseComicBlock decodes the JSON body of a comic-strip fenced block
func ParseComicBlock(body string) ([]Panel, error) {
	var panels []Panel
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &panels); err != nil {
		return nil, fmt.Errorf("failed to decode comic block: %w", err)
	}
	return panels, nil
}
