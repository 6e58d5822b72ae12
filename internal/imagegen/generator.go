// Package imagegen resolves image prompts into displayable URIs. A primary
// backend is tried once; any failure falls back to a URL-addressed service.
package imagegen

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// Asset is the outcome of one generation
type Asset struct {
	// URI is a data URI or remote URL. Empty means the slot must be omitted.
	URI string
	// Fallback is true when URI came from the fallback service
	Fallback bool
	// Err is the primary backend failure that triggered the fallback, if any
	Err error
}

// Generator produces image assets
type Generator struct {
	backend      Backend
	fallback     Fallback
	maxSourceDim int
	logger       *log.Logger
}

// Option customizes a Generator
type Option func(*Generator)

// WithLogger sets the logger used for absorbed failures
func WithLogger(logger *log.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMaxSourceDimension bounds the uploaded image size sent for editing.
// Zero disables resizing.
func WithMaxSourceDimension(px int) Option {
	return func(g *Generator) {
		g.maxSourceDim = px
	}
}

// NewGenerator creates a generator. backend may be nil, in which case every
// request is served by the fallback. A nil fallback uses the default service.
func NewGenerator(backend Backend, fallback Fallback, opts ...Option) *Generator {
	if fallback == nil {
		fallback = NewURLFallback("")
	}
	g := &Generator{
		backend:      backend,
		fallback:     fallback,
		maxSourceDim: DefaultMaxSourceDimension,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate resolves prompt to an asset. sourceImage, when non-empty, is the
// data URI of an uploaded image and selects edit mode. Generate never
// returns an error; failures are reported on the Asset.
func (g *Generator) Generate(ctx context.Context, prompt string, settings domain.ImageSettings, sourceImage string) Asset {
	aspect := settings.AspectRatio
	if aspect == "" {
		aspect = domain.AspectSquare
	}
	settings.AspectRatio = aspect

	img, err := g.primary(ctx, prompt, settings, sourceImage)
	if err == nil {
		return Asset{URI: img.DataURI()}
	}

	g.logger.Warn("Image backend failed, using fallback", "prompt", truncate(prompt, 60), "aspect", aspect, "error", err)
	w, h := Dimensions(aspect)
	uri, ferr := g.fallback.URL(prompt, w, h)
	if ferr != nil {
		g.logger.Error("Image fallback failed", "error", ferr)
		return Asset{Err: err}
	}
	return Asset{URI: uri, Fallback: true, Err: err}
}

// URI is Generate reduced to the displayable string
func (g *Generator) URI(ctx context.Context, prompt string, settings domain.ImageSettings, sourceImage string) string {
	return g.Generate(ctx, prompt, settings, sourceImage).URI
}

func (g *Generator) primary(ctx context.Context, prompt string, settings domain.ImageSettings, sourceImage string) (*Image, error) {
	if g.backend == nil {
		return nil, fmt.Errorf("no image backend configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		img *Image
		err error
	)
	if sourceImage != "" {
		src, perr := ParseDataURI(sourceImage)
		if perr != nil {
			return nil, fmt.Errorf("failed to read source image: %w", perr)
		}
		if norm, nerr := Normalize(src, g.maxSourceDim); nerr == nil {
			src = norm
		} else {
			g.logger.Debug("Source image left as uploaded", "error", nerr)
		}
		img, err = g.backend.EditImage(ctx, prompt, settings, src)
	} else {
		img, err = g.backend.TextToImage(ctx, prompt, settings)
	}
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrNoImage
	}
	if img.MIMEType == "" {
		img.MIMEType = "image/png"
	}
	return img, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
