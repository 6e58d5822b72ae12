// Package response turns raw model output into a render-ready document by
// resolving directive tags into images and structured blocks.
package response

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/spark/internal/directive"
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/imagegen"
)

// Markdown alt texts for spliced images
const (
	CoverAlt     = "Cover Image"
	GeneratedAlt = "Generated Image"
)

// ImageSource resolves a prompt to an asset. *imagegen.Generator satisfies it.
type ImageSource interface {
	Generate(ctx context.Context, prompt string, settings domain.ImageSettings, sourceImage string) imagegen.Asset
}

// Input is one raw completion to assemble
type Input struct {
	Text            string
	GroundingChunks []domain.GroundingChunk
	// SourceImage is the turn's uploaded image as a data URI, used by
	// GENERATE_IMAGE for editing.
	SourceImage string
	Settings    domain.ImageSettings
}

// Diagnostic records an absorbed failure while resolving a directive
type Diagnostic struct {
	Kind    directive.Kind
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s: %s: %v", d.Kind, d.Message, d.Err)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Processed is the assembled document
type Processed struct {
	Text            string
	ThemeColor      string
	GroundingChunks []domain.GroundingChunk
	Diagnostics     []Diagnostic
}

// Assembler resolves directives in a fixed order: theme, cover,
// generate-image, comic.
type Assembler struct {
	images           ImageSource
	panelFallback    imagegen.Fallback
	comicConcurrency int
	logger           *log.Logger
}

// Option customizes an Assembler
type Option func(*Assembler)

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithPanelFallback sets the fallback used for comic panels whose asset came
// back empty.
func WithPanelFallback(f imagegen.Fallback) Option {
	return func(a *Assembler) {
		if f != nil {
			a.panelFallback = f
		}
	}
}

// WithComicConcurrency caps parallel panel generations. Zero means all
// panels run at once.
func WithComicConcurrency(n int) Option {
	return func(a *Assembler) {
		a.comicConcurrency = n
	}
}

// NewAssembler creates an assembler backed by images
func NewAssembler(images ImageSource, opts ...Option) *Assembler {
	a := &Assembler{
		images:        images,
		panelFallback: imagegen.NewURLFallback(""),
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble resolves every directive in in.Text. Text outside recognised
// directive spans is never modified. Assemble does not fail; absorbed
// problems are listed in Processed.Diagnostics.
func (a *Assembler) Assemble(ctx context.Context, in Input) Processed {
	out := Processed{GroundingChunks: in.GroundingChunks}
	suppressCover := directive.SuppressesCover(in.Text)

	var repl []directive.Replacement
	for _, d := range directive.Parse(in.Text) {
		switch d.Kind {
		case directive.KindTheme:
			out.ThemeColor = d.Payload
			repl = append(repl, directive.Replacement{Directive: d})

		case directive.KindCover:
			if suppressCover {
				repl = append(repl, directive.Replacement{Directive: d})
				continue
			}
			text, diag := a.resolveImage(ctx, d, CoverAlt, in.Settings.WithAspect(domain.AspectWide), "")
			out.addDiagnostic(diag)
			repl = append(repl, directive.Replacement{Directive: d, Text: text})

		case directive.KindGenerateImage:
			text, diag := a.resolveImage(ctx, d, GeneratedAlt, in.Settings.WithAspect(domain.AspectSquare), in.SourceImage)
			out.addDiagnostic(diag)
			repl = append(repl, directive.Replacement{Directive: d, Text: text})

		case directive.KindComic:
			if !d.Valid() {
				a.logger.Error("Failed to parse comic prompts", "error", d.Err)
				out.addDiagnostic(&Diagnostic{Kind: d.Kind, Message: "payload left in place", Err: d.Err})
				continue
			}
			block, err := a.resolveComic(ctx, d.Prompts, in.Settings.WithAspect(domain.AspectWide))
			if err != nil {
				out.addDiagnostic(&Diagnostic{Kind: d.Kind, Message: "comic block not rendered", Err: err})
				continue
			}
			repl = append(repl, directive.Replacement{Directive: d, Text: block})
		}
	}

	out.Text = directive.Splice(in.Text, repl)
	return out
}

func (a *Assembler) resolveImage(ctx context.Context, d directive.Directive, alt string, settings domain.ImageSettings, source string) (string, *Diagnostic) {
	if d.Payload == "" {
		return "", &Diagnostic{Kind: d.Kind, Message: "empty prompt, tag stripped"}
	}
	asset := a.images.Generate(ctx, d.Payload, settings, source)
	if asset.URI == "" {
		return "", &Diagnostic{Kind: d.Kind, Message: "no image available, slot omitted", Err: asset.Err}
	}
	var diag *Diagnostic
	if asset.Fallback {
		diag = &Diagnostic{Kind: d.Kind, Message: "served by fallback", Err: asset.Err}
	}
	return imageMarkdown(alt, asset.URI), diag
}

func (p *Processed) addDiagnostic(d *Diagnostic) {
	if d != nil {
		p.Diagnostics = append(p.Diagnostics, *d)
	}
}

func imageMarkdown(alt, uri string) string {
	return fmt.Sprintf("![%s](%s)", alt, uri)
}
