package imagegen

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// Default model identifiers
const (
	DefaultTextToImageModel = "imagen-3.0-generate-001"
	DefaultEditModel        = "gemini-2.5-flash-image"
)

// ErrNoImage is returned when a backend call succeeds but yields no image
var ErrNoImage = errors.New("backend returned no image")

// Backend produces images from prompts. settings carries the aspect ratio
// and the output size class.
type Backend interface {
	// TextToImage renders a new image from the prompt alone
	TextToImage(ctx context.Context, prompt string, settings domain.ImageSettings) (*Image, error)
	// EditImage transforms source according to the prompt
	EditImage(ctx context.Context, prompt string, settings domain.ImageSettings, source *Image) (*Image, error)
}

// GenAIBackend implements Backend on the Gemini API
type GenAIBackend struct {
	client     *genai.Client
	imageModel string
	editModel  string
	outputMIME string
}

// GenAIOption customizes a GenAIBackend
type GenAIOption func(*GenAIBackend)

// WithImageModel overrides the text-to-image model
func WithImageModel(model string) GenAIOption {
	return func(b *GenAIBackend) {
		if model != "" {
			b.imageModel = model
		}
	}
}

// WithEditModel overrides the image editing model
func WithEditModel(model string) GenAIOption {
	return func(b *GenAIBackend) {
		if model != "" {
			b.editModel = model
		}
	}
}

// NewGenAIBackendFromClient wraps an existing client
func NewGenAIBackendFromClient(client *genai.Client, opts ...GenAIOption) *GenAIBackend {
	b := &GenAIBackend{
		client:     client,
		imageModel: DefaultTextToImageModel,
		editModel:  DefaultEditModel,
		outputMIME: "image/jpeg",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TextToImage implements Backend
func (b *GenAIBackend) TextToImage(ctx context.Context, prompt string, settings domain.ImageSettings) (*Image, error) {
	resp, err := b.client.Models.GenerateImages(ctx, b.imageModel, prompt, imagesConfig(settings, b.outputMIME))
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, ErrNoImage
	}
	img := resp.GeneratedImages[0].Image
	if img == nil || len(img.ImageBytes) == 0 {
		return nil, ErrNoImage
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = b.outputMIME
	}
	return &Image{MIMEType: mimeType, Data: img.ImageBytes}, nil
}

// EditImage implements Backend
func (b *GenAIBackend) EditImage(ctx context.Context, prompt string, settings domain.ImageSettings, source *Image) (*Image, error) {
	if source == nil {
		return nil, fmt.Errorf("failed to edit image: no source image")
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: source.MIMEType, Data: source.Data}},
			{Text: prompt},
		},
	}}
	resp, err := b.client.Models.GenerateContent(ctx, b.editModel, contents, editConfig(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to edit image: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &Image{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
		}
	}
	return nil, ErrNoImage
}

func imagesConfig(settings domain.ImageSettings, outputMIME string) *genai.GenerateImagesConfig {
	return &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    settings.AspectRatio,
		ImageSize:      string(settings.Size),
		OutputMIMEType: outputMIME,
	}
}

func editConfig(settings domain.ImageSettings) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: settings.AspectRatio,
			ImageSize:   string(settings.Size),
		},
	}
}
