package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/llm"
	"google.golang.org/genai"
)

// DefaultChatModel is used when no model is configured
const DefaultChatModel = "gemini-2.5-flash"

// EmptyResponseText replaces a completion that carries no text
const EmptyResponseText = "Unable to generate response."

// GeminiOptions configures the Gemini completion backend
type GeminiOptions struct {
	APIKey  string
	ModelID string
	// VertexProjectID switches the client to the Vertex AI backend
	VertexProjectID string
	VertexRegion    string
}

// GeminiSDKHandler implements llm.CompletionBackend on the official Google
// Gen AI SDK.
type GeminiSDKHandler struct {
	options GeminiOptions
	client  *genai.Client
}

// NewGeminiSDKHandler creates the client eagerly so configuration errors
// surface at startup.
func NewGeminiSDKHandler(ctx context.Context, options GeminiOptions) (*GeminiSDKHandler, error) {
	if options.ModelID == "" {
		options.ModelID = DefaultChatModel
	}
	client, err := genai.NewClient(ctx, clientConfig(options))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiSDKHandler{options: options, client: client}, nil
}

// Client exposes the underlying SDK client so image generation can share it
func (h *GeminiSDKHandler) Client() *genai.Client {
	return h.client
}

// Complete implements llm.CompletionBackend
func (h *GeminiSDKHandler) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := h.client.Models.GenerateContent(ctx, h.options.ModelID, buildContents(req.Turns), buildConfig(req))
	if err != nil {
		return nil, classifyError(err)
	}
	return convertResponse(resp), nil
}

func clientConfig(options GeminiOptions) *genai.ClientConfig {
	if options.VertexProjectID != "" {
		return &genai.ClientConfig{
			Project:  options.VertexProjectID,
			Location: options.VertexRegion,
			Backend:  genai.BackendVertexAI,
		}
	}
	return &genai.ClientConfig{
		APIKey:  options.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
}

func buildContents(turns []llm.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var parts []*genai.Part
		for _, p := range turn.Parts {
			if p.InlineData != nil {
				parts = append(parts, &genai.Part{InlineData: &genai.Blob{
					MIMEType: p.InlineData.MIMEType,
					Data:     p.InlineData.Data,
				}})
				continue
			}
			parts = append(parts, &genai.Part{Text: p.Text})
		}

		role := "user"
		if turn.Role == domain.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func buildConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}
	if !req.Tools {
		return config
	}

	config.Tools = []*genai.Tool{
		{GoogleSearch: &genai.GoogleSearch{}},
		{GoogleMaps: &genai.GoogleMaps{}},
	}
	if req.Location != nil {
		config.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(req.Location.Latitude),
					Longitude: genai.Ptr(req.Location.Longitude),
				},
			},
		}
	}
	return config
}

func convertResponse(resp *genai.GenerateContentResponse) *llm.CompletionResponse {
	out := &llm.CompletionResponse{}
	if resp == nil {
		out.Text = EmptyResponseText
		return out
	}
	out.Text = resp.Text()
	if out.Text == "" {
		out.Text = EmptyResponseText
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		out.GroundingChunks = convertGrounding(resp.Candidates[0].GroundingMetadata.GroundingChunks)
	}
	return out
}

func convertGrounding(chunks []*genai.GroundingChunk) []domain.GroundingChunk {
	var out []domain.GroundingChunk
	for _, c := range chunks {
		if c == nil {
			continue
		}
		switch {
		case c.Web != nil:
			out = append(out, domain.GroundingChunk{Web: &domain.WebSource{URI: c.Web.URI, Title: c.Web.Title}})
		case c.Maps != nil:
			out = append(out, domain.GroundingChunk{Maps: &domain.MapsSource{URI: c.Maps.URI, Title: c.Maps.Title}})
		}
	}
	return out
}

// classifyError lifts SDK API errors into llm.StatusError so callers can
// detect a refused tool grant.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Err: err, StatusCode: apiErr.Code}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &llm.StatusError{Err: err, StatusCode: apiErrPtr.Code}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.StatusError{Err: err, StatusCode: http.StatusGatewayTimeout}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}
