package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestBuildContents(t *testing.T) {
	turns := []llm.Turn{
		{Role: domain.RoleUser, Parts: []llm.Part{
			{Text: "what is this?"},
			{InlineData: &llm.InlineData{MIMEType: "image/png", Data: []byte{1, 2}}},
		}},
		{Role: domain.RoleModel, Parts: []llm.Part{{Text: "a cat"}}},
	}

	contents := buildContents(turns)
	require.Len(t, contents, 2)

	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "what is this?", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte{1, 2}, contents[0].Parts[1].InlineData.Data)

	assert.Equal(t, "model", contents[1].Role)
}

func TestBuildConfig_WithTools(t *testing.T) {
	cfg := buildConfig(llm.CompletionRequest{
		SystemInstruction: "be spark",
		Tools:             true,
		Location:          &domain.Location{Latitude: 31.2, Longitude: 121.5},
	})

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be spark", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 2)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	assert.NotNil(t, cfg.Tools[1].GoogleMaps)

	require.NotNil(t, cfg.ToolConfig)
	latLng := cfg.ToolConfig.RetrievalConfig.LatLng
	assert.InDelta(t, 31.2, *latLng.Latitude, 1e-9)
	assert.InDelta(t, 121.5, *latLng.Longitude, 1e-9)
}

func TestBuildConfig_WithoutToolsIgnoresLocation(t *testing.T) {
	cfg := buildConfig(llm.CompletionRequest{
		Location: &domain.Location{Latitude: 1, Longitude: 2},
	})
	assert.Nil(t, cfg.SystemInstruction)
	assert.Empty(t, cfg.Tools)
	assert.Nil(t, cfg.ToolConfig)
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "## Title"}}},
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://w", Title: "W"}},
					{Maps: &genai.GroundingChunkMaps{URI: "https://m", Title: "M"}},
					nil,
					{},
				},
			},
		}},
	}

	out := convertResponse(resp)
	assert.Equal(t, "## Title", out.Text)
	require.Len(t, out.GroundingChunks, 2)
	assert.Equal(t, "https://w", out.GroundingChunks[0].Web.URI)
	assert.Nil(t, out.GroundingChunks[0].Maps)
	assert.Equal(t, "M", out.GroundingChunks[1].Maps.Title)
}

func TestConvertResponse_EmptyText(t *testing.T) {
	assert.Equal(t, EmptyResponseText, convertResponse(nil).Text)
	assert.Equal(t, EmptyResponseText, convertResponse(&genai.GenerateContentResponse{}).Text)
}

func TestClassifyError(t *testing.T) {
	denied := classifyError(fmt.Errorf("call: %w", genai.APIError{Code: http.StatusForbidden, Message: "denied"}))
	assert.True(t, llm.IsToolPermissionDenied(denied))
	assert.Equal(t, http.StatusForbidden, llm.GetStatusCode(denied))

	server := classifyError(genai.APIError{Code: http.StatusInternalServerError, Message: "oops"})
	assert.False(t, errors.Is(server, llm.ErrToolPermissionDenied))
	assert.Equal(t, http.StatusInternalServerError, llm.GetStatusCode(server))

	timeout := classifyError(context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, llm.GetStatusCode(timeout))

	plain := classifyError(errors.New("connection reset"))
	assert.Equal(t, 0, llm.GetStatusCode(plain))
	assert.False(t, llm.IsToolPermissionDenied(plain))
}
