package llm

import (
	"context"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// Part is one piece of turn content. Exactly one of Text or InlineData is
// meaningful.
type Part struct {
	Text       string
	InlineData *InlineData
}

// InlineData is binary content sent alongside text
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Turn is one role-tagged entry of the conversation sent to the model
type Turn struct {
	Role  domain.Role
	Parts []Part
}

// CompletionRequest is a full completion call
type CompletionRequest struct {
	Turns             []Turn
	SystemInstruction string
	// Tools enables the search and maps grounding tools
	Tools bool
	// Location is an optional retrieval hint for the maps tool
	Location *domain.Location
}

// CompletionResponse is the model's answer
type CompletionResponse struct {
	Text            string
	GroundingChunks []domain.GroundingChunk
}

// CompletionBackend runs completions. Implementations must report a
// rejected tool grant with an error matching ErrToolPermissionDenied.
type CompletionBackend interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionFunc adapts a function to CompletionBackend
type CompletionFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete implements CompletionBackend
func (f CompletionFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}
