package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
)

// ErrToolPermissionDenied marks a backend refusal caused by the grounding
// tools rather than the request itself.
var ErrToolPermissionDenied = errors.New("tool permission denied")

// StatusError carries the HTTP status of a failed backend call
type StatusError struct {
	Err        error
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrToolPermissionDenied) match a 403
func (e *StatusError) Is(target error) bool {
	return target == ErrToolPermissionDenied && e.StatusCode == http.StatusForbidden
}

// GetStatusCode extracts the status code from err, or 0
func GetStatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsToolPermissionDenied reports whether err is the distinguished tool
// refusal: ErrToolPermissionDenied itself or a StatusError carrying 403.
func IsToolPermissionDenied(err error) bool {
	return err != nil && errors.Is(err, ErrToolPermissionDenied)
}

// CompleteWithToolFallback runs req with tools enabled. If the backend
// rejects the tool grant, the same request is retried exactly once with
// tools disabled. Backends ignore Location when tools are off. Every other
// failure is returned unchanged.
func CompleteWithToolFallback(ctx context.Context, backend CompletionBackend, req CompletionRequest, logger *log.Logger) (*CompletionResponse, error) {
	req.Tools = true
	resp, err := backend.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !IsToolPermissionDenied(err) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if logger != nil {
		logger.Warn("Grounding tools permission denied, retrying without tools", "error", err)
	}
	req.Tools = false
	resp, err = backend.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to complete without tools: %w", err)
	}
	return resp, nil
}
