package events

import (
	"time"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// EventType identifies the type of event
type EventType string

// Core event types
const (
	// Turn lifecycle
	TurnStarted   EventType = "turn.started"
	TurnCompleted EventType = "turn.completed"
	TurnFailed    EventType = "turn.failed"
	// TurnDiscarded fires when a turn finishes after its session stopped
	// being the active one.
	TurnDiscarded EventType = "turn.discarded"

	// Session events
	SessionSaved     EventType = "session.saved"
	SessionActivated EventType = "session.activated"
	SessionDeleted   EventType = "session.deleted"

	// Library events
	BookmarkToggled EventType = "bookmark.toggled"
	UserChanged     EventType = "user.changed"

	// StoreChanged reports a namespace rewritten by another process
	StoreChanged EventType = "store.changed"
)

// Event is one published occurrence
type Event[T any] struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   T         `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
}

// Header is the payload-independent part of an event, used for filtering
type Header struct {
	ID        string
	Type      EventType
	SessionID string
}

// Header returns the event's routing fields
func (e Event[T]) Header() Header {
	return Header{ID: e.ID, Type: e.Type, SessionID: e.SessionID}
}

// Notice is the payload carried by every Spark event
type Notice struct {
	SessionID string          `json:"sessionId,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Detail    string          `json:"detail,omitempty"`
}

// Publisher defines the interface for publishing events
type Publisher[T any] interface {
	Publish(eventType EventType, payload T, opts ...PublishOption)
}

// EventFilter selects events by their header
type EventFilter func(Header) bool

// PublishOption customizes a published event
type PublishOption func(*PublishOptions)

// PublishOptions contains options for publishing events
type PublishOptions struct {
	SessionID string
}

// WithSessionID tags the event with the session it concerns
func WithSessionID(sessionID string) PublishOption {
	return func(opts *PublishOptions) {
		opts.SessionID = sessionID
	}
}

// FilterByType accepts events of the given types
func FilterByType(eventTypes ...EventType) EventFilter {
	want := make(map[EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		want[t] = true
	}
	return func(h Header) bool {
		return want[h.Type]
	}
}

// FilterBySessionID accepts events tagged with sessionID
func FilterBySessionID(sessionID string) EventFilter {
	return func(h Header) bool {
		return h.SessionID == sessionID
	}
}
