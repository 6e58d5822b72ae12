// Package domain contains the chat data model shared by the response pipeline,
// the orchestrator and the persistence layer.
package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// AppType distinguishes plain micro-apps from 3D viewers
type AppType string

const (
	AppTypeHTML AppType = "html"
	AppType3D   AppType = "3d"
)

// Provider is a mock login provider
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// ImageSize is the requested output quality class for generated images
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"
)

// Aspect ratios understood by the image backends
const (
	AspectWide   = "16:9"
	AspectSquare = "1:1"
)

// Markers recognised inside model output
const (
	HTMLFence         = "```html"
	ModelViewerMarker = "<!-- 3D_MODEL_VIEWER -->"
)

// ImageSettings carries per-request image generation options
type ImageSettings struct {
	AspectRatio string    `json:"aspectRatio,omitempty"`
	Size        ImageSize `json:"size,omitempty"`
}

// WithAspect returns a copy of the settings with the aspect ratio replaced
func (s ImageSettings) WithAspect(aspect string) ImageSettings {
	s.AspectRatio = aspect
	return s
}

// Location is a best-effort geographic hint passed to grounding tools
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WebSource is a web citation
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// MapsSource is a map citation
type MapsSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingChunk is one citation attached to a model answer. Exactly one of
// Web or Maps is set.
type GroundingChunk struct {
	Web  *WebSource  `json:"web,omitempty"`
	Maps *MapsSource `json:"maps,omitempty"`
}

// Message is a single chat turn
type Message struct {
	ID              string           `json:"id"`
	Role            Role             `json:"role"`
	Text            string           `json:"text"`
	Image           string           `json:"image,omitempty"` // data URI of an uploaded image
	Timestamp       time.Time        `json:"timestamp"`
	IsLoading       bool             `json:"isLoading,omitempty"`
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
	ThemeColor      string           `json:"themeColor,omitempty"`
	IsBookmarked    bool             `json:"isBookmarked,omitempty"`
}

// HasHTMLApp reports whether the message text embeds an interactive artifact
func (m Message) HasHTMLApp() bool {
	return strings.Contains(m.Text, HTMLFence)
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	c := m
	if m.GroundingChunks != nil {
		c.GroundingChunks = make([]GroundingChunk, len(m.GroundingChunks))
		for i, g := range m.GroundingChunks {
			if g.Web != nil {
				w := *g.Web
				c.GroundingChunks[i].Web = &w
			}
			if g.Maps != nil {
				mp := *g.Maps
				c.GroundingChunks[i].Maps = &mp
			}
		}
	}
	return c
}

// CloneMessages deep-copies a message sequence
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Session is a conversation. Title and PreviewText are derived on save.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PreviewText string    `json:"previewText"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Messages    []Message `json:"messages"`
}

// FindMessage returns the index of the message with the given id, or -1
func (s Session) FindMessage(id string) int {
	for i, m := range s.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Bookmark is a snapshot of a model answer together with the question that
// produced it.
type Bookmark struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	Question  string    `json:"question"`
	Answer    Message   `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// AppItem is an interactive artifact extracted from a bookmarked answer. Its
// ID is the originating message id.
type AppItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Code         string    `json:"code"`
	Type         AppType   `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
	PreviewColor string    `json:"previewColor"`
}

// User is the mock-authenticated profile
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Avatar   string   `json:"avatar"`
	Provider Provider `json:"provider"`
}
