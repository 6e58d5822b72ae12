package imagegen

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// DefaultFallbackBaseURL is the deterministic prompt-addressed image service
const DefaultFallbackBaseURL = "https://image.pollinations.ai/prompt/"

// Fallback builds a displayable image URL from a prompt and pixel size
type Fallback interface {
	URL(prompt string, width, height int) (string, error)
}

// URLFallback addresses images purely by URL-encoding the prompt
type URLFallback struct {
	BaseURL string
}

// NewURLFallback returns a fallback rooted at baseURL, or the default service
func NewURLFallback(baseURL string) *URLFallback {
	if baseURL == "" {
		baseURL = DefaultFallbackBaseURL
	}
	return &URLFallback{BaseURL: baseURL}
}

// URL implements Fallback
func (f *URLFallback) URL(prompt string, width, height int) (string, error) {
	if f.BaseURL == "" {
		return "", fmt.Errorf("fallback base URL is not configured")
	}
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid fallback dimensions %dx%d", width, height)
	}
	return fmt.Sprintf("%s%s?width=%d&height=%d&nologo=true",
		f.BaseURL, EncodeURIComponent(prompt), width, height), nil
}

// Dimensions maps an aspect ratio to the fallback pixel size
func Dimensions(aspectRatio string) (int, int) {
	if aspectRatio == domain.AspectWide {
		return 1280, 720
	}
	return 1024, 1024
}

var uriComponentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes everything except A-Z a-z 0-9 - _ . ! ~ * ' ( )
func EncodeURIComponent(s string) string {
	return uriComponentUnescapes.Replace(url.QueryEscape(s))
}
