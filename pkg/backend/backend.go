// Package backend defines the generation backend boundary of the pipeline
// and its implementations: OpenAI/Azure OpenAI, Anthropic, and the
// decorators and fixtures that wrap them.
package backend

import (
	"context"
	"strings"
)

// Image is one piece of visual context: an http(s) URL or a data URI.
type Image struct {
	URL string `json:"url" yaml:"url"`
}

// IsDataURI reports whether the image is carried inline.
func (i Image) IsDataURI() bool {
	return strings.HasPrefix(strings.ToLower(i.URL), "data:")
}

// Request is one structured generation call.
type Request struct {
	// Stage names the pipeline stage making the call (shell, interactions,
	// feedback, widgets).
	Stage string
	// SchemaName and Schema describe the required output shape.
	SchemaName string
	Schema     map[string]any
	System     string
	User       string
	Images     []Image
}

// Backend generates structured JSON for a request. An empty response is
// returned as empty bytes with a nil error; judging it is the caller's job.
type Backend interface {
	Generate(ctx context.Context, req Request) ([]byte, error)

	// ModelName returns the deployment/model name for provenance tracking.
	ModelName() string
}

// Func adapts a function to Backend. It is mostly useful in tests.
type Func func(ctx context.Context, req Request) ([]byte, error)

// Generate implements Backend.
func (f Func) Generate(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// ModelName implements Backend.
func (f Func) ModelName() string { return "func" }

// splitDataURI returns the media type and base64 payload of a base64 data
// URI. ok is false for anything else.
func splitDataURI(u string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(u, "data:")
	if !found {
		return "", "", false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(meta, ";base64")
	if !found {
		return "", "", false
	}
	return mediaType, data, true
}
