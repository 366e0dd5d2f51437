package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts analysis providers.
type Client interface {
	Analyze(ctx context.Context, req Request) (json.RawMessage, error)
}

// Document is one extracted source text sent to the provider.
type Document struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Request is the canonical analysis request.
type Request struct {
	Documents    []Document `json:"documents"`
	ModuleType   string     `json:"moduleType"`
	StudentGrade string     `json:"studentGrade,omitempty"`
	StudentName  string     `json:"studentName,omitempty"`
}

// Response is the wire shape every provider returns.
type Response struct {
	Status         string `json:"status"`
	MarkdownReport string `json:"markdownReport"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("analysis provider not configured")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Analyze returns ErrNotImplemented.
func (PlaceholderClient) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	_ = ctx
	_ = req
	return nil, ErrNotImplemented
}

// WrapMarkdown packages a provider's markdown output in the Response shape.
// An empty report is passed through and left to validation to reject.
func WrapMarkdown(markdown string) (json.RawMessage, error) {
	return json.Marshal(ResponseFromMarkdown(markdown))
}
