package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"assessment-backend/internal/llm"
	"assessment-backend/internal/shared/telemetry"
)

// DefaultModel is used when LLM_MODEL is unset.
const DefaultModel = "claude-sonnet-4-5"

const maxTokens = 8192

// Messager is the slice of the SDK the client needs.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client implements llm.Client on the Anthropic Messages API.
type Client struct {
	messages Messager
	model    string
}

// NewClient builds a client backed by the SDK.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewClientWithMessager(&c.Messages, model), nil
}

// NewClientWithMessager builds a client around any Messager.
func NewClientWithMessager(m Messager, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{messages: m, model: model}
}

// Analyze sends the documents as one user turn and wraps the markdown reply.
func (c *Client) Analyze(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	resp, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		System:      []anthropic.TextBlockParam{{Text: llm.SystemPrompt(req.ModuleType)}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(llm.UserPrompt(req)))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("anthropic error: http status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":       "anthropic",
		"model":          c.model,
		"prompt_version": llm.PromptVersion,
		"input_tokens":   resp.Usage.InputTokens,
		"output_tokens":  resp.Usage.OutputTokens,
	})
	return llm.WrapMarkdown(strings.TrimSpace(sb.String()))
}

var _ llm.Client = (*Client)(nil)
