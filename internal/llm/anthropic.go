package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient creates a new Anthropic client. SDK retries are disabled:
// a failed call fails the stage.
func NewAnthropicClient(config *Config) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the anthropic provider")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     config.GetModel(),
		maxTokens: maxTokens,
	}, nil
}

// Generate sends the system prompt and one user message and returns the text blocks joined.
func (c *AnthropicClient) Generate(ctx context.Context, systemInstruction, userContent string, temperature float64) (string, error) {
	if err := checkMessages(systemInstruction, userContent); err != nil {
		return "", err
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)),
		},
		Temperature: anthropic.Float(temperature),
	})
	if err != nil {
		return "", classifyAnthropicError(ctx, c.model, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Model returns the model identifier
func (c *AnthropicClient) Model() string {
	return c.model
}

// Close is a no-op
func (c *AnthropicClient) Close() error {
	return nil
}

func classifyAnthropicError(ctx context.Context, model string, err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return transportError(ctx, "anthropic", err)
	}

	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return &UnavailableError{Message: fmt.Sprintf("model %q is not available", model), Cause: err}
	case http.StatusServiceUnavailable, 529: // 529: overloaded
		return &UnavailableError{Message: "anthropic is unavailable", Cause: err}
	default:
		return &InferenceError{Message: "anthropic request failed", StatusCode: apiErr.StatusCode, Cause: err}
	}
}
