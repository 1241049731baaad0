package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Client is an abstraction over inference providers
type Client interface {
	// Generate sends a system instruction and a single user message with the given
	// sampling temperature and returns the generated text, trimmed of surrounding whitespace.
	Generate(ctx context.Context, systemInstruction, userContent string, temperature float64) (string, error)
	// Model returns the model identifier the client sends requests to
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new inference client based on configuration
func NewClient(ctx context.Context, config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderOllama, "":
		return NewOllamaClient(config)
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderAnthropic:
		return NewAnthropicClient(config)
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}
}

// checkMessages rejects empty message parts before any request is made.
func checkMessages(systemInstruction, userContent string) error {
	if strings.TrimSpace(systemInstruction) == "" {
		return &InferenceError{Message: "system instruction is empty"}
	}
	if strings.TrimSpace(userContent) == "" {
		return &InferenceError{Message: "user content is empty"}
	}
	return nil
}

// transportError classifies an error that occurred before any response arrived.
// Timeouts, cancellations and network failures all mean the backend is unavailable.
func transportError(ctx context.Context, backend string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &UnavailableError{Message: fmt.Sprintf("%s did not answer", backend), Cause: ctxErr}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UnavailableError{Message: fmt.Sprintf("%s did not answer", backend), Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &UnavailableError{Message: fmt.Sprintf("cannot reach %s", backend), Cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &UnavailableError{Message: fmt.Sprintf("cannot reach %s", backend), Cause: err}
	}
	return &UnavailableError{Message: fmt.Sprintf("request to %s failed", backend), Cause: err}
}
