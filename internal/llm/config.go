// Package llm provides the inference client used by every pipeline stage.
// A client is built from an explicit Config; there is no process-wide client or model.
package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// Provider represents an inference backend
type Provider string

// Provider constants define supported inference backends
const (
	// ProviderOllama is a local Ollama server (default)
	ProviderOllama Provider = "ollama"
	// ProviderGemini is the Google Gemini API
	ProviderGemini Provider = "gemini"
	// ProviderAnthropic is the Anthropic Messages API
	ProviderAnthropic Provider = "anthropic"
)

// Defaults per provider
const (
	DefaultOllamaBaseURL  = "http://localhost:11434"
	DefaultOllamaModel    = "llama3.2:3b-instruct-q8_0"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultAnthropicModel = "claude-haiku-4-5"

	// DefaultMaxTokens is only sent to providers whose API requires an output ceiling.
	DefaultMaxTokens int64 = 4096
)

// Config holds the inference configuration for one client
type Config struct {
	Provider Provider
	Model    string
	BaseURL  string // Ollama server address, or an API endpoint override
	APIKey   string // Gemini / Anthropic only
	// MaxTokens applies to Anthropic only
	MaxTokens int64
	// HTTPClient overrides the transport (Ollama and Anthropic); nil uses a default client
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration (local Ollama)
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderOllama,
		Model:     DefaultOllamaModel,
		BaseURL:   DefaultOllamaBaseURL,
		MaxTokens: DefaultMaxTokens,
	}
}

// ParseProvider validates a provider name. Empty selects Ollama.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderOllama, nil
	case ProviderOllama, ProviderGemini, ProviderAnthropic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q (expected ollama, gemini or anthropic)", s)
	}
}

// DefaultModel returns the model identifier used when none is configured
func DefaultModel(p Provider) string {
	switch p {
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return DefaultOllamaModel
	}
}

// GetModel returns the configured model, falling back to the provider default
func (c *Config) GetModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel(c.Provider)
}
