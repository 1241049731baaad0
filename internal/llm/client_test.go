package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config uses local ollama", func(t *testing.T) {
		client, err := NewClient(ctx, nil)
		require.NoError(t, err)
		defer client.Close()
		assert.IsType(t, &OllamaClient{}, client)
		assert.Equal(t, DefaultOllamaModel, client.Model())
	})

	t.Run("empty provider is ollama", func(t *testing.T) {
		client, err := NewClient(ctx, &Config{Model: "mistral"})
		require.NoError(t, err)
		assert.IsType(t, &OllamaClient{}, client)
		assert.Equal(t, "mistral", client.Model())
	})

	t.Run("anthropic", func(t *testing.T) {
		client, err := NewClient(ctx, &Config{Provider: ProviderAnthropic, APIKey: "k"})
		require.NoError(t, err)
		assert.IsType(t, &AnthropicClient{}, client)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewClient(ctx, &Config{Provider: ProviderGemini})
		assert.Error(t, err)
		_, err = NewClient(ctx, &Config{Provider: ProviderAnthropic})
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(ctx, &Config{Provider: "openai"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai")
	})
}

func TestCheckMessages(t *testing.T) {
	assert.NoError(t, checkMessages("sys", "user"))
	assert.ErrorIs(t, checkMessages(" ", "user"), ErrInference)
	assert.ErrorIs(t, checkMessages("sys", ""), ErrInference)
}
