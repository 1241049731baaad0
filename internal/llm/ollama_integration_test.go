//go:build integration

package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonathan/market-research/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcollama "github.com/testcontainers/testcontainers-go/modules/ollama"
)

const (
	// small model so the pull stays quick
	testModel            = "qwen2.5:0.5b"
	ollamaContainerImage = "ollama/ollama:latest"
	modelPullTimeout     = 10 * time.Minute
	chatTimeout          = 2 * time.Minute
)

// startOllama runs an Ollama container with testModel pulled and returns its URL.
func startOllama(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcollama.Run(ctx, ollamaContainerImage)
	require.NoError(t, err, "failed to start Ollama container")
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(stopCtx)
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Ollama connection string")

	t.Logf("Pulling model %s (this may take a few minutes)...", testModel)
	pullCtx, cancel := context.WithTimeout(ctx, modelPullTimeout)
	defer cancel()
	_, _, err = container.Exec(pullCtx, []string{"ollama", "pull", testModel})
	require.NoError(t, err, "failed to pull model %s", testModel)

	return url
}

func TestOllamaClient_Integration(t *testing.T) {
	url := startOllama(t)

	client, err := llm.NewClient(context.Background(), &llm.Config{
		Provider: llm.ProviderOllama,
		BaseURL:  url,
		Model:    testModel,
	})
	require.NoError(t, err)
	defer client.Close()

	t.Run("generates text", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
		defer cancel()

		text, err := client.Generate(ctx, "You answer in one short sentence.", "Name one benefit of market research.", 0.3)
		require.NoError(t, err)
		assert.NotEmpty(t, text)
	})

	t.Run("missing model is unavailable", func(t *testing.T) {
		missing, err := llm.NewClient(context.Background(), &llm.Config{
			Provider: llm.ProviderOllama,
			BaseURL:  url,
			Model:    "no-such-model:latest",
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
		defer cancel()

		_, err = missing.Generate(ctx, "sys", "hello", 0.3)
		assert.ErrorIs(t, err, llm.ErrInferenceUnavailable)
	})
}
