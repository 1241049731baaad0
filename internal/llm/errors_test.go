package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailableError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &UnavailableError{Message: "cannot reach ollama", Cause: cause}

	assert.Equal(t, "inference unavailable: cannot reach ollama: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrInferenceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInference)

	bare := &UnavailableError{Message: "model missing"}
	assert.Equal(t, "inference unavailable: model missing", bare.Error())
}

func TestInferenceError(t *testing.T) {
	tests := []struct {
		name string
		err  *InferenceError
		want string
	}{
		{
			name: "message only",
			err:  &InferenceError{Message: "empty response body"},
			want: "inference error: empty response body",
		},
		{
			name: "with status",
			err:  &InferenceError{Message: "ollama returned boom", StatusCode: 500},
			want: "inference error: ollama returned boom (status 500)",
		},
		{
			name: "with cause",
			err:  &InferenceError{Message: "malformed response", Cause: errors.New("bad json")},
			want: "inference error: malformed response: bad json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, ErrInference)
			assert.NotErrorIs(t, tt.err, ErrInferenceUnavailable)
		})
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("stage failed: %w", &UnavailableError{Message: "down"})
	assert.ErrorIs(t, wrapped, ErrInferenceUnavailable)

	var unavailable *UnavailableError
	assert.True(t, errors.As(wrapped, &unavailable))
	assert.Equal(t, "down", unavailable.Message)
}

func TestTransportError(t *testing.T) {
	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := transportError(ctx, "ollama", errors.New("whatever"))
		assert.ErrorIs(t, err, ErrInferenceUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "did not answer")
	})

	t.Run("deadline in error chain", func(t *testing.T) {
		err := transportError(context.Background(), "ollama", fmt.Errorf("post: %w", context.DeadlineExceeded))
		assert.ErrorIs(t, err, ErrInferenceUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("other failure", func(t *testing.T) {
		err := transportError(context.Background(), "gemini", errors.New("tls handshake"))
		assert.ErrorIs(t, err, ErrInferenceUnavailable)
		assert.Contains(t, err.Error(), "request to gemini failed")
	})
}
