package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini provider")
	}

	opts := []option.ClientOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  config.GetModel(),
	}, nil
}

// Generate generates text with the system instruction set on the model
func (c *GeminiClient) Generate(ctx context.Context, systemInstruction, userContent string, temperature float64) (string, error) {
	if err := checkMessages(systemInstruction, userContent); err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(temperature))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userContent))
	if err != nil {
		return "", classifyGeminiError(ctx, c.model, err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &InferenceError{Message: "malformed gemini response", Cause: err}
	}
	return strings.TrimSpace(text), nil
}

// Model returns the model identifier
func (c *GeminiClient) Model() string {
	return c.model
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// classifyGeminiError maps API errors onto the inference error taxonomy.
func classifyGeminiError(ctx context.Context, model string, err error) error {
	status := 0
	var apiErr *apierror.APIError
	var gErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPCode()
	case errors.As(err, &gErr):
		status = gErr.Code
	default:
		return transportError(ctx, "gemini", err)
	}

	switch status {
	case http.StatusNotFound:
		return &UnavailableError{Message: fmt.Sprintf("model %q is not available", model), Cause: err}
	case http.StatusServiceUnavailable:
		return &UnavailableError{Message: "gemini is unavailable", Cause: err}
	default:
		return &InferenceError{Message: "gemini request failed", StatusCode: max(status, 0), Cause: err}
	}
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	return strings.Join(parts, ""), nil
}
