package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaClient implements Client against a local Ollama server's /api/chat endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(config *Config) (*OllamaClient, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		// OLLAMA_HOST is commonly given as host:port
		baseURL = "http://" + baseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// Deadlines come from the caller's context
		httpClient = &http.Client{Timeout: 0}
	}

	return &OllamaClient{
		baseURL:    baseURL,
		model:      config.GetModel(),
		httpClient: httpClient,
	}, nil
}

// Generate sends a system + user chat request with the given temperature
func (c *OllamaClient) Generate(ctx context.Context, systemInstruction, userContent string, temperature float64) (string, error) {
	if err := checkMessages(systemInstruction, userContent); err != nil {
		return "", err
	}

	req := ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userContent},
		},
		Stream: false,
		Options: map[string]any{
			"temperature": temperature,
		},
	}

	resp, err := c.chat(ctx, req)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Message.Content), nil
}

// Model returns the model identifier
func (c *OllamaClient) Model() string {
	return c.model
}

// Close is a no-op; the HTTP client owns no resources that need releasing
func (c *OllamaClient) Close() error {
	return nil
}

// chat performs the HTTP request to Ollama's chat endpoint.
func (c *OllamaClient) chat(ctx context.Context, req ollamaChatRequest) (ollamaChatResponse, error) {
	var out ollamaChatResponse

	b, err := json.Marshal(req)
	if err != nil {
		return out, &InferenceError{Message: "failed to encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return out, &InferenceError{Message: "failed to build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return out, transportError(ctx, "ollama at "+c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		msg := errorMessage(body)
		if resp.StatusCode == http.StatusNotFound {
			return out, &UnavailableError{Message: fmt.Sprintf("model %q is not available: %s", c.model, msg)}
		}
		return out, &InferenceError{Message: "ollama returned " + msg, StatusCode: resp.StatusCode}
	}

	// Even with stream=false the server may answer with newline-delimited chunks
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	chunks := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return out, &InferenceError{Message: "malformed response", Cause: err}
		}
		if chunk.Error != "" {
			return out, &InferenceError{Message: "ollama error: " + chunk.Error}
		}
		chunks++
		out.Message.Content += chunk.Message.Content
		if chunk.Message.Role != "" {
			out.Message.Role = chunk.Message.Role
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		out.Done = chunk.Done
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return out, transportError(ctx, "ollama at "+c.baseURL, err)
		}
		return out, &InferenceError{Message: "failed to read response", Cause: err}
	}
	if chunks == 0 {
		return out, &InferenceError{Message: "empty response body"}
	}

	return out, nil
}

// errorMessage extracts Ollama's {"error": "..."} body, falling back to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty error body"
	}
	return msg
}
