package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default completion client configuration.
const (
	DefaultModel   = "qwen3:0.6b"
	DefaultTimeout = 10 * time.Second
)

// Config configures the Ollama completion client.
type Config struct {
	// Host is the API endpoint, e.g. http://localhost:11434.
	Host string

	// Model is the completion model name.
	Model string

	// Timeout bounds a single generate request.
	Timeout time.Duration
}

// OllamaClient generates completions via Ollama's /api/generate.
// A small, fast model is enough for query expansion.
type OllamaClient struct {
	client *http.Client
	config Config
}

var _ CompletionProvider = (*OllamaClient)(nil)

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClient creates a completion client.
func NewOllamaClient(cfg Config) (*OllamaClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ollama host is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaClient{
		client: &http.Client{},
		config: cfg,
	}, nil
}

// Complete returns the completion for the given prompts.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	opts := map[string]any{
		"temperature": temperature,
	}
	if maxTokens > 0 {
		opts["num_predict"] = maxTokens
	}

	body, err := json.Marshal(generateRequest{
		Model:   c.config.Model,
		System:  systemPrompt,
		Prompt:  userPrompt,
		Stream:  false,
		Options: opts,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.config.Host, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(genResp.Response), nil
}

// Available checks if the endpoint is reachable.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	url := strings.TrimRight(c.config.Host, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// ModelName returns the model being used.
func (c *OllamaClient) ModelName() string { return c.config.Model }
