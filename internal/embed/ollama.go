package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	xerrors "github.com/docrank/docrank/internal/errors"
)

// OllamaConfig configures the remote embedding provider.
type OllamaConfig struct {
	// Host is the API endpoint, e.g. http://localhost:11434.
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding dimension (0 = accept what
	// the provider returns).
	Dimensions int

	// MaxInputChars truncates input text before submission.
	MaxInputChars int

	// Timeout bounds a single request.
	Timeout time.Duration

	// Retry is the shared backoff policy applied on rate-limit errors.
	Retry xerrors.RetryConfig
}

// OllamaProvider generates embeddings via an Ollama-compatible HTTP API.
// Rate-limit responses are retried with exponential backoff through the
// shared retry policy; all other failures surface to the caller (the
// resilient wrapper decides whether to fall back).
type OllamaProvider struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Provider = (*OllamaProvider)(nil)

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaProvider creates a remote embedding provider.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ollama host is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = xerrors.DefaultRetryConfig()
	}

	return &OllamaProvider{
		// Timeout is enforced per request via context so caller
		// cancellation keeps working.
		client: &http.Client{},
		config: cfg,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed generates an embedding for text. Input longer than the
// configured limit is head-truncated before submission. Rate-limit
// errors are retried with exponential backoff, base delay doubling.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("embedding provider is closed")
	}
	p.mu.RUnlock()

	text = truncateHead(text, p.config.MaxInputChars)

	vector, err := xerrors.RetryWithResultIf(ctx, p.config.Retry, xerrors.IsRateLimited, func() ([]float32, error) {
		return p.doEmbed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrProviderUnavailable, err)
	}

	p.rememberDims(len(vector))
	return vector, nil
}

// doEmbed performs one embedding request.
func (p *OllamaProvider) doEmbed(ctx context.Context, text string) ([]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.config.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(p.config.Host, "/") + "/api/embed"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, xerrors.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embeddings) == 0 || len(embedResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("provider returned empty embedding")
	}

	return embedResp.Embeddings[0], nil
}

func (p *OllamaProvider) rememberDims(n int) {
	p.mu.Lock()
	if p.dims == 0 {
		p.dims = n
	}
	p.mu.Unlock()
}

// Dimensions returns the embedding dimension (0 until first response
// when not configured).
func (p *OllamaProvider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dims
}

// ModelName returns the model identifier.
func (p *OllamaProvider) ModelName() string { return p.config.Model }

// Available checks if the provider endpoint is reachable.
func (p *OllamaProvider) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	url := strings.TrimRight(p.config.Host, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (p *OllamaProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.client.CloseIdleConnections()
	return nil
}
