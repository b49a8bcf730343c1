package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/docrank/docrank/internal/errors"
)

func fastProviderRetry() xerrors.RetryConfig {
	return xerrors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newEmbedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProvider_Embed(t *testing.T) {
	var gotInput string
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInput = req.Input
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	})

	p, err := NewOllamaProvider(OllamaConfig{
		Host:  srv.URL,
		Model: "test-model",
		Retry: fastProviderRetry(),
	})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	vec, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "hello world", gotInput)
	assert.Equal(t, 3, p.Dimensions(), "dimension learned from first response")
}

func TestOllamaProvider_HeadTruncation(t *testing.T) {
	var gotInput string
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInput = req.Input
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	})

	p, err := NewOllamaProvider(OllamaConfig{
		Host:          srv.URL,
		Model:         "test-model",
		MaxInputChars: 5,
		Retry:         fastProviderRetry(),
	})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, "abcde", gotInput)
}

func TestOllamaProvider_RateLimitRetried(t *testing.T) {
	attempts := 0
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}}})
	})

	p, err := NewOllamaProvider(OllamaConfig{Host: srv.URL, Model: "m", Retry: fastProviderRetry()})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 3, attempts)
}

func TestOllamaProvider_RateLimitExhausted(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	p, err := NewOllamaProvider(OllamaConfig{Host: srv.URL, Model: "m", Retry: fastProviderRetry()})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrProviderUnavailable)
}

func TestOllamaProvider_ServerErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	})

	p, err := NewOllamaProvider(OllamaConfig{Host: srv.URL, Model: "m", Retry: fastProviderRetry()})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "only rate limits are retried")
}

func TestOllamaProvider_RequiresHostAndModel(t *testing.T) {
	_, err := NewOllamaProvider(OllamaConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewOllamaProvider(OllamaConfig{Host: "http://localhost:11434"})
	assert.Error(t, err)
}
