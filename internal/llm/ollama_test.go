package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Complete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  line one\nline two  ", Done: true})
	}))
	defer srv.Close()

	c, err := NewOllamaClient(Config{Host: srv.URL, Model: "test"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "system", "user", 128, 0.4)
	require.NoError(t, err)

	assert.Equal(t, "line one\nline two", out)
	assert.Equal(t, "system", got.System)
	assert.Equal(t, "user", got.Prompt)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 128, got.Options["num_predict"])
}

func TestOllamaClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewOllamaClient(Config{Host: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", "prompt", 0, 0)
	assert.Error(t, err)
}

func TestOllamaClient_RequiresHost(t *testing.T) {
	_, err := NewOllamaClient(Config{})
	assert.Error(t, err)
}

func TestOllamaClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewOllamaClient(Config{Host: srv.URL})
	require.NoError(t, err)
	assert.True(t, c.Available(context.Background()))

	c2, err := NewOllamaClient(Config{Host: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.False(t, c2.Available(context.Background()))
}
