// Package embed turns text into fixed-length dense vectors. A remote
// provider (Ollama-compatible HTTP API) is optional; a deterministic
// hash-seeded fallback guarantees the pipeline never blocks on an
// unavailable provider and that identical text always embeds to
// identical vectors in degraded mode.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultDimensions is the dimension reported by typical remote models.
	DefaultDimensions = 768

	// FallbackDimensions is the dimension of deterministic pseudo-embeddings.
	FallbackDimensions = 256

	// DefaultMaxInputChars is the head-truncation limit applied before
	// submitting text to a remote provider.
	DefaultMaxInputChars = 8000

	// DefaultCourtesyDelay is the minimum spacing between remote
	// provider calls, to avoid amplifying rate-limit pressure when
	// several query variants are embedded back to back.
	DefaultCourtesyDelay = 500 * time.Millisecond

	// DefaultRequestTimeout bounds a single remote embedding request.
	DefaultRequestTimeout = 30 * time.Second
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the provider is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// truncateHead applies deterministic head truncation: the first limit
// characters are kept, the rest dropped.
func truncateHead(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
