package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// FallbackProvider generates deterministic pseudo-embeddings without any
// external dependency. The input text is hashed into a seed and each
// dimension i is sin(seed + i). Identical text always yields
// bit-identical vectors, which keeps degraded-mode retrieval reproducible.
type FallbackProvider struct {
	dims int
}

// Verify interface implementation at compile time.
var _ Provider = (*FallbackProvider)(nil)

// NewFallbackProvider creates a fallback provider with the given
// dimension (FallbackDimensions if dims <= 0).
func NewFallbackProvider(dims int) *FallbackProvider {
	if dims <= 0 {
		dims = FallbackDimensions
	}
	return &FallbackProvider{dims: dims}
}

// Embed generates the pseudo-embedding for text.
func (p *FallbackProvider) Embed(_ context.Context, text string) ([]float32, error) {
	seed := hashSeed(text)
	vector := make([]float32, p.dims)
	for i := range vector {
		vector[i] = float32(math.Sin(seed + float64(i)))
	}
	return normalizeVector(vector), nil
}

// hashSeed maps text to a stable float seed via FNV-64a.
func hashSeed(text string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	// Keep the seed small so seed+i stays well-conditioned for sin.
	return float64(h.Sum64() % 100000)
}

// Dimensions returns the embedding dimension.
func (p *FallbackProvider) Dimensions() int { return p.dims }

// ModelName returns the model identifier.
func (p *FallbackProvider) ModelName() string { return "fallback" }

// Available always reports true; the fallback needs nothing.
func (p *FallbackProvider) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (p *FallbackProvider) Close() error { return nil }
