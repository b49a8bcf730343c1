package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of embeddings to keep.
// At 768 dimensions * 4 bytes * 1000 entries that is about 3MB.
const DefaultCacheSize = 1000

// CachedProvider wraps a Provider with LRU memoization. Repeated
// questions and query variants shared across requests skip the provider
// entirely.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider creates a cached provider wrapping inner.
func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedProvider{inner: inner, cache: cache}
}

// cacheKey hashes model+text; SHA-256 gives a fixed-size key for
// arbitrary input.
func (c *CachedProvider) cacheKey(text string) string {
	combined := c.inner.ModelName() + "\x00" + text
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding if present, otherwise computes and caches.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Len returns the number of cached embeddings.
func (c *CachedProvider) Len() int { return c.cache.Len() }

// Dimensions returns the inner provider's dimension.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// ModelName returns the inner provider's model identifier.
func (c *CachedProvider) ModelName() string { return c.inner.ModelName() }

// Available reports the inner provider's readiness.
func (c *CachedProvider) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close purges the cache and closes the inner provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
