package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackProvider_Deterministic(t *testing.T) {
	p := NewFallbackProvider(0)
	ctx := context.Background()

	first, err := p.Embed(ctx, "the Battle of the Windmill")
	require.NoError(t, err)
	second, err := p.Embed(ctx, "the Battle of the Windmill")
	require.NoError(t, err)

	// Bit-identical, not approximately equal.
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i], second[i], "dimension %d", i)
	}
}

func TestFallbackProvider_DistinctInputsDiffer(t *testing.T) {
	p := NewFallbackProvider(0)
	ctx := context.Background()

	a, err := p.Embed(ctx, "first text")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "second text")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFallbackProvider_Dimension(t *testing.T) {
	assert.Equal(t, FallbackDimensions, NewFallbackProvider(0).Dimensions())
	assert.Equal(t, 64, NewFallbackProvider(64).Dimensions())

	vec, err := NewFallbackProvider(64).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
}

func TestFallbackProvider_UnitLength(t *testing.T) {
	vec, err := NewFallbackProvider(0).Embed(context.Background(), "some text")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestTruncateHead(t *testing.T) {
	assert.Equal(t, "abc", truncateHead("abc", 10))
	assert.Equal(t, "ab", truncateHead("abcdef", 2))
	assert.Equal(t, "abcdef", truncateHead("abcdef", 0), "zero limit disables truncation")
}
