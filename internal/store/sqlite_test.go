package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	chunk := axisChunk("a", 0, 8)
	chunk.Meta.SectionNumber = "3.2"
	chunk.Meta.Tags = []string{"procedures"}
	require.NoError(t, s.Upsert(ctx, "manuals", []IndexedChunk{
		chunk,
		axisChunk("b", 1, 8),
	}))

	matches, err := s.Query(ctx, "manuals", axisVector(0, 8), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].Key)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-5)
	assert.Equal(t, "3.2", matches[0].Meta.SectionNumber)
	assert.Equal(t, []string{"procedures"}, matches[0].Meta.Tags)
	assert.InDelta(t, 1.0, matches[1].Distance, 1e-5)
}

func TestSQLiteStore_TopKTruncates(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Upsert(ctx, "manuals", []IndexedChunk{
		axisChunk("a", 0, 8),
		axisChunk("b", 1, 8),
		axisChunk("c", 2, 8),
	}))

	matches, err := s.Query(ctx, "manuals", axisVector(0, 8), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Key)
}

func TestSQLiteStore_UnknownIndex(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Query(context.Background(), "missing", axisVector(0, 8), 5)
	assert.ErrorContains(t, err, "unknown index")
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Upsert(ctx, "manuals", []IndexedChunk{axisChunk("a", 0, 8)}))

	updated := axisChunk("a", 3, 8)
	updated.Meta.Summary = "revised"
	require.NoError(t, s.Upsert(ctx, "manuals", []IndexedChunk{updated}))

	matches, err := s.Query(ctx, "manuals", axisVector(3, 8), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "revised", matches[0].Meta.Summary)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-5)
}

func TestSQLiteStore_ListIndicesByRecency(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Upsert(ctx, "first", []IndexedChunk{axisChunk("a", 0, 4)}))
	require.NoError(t, s.Upsert(ctx, "second", []IndexedChunk{axisChunk("b", 1, 4)}))
	require.NoError(t, s.Upsert(ctx, "first", []IndexedChunk{axisChunk("c", 2, 4)}))

	names, err := s.ListIndices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, names)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "manuals", []IndexedChunk{axisChunk("a", 0, 8)}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	matches, err := reopened.Query(ctx, "manuals", axisVector(0, 8), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Key)
}

func TestDecodeVector_RejectsMalformedBlob(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	v, err := decodeVector(encodeVector([]float32{0.5, -1.25}))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1.25}, v)
}
