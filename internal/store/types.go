// Package store provides the vector similarity backend consumed by the
// retrieval pipeline: named indices of embedded chunks answering
// nearest-neighbor queries. Two implementations are included, an
// in-memory HNSW store and a SQLite-backed store.
package store

import (
	"context"
	"fmt"
	"math"
)

// ChunkMeta carries the metadata attached to an indexed chunk.
// DocumentID and ChunkIndex are required for grouping and adjacency;
// the remaining fields are optional enrichments that improve scoring
// and formatting but are not required for correctness.
type ChunkMeta struct {
	// DocumentID identifies the source document. Required.
	DocumentID string `json:"document_id"`

	// ChunkIndex is the chunk's position within the document. Required.
	ChunkIndex int `json:"chunk_index"`

	// DocumentTitle overrides DocumentID in rendered headers when set.
	DocumentTitle string `json:"document_title,omitempty"`

	// PageStart and PageEnd bound the pages this chunk spans (0 = unknown).
	PageStart int `json:"page_start,omitempty"`
	PageEnd   int `json:"page_end,omitempty"`

	// SectionNumber is a dotted section reference like "3.2.1".
	SectionNumber string `json:"section_number,omitempty"`

	// SectionTitle is the heading of the containing section.
	SectionTitle string `json:"section_title,omitempty"`

	// Summary is a short abstract of the chunk.
	Summary string `json:"summary,omitempty"`

	// Content is the chunk text.
	Content string `json:"content,omitempty"`

	// Citation is the display reference for this chunk's source.
	Citation string `json:"citation,omitempty"`

	// Tags are topic labels attached by the producer.
	Tags []string `json:"tags,omitempty"`
}

// Validate checks the required identity fields.
func (m ChunkMeta) Validate() error {
	if m.DocumentID == "" {
		return fmt.Errorf("chunk metadata missing document_id")
	}
	if m.ChunkIndex < 0 {
		return fmt.Errorf("chunk metadata has negative chunk_index %d", m.ChunkIndex)
	}
	return nil
}

// CandidateMatch is one raw similarity-search hit.
type CandidateMatch struct {
	// Key is the chunk identity, unique within its index.
	Key string

	// Index names the collection the match came from.
	Index string

	// Distance is the backend's dissimilarity score; lower is closer.
	Distance float64

	// Meta is the chunk's metadata, read-only for consumers.
	Meta ChunkMeta
}

// IndexedChunk is a chunk plus its embedding, as written into a store.
type IndexedChunk struct {
	Key    string
	Vector []float32
	Meta   ChunkMeta
}

// Backend is the similarity-search collaborator contract.
type Backend interface {
	// Query returns at most topK matches from the named index, ordered
	// ascending by distance.
	Query(ctx context.Context, index string, vector []float32, topK int) ([]CandidateMatch, error)

	// ListIndices returns the known index names, most recently updated
	// first when the backend tracks recency.
	ListIndices(ctx context.Context) ([]string, error)
}

// Writer is implemented by stores that accept new chunks.
type Writer interface {
	// Upsert inserts or replaces chunks in the named index, creating
	// the index on first use.
	Upsert(ctx context.Context, index string, chunks []IndexedChunk) error
}

// cosineDistance returns 1 - cosine similarity. Zero-magnitude vectors
// are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}
