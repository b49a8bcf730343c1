package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// MemoryStore keeps one HNSW graph per named index, entirely in memory.
// Intended for tests and small corpora; the SQLite store covers
// persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	indices map[string]*memoryIndex
}

// memoryIndex is one named collection.
type memoryIndex struct {
	graph     *hnsw.Graph[uint64]
	keyToNode map[string]uint64
	nodeToKey map[uint64]string
	meta      map[string]ChunkMeta
	nextNode  uint64
	dims      int
	updatedAt time.Time
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Writer  = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indices: make(map[string]*memoryIndex)}
}

func newMemoryIndex() *memoryIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 32
	return &memoryIndex{
		graph:     graph,
		keyToNode: make(map[string]uint64),
		nodeToKey: make(map[uint64]string),
		meta:      make(map[string]ChunkMeta),
	}
}

// Upsert inserts or replaces chunks in the named index.
func (s *MemoryStore) Upsert(_ context.Context, index string, chunks []IndexedChunk) error {
	if index == "" {
		return fmt.Errorf("index name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[index]
	if !ok {
		idx = newMemoryIndex()
		s.indices[index] = idx
	}

	for _, c := range chunks {
		if c.Key == "" {
			return fmt.Errorf("chunk key is required")
		}
		if err := c.Meta.Validate(); err != nil {
			return fmt.Errorf("chunk %s: %w", c.Key, err)
		}
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s: empty vector", c.Key)
		}
		if idx.dims == 0 {
			idx.dims = len(c.Vector)
		} else if len(c.Vector) != idx.dims {
			return fmt.Errorf("chunk %s: vector dimension %d does not match index dimension %d",
				c.Key, len(c.Vector), idx.dims)
		}

		// Lazy replacement: orphan the old graph node, map the key to a
		// fresh one. Deleting the last node corrupts the graph in
		// coder/hnsw, orphaning avoids that.
		if old, exists := idx.keyToNode[c.Key]; exists {
			delete(idx.nodeToKey, old)
		}

		node := idx.nextNode
		idx.nextNode++
		idx.graph.Add(hnsw.MakeNode(node, c.Vector))
		idx.keyToNode[c.Key] = node
		idx.nodeToKey[node] = c.Key
		idx.meta[c.Key] = c.Meta
	}

	idx.updatedAt = time.Now()
	return nil
}

// Query returns at most topK matches ordered ascending by distance.
func (s *MemoryStore) Query(ctx context.Context, index string, vector []float32, topK int) ([]CandidateMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indices[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}
	if idx.graph.Len() == 0 || topK <= 0 {
		return []CandidateMatch{}, nil
	}
	// The graph panics on a dimension mismatch; reject it as an error
	// so callers can isolate the failure.
	if len(vector) != idx.dims {
		return nil, fmt.Errorf("query vector dimension %d does not match index dimension %d",
			len(vector), idx.dims)
	}

	// Over-fetch to absorb orphaned nodes from replacements.
	nodes := idx.graph.Search(vector, topK+len(idx.nodeToKey)/4+1)

	matches := make([]CandidateMatch, 0, topK)
	for _, node := range nodes {
		key, live := idx.nodeToKey[node.Key]
		if !live {
			continue
		}
		matches = append(matches, CandidateMatch{
			Key:      key,
			Index:    index,
			Distance: float64(idx.graph.Distance(vector, node.Value)),
			Meta:     idx.meta[key],
		})
		if len(matches) == topK {
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}

// ListIndices returns index names, most recently updated first.
func (s *MemoryStore) ListIndices(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.indices[names[i]].updatedAt, s.indices[names[j]].updatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return names[i] < names[j]
	})
	return names, nil
}

// Count returns the number of live chunks in the named index.
func (s *MemoryStore) Count(index string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[index]
	if !ok {
		return 0
	}
	return len(idx.keyToNode)
}
