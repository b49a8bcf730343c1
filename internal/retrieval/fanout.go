package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docrank/docrank/internal/embed"
	"github.com/docrank/docrank/internal/store"
)

// FanoutSearcher embeds one variant and queries every named index in
// parallel. Per-index failures are logged and excluded; they never
// abort the other in-flight queries.
type FanoutSearcher struct {
	backend  store.Backend
	embedder embed.Provider
	logger   *slog.Logger
}

// NewFanoutSearcher wires the searcher to its collaborators.
func NewFanoutSearcher(backend store.Backend, embedder embed.Provider, logger *slog.Logger) *FanoutSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutSearcher{
		backend:  backend,
		embedder: embedder,
		logger:   logger,
	}
}

// Search returns at most topK candidates for the variant, flattened
// across indices and ordered ascending by distance.
func (s *FanoutSearcher) Search(ctx context.Context, variant QueryVariant, indices []string, topK int) ([]store.CandidateMatch, error) {
	if len(indices) == 0 || topK <= 0 {
		return []store.CandidateMatch{}, nil
	}

	vector, err := s.embedder.Embed(ctx, variant.Text)
	if err != nil {
		// The resilient provider recovers everything except caller
		// cancellation, so an error here means the request is gone.
		return nil, err
	}

	var (
		mu      sync.Mutex
		matches []store.CandidateMatch
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, index := range indices {
		index := index
		g.Go(func() error {
			hits, err := s.backend.Query(gctx, index, vector, topK)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("index query failed, excluding from results",
					"index", index,
					"variant", variant.Text,
					"error", err)
				return nil
			}
			mu.Lock()
			matches = append(matches, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []store.CandidateMatch{}
	}
	return matches, nil
}
