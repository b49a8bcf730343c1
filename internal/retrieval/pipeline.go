package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docrank/docrank/internal/embed"
	xerrors "github.com/docrank/docrank/internal/errors"
	"github.com/docrank/docrank/internal/llm"
	"github.com/docrank/docrank/internal/store"
)

// Pipeline is the library-level entry point: one Retrieve call turns a
// question into a ranked, assembled context. All entities built during
// a call are local to it; the pipeline holds only read-only
// collaborators and can serve concurrent calls.
type Pipeline struct {
	backend    store.Backend
	embedder   embed.Provider
	completion llm.CompletionProvider
	logger     *slog.Logger
	defaults   Options
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithCompletion sets the optional completion provider used for query
// expansion.
func WithCompletion(p llm.CompletionProvider) PipelineOption {
	return func(pl *Pipeline) {
		pl.completion = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// WithDefaults overrides the per-call option defaults.
func WithDefaults(opts Options) PipelineOption {
	return func(pl *Pipeline) {
		pl.defaults = opts.normalized()
	}
}

// NewPipeline wires a pipeline to its backend and embedder.
func NewPipeline(backend store.Backend, embedder embed.Provider, opts ...PipelineOption) *Pipeline {
	pl := &Pipeline{
		backend:  backend,
		embedder: embedder,
		logger:   slog.Default(),
		defaults: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Retrieve runs the full pipeline for one question. When indices is
// empty the backend's known indices are used; if none exist either,
// ErrNoIndices is returned. Every other failure mode degrades to fewer
// results: the response is always well-formed, with Status explaining
// degraded or empty outcomes.
func (p *Pipeline) Retrieve(ctx context.Context, question string, indices []string, opts Options) (ContextualResponse, error) {
	opts = mergeOptions(p.defaults, opts)

	indices, err := p.resolveIndices(ctx, indices)
	if err != nil {
		return ContextualResponse{}, err
	}

	expander := NewExpander(
		WithCompletionProvider(p.completion),
		WithMaxQueries(opts.MaxQueries),
		WithExpanderLogger(p.logger),
	)
	variants := expander.Expand(ctx, question)

	p.logger.Debug("expanded question",
		"question", question,
		"variants", len(variants),
		"indices", len(indices))

	searcher := NewFanoutSearcher(p.backend, p.embedder, p.logger)
	scorer := NewHybridScorer(opts)

	perVariant := make([]VariantResults, len(variants))
	poolPerVariant := make([][]store.CandidateMatch, len(variants))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, variant := range variants {
		i, variant := i, variant
		g.Go(func() error {
			candidates, err := searcher.Search(gctx, variant, indices, opts.TopKPerQuery)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("variant search failed, excluding from merge",
					"variant", variant.Text,
					"error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			perVariant[i] = VariantResults{
				Variant:    variant,
				Candidates: scorer.Score(candidates, question),
			}
			poolPerVariant[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ContextualResponse{}, err
	}

	// Each goroutine owns its slot; merge runs single-threaded after
	// the wait.
	kept := perVariant[:0]
	var pool []store.CandidateMatch
	for i, vr := range perVariant {
		if vr.Variant.Text == "" {
			continue
		}
		kept = append(kept, vr)
		pool = append(pool, poolPerVariant[i]...)
	}

	ranked := NewRankMerger(opts.FinalTopK).Merge(kept)
	response := NewContextAssembler(opts).Assemble(ranked, pool)

	switch {
	case len(response.Chunks) == 0 && failed == len(variants):
		response.Status = "no results: all query variants failed"
	case len(response.Chunks) == 0:
		response.Status = "no results matched the question"
	case failed > 0:
		response.Status = fmt.Sprintf("partial results: %d of %d query variants failed", failed, len(variants))
	}
	return response, nil
}

// resolveIndices falls back to the backend's index list when the caller
// supplies none.
func (p *Pipeline) resolveIndices(ctx context.Context, indices []string) ([]string, error) {
	if len(indices) > 0 {
		return indices, nil
	}
	known, err := p.backend.ListIndices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing indices: %v", xerrors.ErrNoIndices, err)
	}
	if len(known) == 0 {
		return nil, xerrors.ErrNoIndices
	}
	return known, nil
}

// mergeOptions overlays caller-provided values onto the pipeline
// defaults. Zero values mean "use the default".
func mergeOptions(base, override Options) Options {
	out := base
	if override.MaxQueries > 0 {
		out.MaxQueries = override.MaxQueries
	}
	if override.TopKPerQuery > 0 {
		out.TopKPerQuery = override.TopKPerQuery
	}
	if override.FinalTopK > 0 {
		out.FinalTopK = override.FinalTopK
	}
	if override.WeightVector > 0 {
		out.WeightVector = override.WeightVector
	}
	if override.MaxDistance > 0 {
		out.MaxDistance = override.MaxDistance
	}
	if override.MinKeywordScore > 0 {
		out.MinKeywordScore = override.MinKeywordScore
	}
	if override.MaxResults > 0 {
		out.MaxResults = override.MaxResults
	}
	if override.Parallelism > 0 {
		out.Parallelism = override.Parallelism
	}
	if override.ExpandContext {
		out.ExpandContext = true
	}
	return out.normalized()
}
