// Package retrieval implements the multi-query retrieval and ranking
// pipeline: a question is expanded into query variants, each variant is
// embedded and fanned out across named vector indices, candidates are
// re-scored with hybrid vector+keyword evidence, merged across variants
// into one ranked list, and assembled into a citation-ready context
// block.
package retrieval

import "github.com/docrank/docrank/internal/store"

// Variant origin values.
const (
	OriginOriginal  = "original"
	OriginGenerated = "generated"
)

// QueryVariant is one search phrasing derived from the question.
type QueryVariant struct {
	Text   string
	Origin string
}

// ScoredCandidate is a candidate match annotated with hybrid scoring
// evidence. RawKeywordScore is the unclamped point total used by the
// filter policy; KeywordScore is the normalized [0,1] form blended into
// HybridScore.
type ScoredCandidate struct {
	store.CandidateMatch

	RawKeywordScore float64
	KeywordScore    float64
	HybridScore     float64
}

// RankedResult is the cross-variant aggregate for one distinct chunk.
type RankedResult struct {
	Key   string
	Index string
	Meta  store.ChunkMeta

	// Appearances counts the variant searches that returned this chunk.
	Appearances int

	// BestRank is the best 1-based position seen across variants.
	BestRank int

	// AverageRank is the running mean of 1-based positions.
	AverageRank float64

	// CombinedScore is the final ranking score.
	CombinedScore float64

	// SourceQueries lists the variant texts that surfaced this chunk.
	SourceQueries []string

	// BestDistance is the minimum distance seen, or -1 when none was
	// recorded.
	BestDistance float64

	// Supporting marks adjacent chunks injected by context expansion
	// rather than retrieved directly.
	Supporting bool
}

// DocumentSummary aggregates the final chunk set for one document.
type DocumentSummary struct {
	DocumentID     string  `json:"document_id"`
	DocumentTitle  string  `json:"document_title,omitempty"`
	RelevantChunks int     `json:"relevant_chunks"`
	RelevantPages  []int   `json:"relevant_pages"`
	PageRanges     string  `json:"page_ranges"`
	ChunkIndices   []int   `json:"chunk_indices"`
	AverageScore   float64 `json:"average_score"`
}

// ContextualChunk is one chunk in the assembled response.
type ContextualChunk struct {
	Key           string          `json:"key"`
	Index         string          `json:"index"`
	Meta          store.ChunkMeta `json:"meta"`
	CombinedScore float64         `json:"combined_score"`
	Supporting    bool            `json:"supporting,omitempty"`
}

// ContextualResponse is the terminal pipeline output. Callers always
// receive a well-formed response; degraded runs simply carry fewer
// chunks and a Status note.
type ContextualResponse struct {
	Chunks          []ContextualChunk `json:"chunks"`
	DocumentSummary []DocumentSummary `json:"document_summary"`
	ContextString   string            `json:"context_string"`
	Citations       []string          `json:"citations"`

	// Status explains degraded or empty results; empty on a clean run.
	Status string `json:"status,omitempty"`
}
