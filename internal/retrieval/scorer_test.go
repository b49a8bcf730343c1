package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrank/docrank/internal/store"
)

func candidate(key string, distance float64, meta store.ChunkMeta) store.CandidateMatch {
	if meta.DocumentID == "" {
		meta.DocumentID = "doc-" + key
	}
	return store.CandidateMatch{Key: key, Index: "manuals", Distance: distance, Meta: meta}
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("What is the chlorine dosage in section 3.2?")
	assert.Equal(t, []string{"chlorine", "dosage", "section", "3.2"}, keywords)
}

func TestExtractKeywords_DropsShortAndStopWords(t *testing.T) {
	keywords := ExtractKeywords("is it on an arm")
	assert.Equal(t, []string{"arm"}, keywords)
}

func TestHybridScorer_ContentOccurrences(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 1.0})

	scored := s.Score([]store.CandidateMatch{
		candidate("a", 0.2, store.ChunkMeta{Content: "chlorine levels and chlorine dosing"}),
	}, "chlorine dosing")

	require.Len(t, scored, 1)
	// chlorine x2 and dosing x1 as whole words.
	assert.InDelta(t, 6.0, scored[0].RawKeywordScore, 1e-9)
	assert.InDelta(t, 0.6, scored[0].KeywordScore, 1e-9)
}

func TestHybridScorer_WholeWordOnly(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 1.0, MinKeywordScore: 0.1})

	scored := s.Score([]store.CandidateMatch{
		candidate("a", 0.2, store.ChunkMeta{Content: "the pumping station pumps water"}),
	}, "pump")

	require.Len(t, scored, 1)
	assert.Zero(t, scored[0].RawKeywordScore)
}

func TestHybridScorer_MetadataFieldPoints(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 1.0})

	scored := s.Score([]store.CandidateMatch{
		candidate("a", 0.2, store.ChunkMeta{
			SectionNumber: "3.2",
			SectionTitle:  "Chlorine Handling",
			Summary:       "chlorine storage rules",
			Tags:          []string{"chlorine", "safety"},
		}),
	}, "chlorine section 3.2")

	require.Len(t, scored, 1)
	// chlorine: title +5, tag +3, summary +2; "3.2": section number +10.
	assert.InDelta(t, 20.0, scored[0].RawKeywordScore, 1e-9)
	assert.InDelta(t, 1.0, scored[0].KeywordScore, 1e-9)
}

func TestHybridScorer_BlendAndOrder(t *testing.T) {
	s := NewHybridScorer(Options{WeightVector: 0.7, MaxDistance: 1.0})

	scored := s.Score([]store.CandidateMatch{
		candidate("far-lexical", 0.5, store.ChunkMeta{Content: "valve valve valve valve valve"}),
		candidate("near-silent", 0.1, store.ChunkMeta{Content: "unrelated text"}),
	}, "valve")

	require.Len(t, scored, 2)
	// far-lexical: 0.7*0.5 + 0.3*1.0 = 0.65; near-silent: 0.7*0.9 = 0.63.
	assert.Equal(t, "far-lexical", scored[0].Key)
	assert.InDelta(t, 0.65, scored[0].HybridScore, 1e-9)
	assert.InDelta(t, 0.63, scored[1].HybridScore, 1e-9)
}

func TestHybridScorer_KeywordMonotonicity(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 1.0})

	scored := s.Score([]store.CandidateMatch{
		candidate("more", 0.3, store.ChunkMeta{Content: "filter filter filter"}),
		candidate("less", 0.3, store.ChunkMeta{Content: "filter"}),
	}, "filter")

	require.Len(t, scored, 2)
	var more, less ScoredCandidate
	for _, c := range scored {
		if c.Key == "more" {
			more = c
		} else {
			less = c
		}
	}
	assert.GreaterOrEqual(t, more.HybridScore, less.HybridScore)
}

func TestHybridScorer_FilterPolicy(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 0.3, MinKeywordScore: 2.0})

	scored := s.Score([]store.CandidateMatch{
		// Passes on distance alone.
		candidate("close", 0.25, store.ChunkMeta{Content: "nothing relevant"}),
		// Fails both: far and lexically silent.
		candidate("far-silent", 0.6, store.ChunkMeta{Content: "nothing relevant"}),
		// Passes on keyword evidence despite distance.
		candidate("far-lexical", 0.6, store.ChunkMeta{Content: "gasket replacement"}),
	}, "gasket")

	keys := make([]string, 0, len(scored))
	for _, c := range scored {
		keys = append(keys, c.Key)
	}
	assert.ElementsMatch(t, []string{"close", "far-lexical"}, keys)
}

func TestHybridScorer_StrongKeywordWidensDistance(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 0.3, MinKeywordScore: 100})

	// Raw score 6 (> 5) widens the limit to 0.45.
	within := candidate("within", 0.42, store.ChunkMeta{Content: "pump pump pump"})
	beyond := candidate("beyond", 0.50, store.ChunkMeta{Content: "pump pump pump"})

	scored := s.Score([]store.CandidateMatch{within, beyond}, "pump")

	require.Len(t, scored, 1)
	assert.Equal(t, "within", scored[0].Key)
}

func TestHybridScorer_TopKCap(t *testing.T) {
	s := NewHybridScorer(Options{MaxDistance: 1.0, TopKPerQuery: 2})

	scored := s.Score([]store.CandidateMatch{
		candidate("a", 0.1, store.ChunkMeta{}),
		candidate("b", 0.2, store.ChunkMeta{}),
		candidate("c", 0.3, store.ChunkMeta{}),
	}, "anything")

	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].Key)
}
