package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompletion returns a canned completion or an error.
type stubCompletion struct {
	response string
	err      error
	calls    int
}

func (s *stubCompletion) Complete(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubCompletion) Available(_ context.Context) bool { return s.err == nil }

func TestExpander_OriginalAlwaysFirst(t *testing.T) {
	e := NewExpander()
	variants := e.Expand(context.Background(), "how does chlorine dosing work")

	require.NotEmpty(t, variants)
	assert.Equal(t, "how does chlorine dosing work", variants[0].Text)
	assert.Equal(t, OriginOriginal, variants[0].Origin)
}

func TestExpander_ProviderLinesParsed(t *testing.T) {
	provider := &stubCompletion{response: "chlorine dosage rate\n\n- bulleted noise\n  pool disinfection procedure  \n* more noise"}
	e := NewExpander(WithCompletionProvider(provider), WithMaxQueries(5))

	variants := e.Expand(context.Background(), "how much chlorine")

	require.Len(t, variants, 3)
	assert.Equal(t, "how much chlorine", variants[0].Text)
	assert.Equal(t, "chlorine dosage rate", variants[1].Text)
	assert.Equal(t, "pool disinfection procedure", variants[2].Text)
	for _, v := range variants[1:] {
		assert.Equal(t, OriginGenerated, v.Origin)
	}
}

func TestExpander_ProviderFailureFallsBackToHeuristics(t *testing.T) {
	provider := &stubCompletion{err: errors.New("connection refused")}
	e := NewExpander(WithCompletionProvider(provider), WithMaxQueries(5))

	variants := e.Expand(context.Background(), "what was the outcome of the final battle")

	require.Greater(t, len(variants), 1)
	assert.Equal(t, "what was the outcome of the final battle", variants[0].Text)
	assert.Equal(t, 1, provider.calls)
}

func TestExpander_CapRespected(t *testing.T) {
	provider := &stubCompletion{response: "one\ntwo\nthree\nfour\nfive\nsix\nseven"}
	e := NewExpander(WithCompletionProvider(provider), WithMaxQueries(3))

	variants := e.Expand(context.Background(), "original question")

	require.Len(t, variants, 3)
	assert.Equal(t, "original question", variants[0].Text)
}

func TestExpander_DeduplicatesVariants(t *testing.T) {
	provider := &stubCompletion{response: "Original Question\nfresh phrasing\nFRESH PHRASING"}
	e := NewExpander(WithCompletionProvider(provider), WithMaxQueries(5))

	variants := e.Expand(context.Background(), "original question")

	require.Len(t, variants, 2)
	assert.Equal(t, "fresh phrasing", variants[1].Text)
}

func TestExpander_TemporalSynonymFamily(t *testing.T) {
	e := NewExpander(WithMaxQueries(10))
	variants := e.Expand(context.Background(), "the final chapter of the report")

	texts := make([]string, 0, len(variants))
	for _, v := range variants {
		texts = append(texts, v.Text)
	}
	assert.Contains(t, texts, "last final chapter report")
	assert.Contains(t, texts, "conclusion final chapter report")
}

func TestExpander_HeuristicsDeterministic(t *testing.T) {
	e := NewExpander(WithMaxQueries(5))
	a := e.Expand(context.Background(), "what is the last maintenance interval for the pump")
	b := e.Expand(context.Background(), "what is the last maintenance interval for the pump")
	assert.Equal(t, a, b)
}

func TestTokenize_KeepsSectionNumbers(t *testing.T) {
	tokens := tokenize("see section 3.2.1, then stop.")
	assert.Equal(t, []string{"see", "section", "3.2.1", "then", "stop"}, tokens)
}
