package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docrank/docrank/internal/llm"
)

// stopWords filtered out of both heuristic expansion and keyword
// extraction.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "but": true, "by": true, "for": true,
	"from": true, "has": true, "have": true, "how": true, "in": true,
	"is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true,
	"will": true, "with": true, "do": true, "does": true, "did": true,
	"about": true, "into": true, "can": true, "could": true,
	"should": true, "would": true, "me": true, "my": true, "you": true,
	"your": true, "we": true, "they": true, "their": true, "there": true,
}

// temporalWords trigger the final/closing synonym family in heuristic
// expansion.
var temporalWords = []string{
	"final", "last", "latest", "ending", "end", "closing", "conclusion",
	"concluding", "recent",
}

const expansionSystemPrompt = `You generate search query variants. Given a question, produce alternative search queries that would retrieve relevant passages: rephrasings, key-concept extractions, synonym substitutions, and sub-question decompositions. Output one query per line with no numbering, bullets, or commentary.`

// Expander turns one question into a bounded set of query variants.
// The original question is always the first variant. A completion
// provider is used when configured and reachable; otherwise a
// deterministic heuristic fallback runs.
type Expander struct {
	provider   llm.CompletionProvider
	maxQueries int
	logger     *slog.Logger
}

// ExpanderOption configures the expander.
type ExpanderOption func(*Expander)

// WithCompletionProvider sets the optional completion provider.
func WithCompletionProvider(p llm.CompletionProvider) ExpanderOption {
	return func(e *Expander) {
		e.provider = p
	}
}

// WithMaxQueries caps the variant set, original included.
func WithMaxQueries(n int) ExpanderOption {
	return func(e *Expander) {
		if n > 0 {
			e.maxQueries = n
		}
	}
}

// WithExpanderLogger sets the logger.
func WithExpanderLogger(l *slog.Logger) ExpanderOption {
	return func(e *Expander) {
		e.logger = l
	}
}

// NewExpander creates an expander with defaults.
func NewExpander(opts ...ExpanderOption) *Expander {
	e := &Expander{
		maxQueries: DefaultMaxQueries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns at most maxQueries variants, the original question
// first. Provider failures degrade to heuristics and never error.
func (e *Expander) Expand(ctx context.Context, question string) []QueryVariant {
	question = strings.TrimSpace(question)
	variants := []QueryVariant{{Text: question, Origin: OriginOriginal}}
	if e.maxQueries <= 1 || question == "" {
		return variants[:min(len(variants), max(e.maxQueries, 1))]
	}

	var generated []string
	if e.provider != nil {
		var err error
		generated, err = e.generateVariants(ctx, question)
		if err != nil {
			e.logger.Warn("query expansion via provider failed, using heuristics",
				"error", err)
			generated = nil
		}
	}
	if len(generated) == 0 {
		generated = heuristicVariants(question)
	}

	seen := map[string]bool{strings.ToLower(question): true}
	for _, g := range generated {
		if len(variants) >= e.maxQueries {
			break
		}
		lower := strings.ToLower(g)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		variants = append(variants, QueryVariant{Text: g, Origin: OriginGenerated})
	}
	return variants
}

// generateVariants asks the completion provider for related queries,
// one per line.
func (e *Expander) generateVariants(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf("Generate %d alternative search queries for: %s",
		e.maxQueries-1, question)

	out, err := e.provider.Complete(ctx, expansionSystemPrompt, prompt, 256, 0.7)
	if err != nil {
		return nil, err
	}

	var queries []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isBulletLine(line) {
			continue
		}
		queries = append(queries, line)
	}
	return queries, nil
}

func isBulletLine(line string) bool {
	for _, prefix := range []string{"-", "*", "•", "–"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// heuristicVariants derives variants without a provider: the question's
// trailing tokens, its keyword phrase, and a synonym family for
// temporal/closing language.
func heuristicVariants(question string) []string {
	tokens := tokenize(question)

	var keywords []string
	for _, tok := range tokens {
		if !stopWords[strings.ToLower(tok)] {
			keywords = append(keywords, tok)
		}
	}

	var variants []string
	if n := len(tokens); n > 4 {
		variants = append(variants, strings.Join(tokens[n-4:], " "))
	}
	if len(keywords) > 0 && len(keywords) < len(tokens) {
		variants = append(variants, strings.Join(keywords, " "))
	}

	if hasTemporalLanguage(tokens) {
		subject := strings.Join(keywords, " ")
		if subject == "" {
			subject = question
		}
		variants = append(variants,
			"final "+subject,
			"last "+subject,
			"conclusion "+subject,
		)
	}
	return variants
}

func hasTemporalLanguage(tokens []string) bool {
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		for _, w := range temporalWords {
			if lower == w {
				return true
			}
		}
	}
	return false
}

// tokenize splits on whitespace and strips surrounding punctuation,
// keeping interior dots so section numbers like "3.2.1" survive.
func tokenize(s string) []string {
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
