package retrieval

import (
	"regexp"
	"sort"
	"strings"

	"github.com/docrank/docrank/internal/store"
)

// Keyword point values. Section-number hits dominate because embedding
// models under-weight numeric references.
const (
	pointsPerContentHit   = 2.0
	pointsSectionNumber   = 10.0
	pointsSectionTitle    = 5.0
	pointsTag             = 3.0
	pointsSummary         = 2.0
	keywordNormalizer     = 10.0
	minKeywordTokenLength = 3
)

var sectionNumberPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// HybridScorer re-scores candidates by blending vector distance with
// keyword overlap against the question, then filters and ranks them.
type HybridScorer struct {
	weightVector    float64
	maxDistance     float64
	minKeywordScore float64
	topK            int
}

// NewHybridScorer builds a scorer from pipeline options.
func NewHybridScorer(opts Options) *HybridScorer {
	opts = opts.normalized()
	return &HybridScorer{
		weightVector:    opts.WeightVector,
		maxDistance:     opts.MaxDistance,
		minKeywordScore: opts.MinKeywordScore,
		topK:            opts.TopKPerQuery,
	}
}

// Score filters and ranks one variant's candidates. The returned list
// is ordered by hybrid score descending and capped at the configured
// top-N.
func (s *HybridScorer) Score(candidates []store.CandidateMatch, question string) []ScoredCandidate {
	keywords := ExtractKeywords(question)

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		raw := keywordPoints(c.Meta, keywords)
		if !s.passesFilter(c.Distance, raw) {
			continue
		}

		normalized := raw / keywordNormalizer
		if normalized > 1 {
			normalized = 1
		}
		vectorScore := 1 - c.Distance

		scored = append(scored, ScoredCandidate{
			CandidateMatch:  c,
			RawKeywordScore: raw,
			KeywordScore:    normalized,
			HybridScore:     s.weightVector*vectorScore + (1-s.weightVector)*normalized,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].HybridScore > scored[j].HybridScore
	})
	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}
	return scored
}

// passesFilter admits a candidate on distance or keyword evidence.
// Strong lexical evidence widens the acceptable distance.
func (s *HybridScorer) passesFilter(distance, rawKeywordScore float64) bool {
	limit := s.maxDistance
	if rawKeywordScore > strongKeywordCutoff {
		limit *= distanceWideningFactor
	}
	return distance <= limit || rawKeywordScore >= s.minKeywordScore
}

// ExtractKeywords pulls scoring keywords from the question: tokens
// longer than 2 characters that are not stop-words, plus section-number
// tokens matched separately so they survive filtering.
func ExtractKeywords(question string) []string {
	var (
		keywords []string
		seen     = map[string]bool{}
	)
	for _, tok := range tokenize(question) {
		lower := strings.ToLower(tok)
		if seen[lower] {
			continue
		}
		if sectionNumberPattern.MatchString(tok) {
			seen[lower] = true
			keywords = append(keywords, tok)
			continue
		}
		if len([]rune(tok)) < minKeywordTokenLength || stopWords[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, lower)
	}
	return keywords
}

// keywordPoints accumulates raw keyword evidence for one chunk.
func keywordPoints(meta store.ChunkMeta, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	content := strings.ToLower(meta.Content)
	sectionTitle := strings.ToLower(meta.SectionTitle)
	summary := strings.ToLower(meta.Summary)

	var points float64
	for _, kw := range keywords {
		points += pointsPerContentHit * float64(wholeWordCount(content, kw))

		if meta.SectionNumber != "" && kw == meta.SectionNumber {
			points += pointsSectionNumber
		}
		if sectionTitle != "" && strings.Contains(sectionTitle, kw) {
			points += pointsSectionTitle
		}
		for _, tag := range meta.Tags {
			if strings.EqualFold(tag, kw) {
				points += pointsTag
				break
			}
		}
		if summary != "" && strings.Contains(summary, kw) {
			points += pointsSummary
		}
	}
	return points
}

// wholeWordCount counts exact whole-word occurrences of kw in text.
// Both inputs must already be lower-cased.
func wholeWordCount(text, kw string) int {
	if text == "" || kw == "" {
		return 0
	}
	var count int
	for start := 0; ; {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return count
		}
		i += start
		end := i + len(kw)
		if isWordBoundary(text, i-1) && isWordBoundary(text, end) {
			count++
		}
		start = end
	}
}

func isWordBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}
