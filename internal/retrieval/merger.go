package retrieval

import "sort"

// Combined-score weights. Appearance frequency dominates: a chunk that
// several differently-phrased queries agree on is stronger evidence
// than a single close match.
const (
	weightAppearance   = 0.4
	weightBestRank     = 0.3
	weightAverageRank  = 0.2
	weightBestDistance = 0.1

	// neutralDistanceScore stands in when no distance was recorded.
	neutralDistanceScore = 0.5
)

// VariantResults is one variant's ranked candidate list, best first.
type VariantResults struct {
	Variant    QueryVariant
	Candidates []ScoredCandidate
}

// RankMerger folds per-variant ranked lists into one list keyed by
// chunk identity.
type RankMerger struct {
	topK int
}

// NewRankMerger builds a merger returning at most topK results.
func NewRankMerger(topK int) *RankMerger {
	if topK <= 0 {
		topK = DefaultFinalTopK
	}
	return &RankMerger{topK: topK}
}

// Merge aggregates appearance and rank statistics per chunk, computes
// combined scores, and returns the top results sorted descending.
// Ties keep first-seen order.
func (m *RankMerger) Merge(perVariant []VariantResults) []RankedResult {
	byKey := make(map[string]*RankedResult)
	var order []string

	for _, vr := range perVariant {
		for pos, cand := range vr.Candidates {
			rank := pos + 1

			r, ok := byKey[cand.Key]
			if !ok {
				r = &RankedResult{
					Key:          cand.Key,
					Index:        cand.Index,
					Meta:         cand.Meta,
					BestRank:     rank,
					BestDistance: -1,
				}
				byKey[cand.Key] = r
				order = append(order, cand.Key)
			}

			r.AverageRank = (r.AverageRank*float64(r.Appearances) + float64(rank)) / float64(r.Appearances+1)
			r.Appearances++
			if rank < r.BestRank {
				r.BestRank = rank
			}
			r.SourceQueries = append(r.SourceQueries, vr.Variant.Text)
			if r.BestDistance < 0 || cand.Distance < r.BestDistance {
				r.BestDistance = cand.Distance
			}
		}
	}

	totalVariants := len(perVariant)
	results := make([]RankedResult, 0, len(order))
	for _, key := range order {
		r := byKey[key]
		r.CombinedScore = combinedScore(r, totalVariants)
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	if len(results) > m.topK {
		results = results[:m.topK]
	}
	return results
}

func combinedScore(r *RankedResult, totalVariants int) float64 {
	var appearanceScore float64
	if totalVariants > 0 {
		appearanceScore = float64(r.Appearances) / float64(totalVariants)
	}

	distanceScore := neutralDistanceScore
	if r.BestDistance >= 0 {
		distanceScore = 1 - r.BestDistance
	}

	return weightAppearance*appearanceScore +
		weightBestRank/float64(r.BestRank) +
		weightAverageRank/r.AverageRank +
		weightBestDistance*distanceScore
}
