package retrieval

// Default pipeline tuning. The filter thresholds are empirically tuned
// carry-overs, kept as configuration rather than invariants.
const (
	DefaultMaxQueries      = 5
	DefaultTopKPerQuery    = 10
	DefaultFinalTopK       = 10
	DefaultWeightVector    = 0.7
	DefaultMaxDistance     = 0.3
	DefaultMinKeywordScore = 2.0
	DefaultMaxResults      = 10
	DefaultParallelism     = 4

	// strongKeywordCutoff is the raw keyword score above which lexical
	// evidence widens the distance filter.
	strongKeywordCutoff = 5.0

	// distanceWideningFactor applied to maxDistance on a strong keyword hit.
	distanceWideningFactor = 1.5

	// supportingScoreDiscount applied to injected adjacent chunks.
	supportingScoreDiscount = 0.8
)

// Options tunes one pipeline invocation.
type Options struct {
	// MaxQueries caps the variant set, original question included.
	MaxQueries int

	// TopKPerQuery bounds the candidate pool per variant.
	TopKPerQuery int

	// FinalTopK bounds the merged ranked list.
	FinalTopK int

	// WeightVector is the vector share of the hybrid blend; the keyword
	// share is its complement.
	WeightVector float64

	// MaxDistance is the base distance filter threshold.
	MaxDistance float64

	// MinKeywordScore is the raw keyword point total that lets a
	// candidate pass the filter regardless of distance.
	MinKeywordScore float64

	// ExpandContext pulls in adjacent chunks as supporting evidence.
	ExpandContext bool

	// MaxResults bounds the assembled response's chunk count.
	MaxResults int

	// Parallelism bounds concurrent variant processing.
	Parallelism int
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		MaxQueries:      DefaultMaxQueries,
		TopKPerQuery:    DefaultTopKPerQuery,
		FinalTopK:       DefaultFinalTopK,
		WeightVector:    DefaultWeightVector,
		MaxDistance:     DefaultMaxDistance,
		MinKeywordScore: DefaultMinKeywordScore,
		MaxResults:      DefaultMaxResults,
		Parallelism:     DefaultParallelism,
	}
}

// normalized fills zero values with defaults and clamps nonsense.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxQueries <= 0 {
		o.MaxQueries = def.MaxQueries
	}
	if o.TopKPerQuery <= 0 {
		o.TopKPerQuery = def.TopKPerQuery
	}
	if o.FinalTopK <= 0 {
		o.FinalTopK = def.FinalTopK
	}
	if o.WeightVector <= 0 || o.WeightVector > 1 {
		o.WeightVector = def.WeightVector
	}
	if o.MaxDistance <= 0 {
		o.MaxDistance = def.MaxDistance
	}
	if o.MinKeywordScore <= 0 {
		o.MinKeywordScore = def.MinKeywordScore
	}
	if o.MaxResults <= 0 {
		o.MaxResults = def.MaxResults
	}
	if o.Parallelism <= 0 {
		o.Parallelism = def.Parallelism
	}
	return o
}
