// Package errors provides the error taxonomy and the shared retry policy
// for the retrieval pipeline.
//
// Failures fall into four buckets: provider failures (recovered locally
// via deterministic fallbacks), per-index query failures (recovered by
// exclusion), empty result sets (not errors at all), and configuration
// errors (the only caller-visible failures).
package errors

import (
	"errors"
	"strings"
)

// Sentinel errors for the retrieval pipeline.
var (
	// ErrRateLimited indicates a provider rejected a call due to rate
	// limiting. Calls wrapped in Retry back off and try again.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrProviderUnavailable indicates an embedding or completion
	// provider could not be reached after retries. Recovered locally by
	// the fallback path, never surfaced to callers.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoIndices indicates no index names were supplied and none could
	// be resolved from the backend. This is a caller contract violation
	// and the only error that propagates out of the pipeline.
	ErrNoIndices = errors.New("no indices configured")
)

// IsRateLimited reports whether err signals provider rate limiting,
// either via the sentinel or a recognizable provider message.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}
