// Package llm provides the optional text-completion collaborator used
// for query expansion. The pipeline works without it; every caller must
// handle an unavailable provider by degrading to heuristics.
package llm

import "context"

// CompletionProvider produces a text completion for a prompt pair.
type CompletionProvider interface {
	// Complete returns the completion text for the given prompts.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)

	// Available checks if the provider is reachable.
	Available(ctx context.Context) bool
}
