package embed

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ResilientProvider wraps an optional remote provider with a
// deterministic fallback. When no remote provider is configured the
// fallback path is taken unconditionally, with no network calls and no
// pacing delay. When one is configured, calls to it are serialized and
// spaced by a minimum courtesy delay so concurrent variant embeddings
// do not amplify rate-limit pressure; any remote failure degrades to
// the fallback instead of failing the request.
type ResilientProvider struct {
	primary  Provider // may be nil
	fallback *FallbackProvider
	delay    time.Duration
	logger   *slog.Logger

	mu       sync.Mutex // serializes remote calls
	lastCall time.Time
	degraded bool
}

var _ Provider = (*ResilientProvider)(nil)

// ResilientOption configures the resilient provider.
type ResilientOption func(*ResilientProvider)

// WithResilientLogger sets the logger.
func WithResilientLogger(l *slog.Logger) ResilientOption {
	return func(p *ResilientProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewResilientProvider creates the degradation-aware provider.
// primary may be nil for fallback-only mode. The fallback matches the
// primary's dimension so degraded-mode vectors stay compatible with
// indices built from primary embeddings.
func NewResilientProvider(primary Provider, courtesyDelay time.Duration, opts ...ResilientOption) *ResilientProvider {
	if courtesyDelay < 0 {
		courtesyDelay = DefaultCourtesyDelay
	}

	fallbackDims := 0
	if primary != nil {
		fallbackDims = primary.Dimensions()
	}

	p := &ResilientProvider{
		primary:  primary,
		fallback: NewFallbackProvider(fallbackDims),
		delay:    courtesyDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed never returns an error for embedding generation: the fallback
// covers every remote failure mode.
func (p *ResilientProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.primary == nil {
		return p.fallback.Embed(ctx, text)
	}

	p.mu.Lock()
	if err := p.pace(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	vec, err := p.primary.Embed(ctx, text)
	p.lastCall = time.Now()
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.markDegraded(err)
		return p.fallback.Embed(ctx, text)
	}
	return vec, nil
}

// pace enforces the minimum inter-call delay. Callers hold p.mu.
func (p *ResilientProvider) pace(ctx context.Context) error {
	if p.delay <= 0 || p.lastCall.IsZero() {
		return nil
	}
	wait := p.delay - time.Since(p.lastCall)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (p *ResilientProvider) markDegraded(err error) {
	p.mu.Lock()
	first := !p.degraded
	p.degraded = true
	p.mu.Unlock()

	if first {
		p.logger.Warn("embedding provider failed, degrading to deterministic fallback",
			slog.String("provider", p.primary.ModelName()),
			slog.String("error", err.Error()))
	} else {
		p.logger.Debug("embedding via fallback",
			slog.String("error", err.Error()))
	}
}

// Degraded reports whether at least one remote call has fallen back.
func (p *ResilientProvider) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// Dimensions returns the remote dimension when known, the fallback
// dimension otherwise.
func (p *ResilientProvider) Dimensions() int {
	if p.primary != nil {
		if d := p.primary.Dimensions(); d > 0 {
			return d
		}
	}
	return p.fallback.Dimensions()
}

// ModelName returns the active model identifier.
func (p *ResilientProvider) ModelName() string {
	if p.primary != nil {
		return p.primary.ModelName()
	}
	return p.fallback.ModelName()
}

// Available always reports true: the fallback path cannot fail.
func (p *ResilientProvider) Available(_ context.Context) bool { return true }

// Close releases the remote provider's resources.
func (p *ResilientProvider) Close() error {
	if p.primary != nil {
		return p.primary.Close()
	}
	return nil
}
