package source

import (
	"context"
	stderrors "errors"

	"github.com/price-etl/internal/circuitbreaker"
	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/types"
)

// GuardedSource wraps a remote source with a circuit breaker so a failing
// API trips fast instead of eating the full retry budget on every cycle.
// Local sources (CSV) do not need guarding.
type GuardedSource struct {
	inner   Source
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedSource wraps src with a circuit breaker. A nil config uses the
// breaker defaults keyed by the source ID.
func NewGuardedSource(src Source, config *circuitbreaker.Config) *GuardedSource {
	if config == nil {
		config = circuitbreaker.DefaultConfig(string(src.ID()))
	}

	return &GuardedSource{
		inner:   src,
		breaker: circuitbreaker.NewCircuitBreaker(config),
	}
}

// ID returns the wrapped source's identifier.
func (g *GuardedSource) ID() types.SourceID {
	return g.inner.ID()
}

// Fetch delegates to the wrapped source through the circuit breaker. An open
// circuit surfaces as a transient fetch error so the orchestrator records a
// failed run without advancing the checkpoint.
func (g *GuardedSource) Fetch(ctx context.Context, cursor string) (*Batch, error) {
	var batch *Batch

	err := g.breaker.Execute(ctx, func() error {
		var fetchErr error
		batch, fetchErr = g.inner.Fetch(ctx, cursor)
		return fetchErr
	})
	if err != nil {
		if stderrors.Is(err, circuitbreaker.ErrCircuitOpen) || stderrors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, errors.NewTransientFetchError(g.inner.ID(), err)
		}
		return nil, err
	}

	return batch, nil
}

// BreakerStats exposes the breaker state for health reporting.
func (g *GuardedSource) BreakerStats() *circuitbreaker.Stats {
	return g.breaker.GetStats()
}
