package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-etl/internal/logging"
)

var errRemote = errors.New("remote failure")

func newTestBreaker(t *testing.T, mutate func(*Config)) *CircuitBreaker {
	t.Helper()

	config := DefaultConfig("test")
	config.MaxFailures = 3
	config.Timeout = 50 * time.Millisecond
	config.HalfOpenMaxCalls = 2
	config.Logger = logging.NewLogger(logging.LevelError, logging.FormatText)
	if mutate != nil {
		mutate(config)
	}

	return NewCircuitBreaker(config)
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := newTestBreaker(t, nil)

	assert.Equal(t, StateClosed, cb.GetState())

	err := cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return errRemote })
		require.ErrorIs(t, err, errRemote)
	}

	assert.Equal(t, StateOpen, cb.GetState())

	// Once open, calls are rejected without invoking the function
	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	cb := newTestBreaker(t, nil)

	for i := 0; i < 10; i++ {
		_ = cb.Execute(context.Background(), func() error { return errRemote })
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	}

	// Alternating failures never accumulate enough consecutive failures,
	// and the failure rate stays at 0.5 with threshold 0.5 only after the
	// minimum sample. Raise the threshold so rate alone cannot trip it.
	cbStrict := newTestBreaker(t, func(c *Config) { c.FailureThreshold = 0.9 })
	for i := 0; i < 10; i++ {
		_ = cbStrict.Execute(context.Background(), func() error { return errRemote })
		require.NoError(t, cbStrict.Execute(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cbStrict.GetState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errRemote })
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)

	// First call after the timeout probes the service
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errRemote })
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return errRemote })
	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errRemote })
	}
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := newTestBreaker(t, nil)

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	_ = cb.Execute(context.Background(), func() error { return errRemote })

	stats := cb.GetStats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 2, stats.TotalCalls)
	assert.InDelta(t, 0.5, stats.FailureRate, 0.001)
	assert.False(t, stats.LastFailureTime.IsZero())
}
