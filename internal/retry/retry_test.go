package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithExponentialBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("expected success")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if !result.Success {
		t.Errorf("expected success, last error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestWithExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("permanent")
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		return wantErr
	})

	if result.Success {
		t.Error("expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if !errors.Is(result.LastError, wantErr) {
		t.Errorf("LastError = %v, want %v", result.LastError, wantErr)
	}
}

func TestWithExponentialBackoff_RetryIfStopsEarly(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryIf = func(err error) bool { return false }

	calls := 0
	result := WithExponentialBackoff(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("non-retryable")
	})

	if result.Success {
		t.Error("expected failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for non-retryable errors)", calls)
	}
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := WithExponentialBackoff(ctx, fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if result.Success {
		t.Error("expected failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 after cancellation", calls)
	}
}

func TestDo_WrapsFinalError(t *testing.T) {
	wantErr := errors.New("boom")
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		return wantErr
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error chain does not contain cause: %v", err)
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := &Config{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 10 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := calculateDelay(cfg, tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
