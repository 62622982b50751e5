package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/retry"
)

func newTestCoinGecko(t *testing.T, handler http.HandlerFunc) *CoinGeckoSource {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src := NewCoinGeckoSource(&config.CoinGeckoConfig{
		BaseURL:           server.URL,
		PageSize:          2,
		RequestsPerSecond: 1000,
	})
	// Keep test retries fast
	src.retryCfg = &retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
		RetryIf:      errors.IsTransient,
	}
	return src
}

func TestCoinGeckoFetch_FullPage(t *testing.T) {
	src := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "3" {
			t.Errorf("page = %s, want 3", got)
		}
		if got := r.URL.Query().Get("vs_currency"); got != "usd" {
			t.Errorf("vs_currency = %s, want usd", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"bitcoin","current_price":42000},{"id":"ethereum","current_price":2200}]`))
	})

	batch, err := src.Fetch(context.Background(), "3")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(batch.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(batch.Records))
	}
	if batch.Records[0].CoinID != "bitcoin" {
		t.Errorf("Records[0].CoinID = %s, want bitcoin", batch.Records[0].CoinID)
	}
	// Full page: next cursor advances to the following page
	if batch.NextCursor != "4" {
		t.Errorf("NextCursor = %q, want \"4\"", batch.NextCursor)
	}
}

func TestCoinGeckoFetch_ShortPageEndsPagination(t *testing.T) {
	src := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"bitcoin"}]`))
	})

	batch, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(batch.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(batch.Records))
	}
	if batch.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty for short page", batch.NextCursor)
	}
}

func TestCoinGeckoFetch_ServerErrorIsTransient(t *testing.T) {
	src := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := src.Fetch(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsTransient(err) {
		t.Errorf("error category = %v, want transient_fetch", errors.CategoryOf(err))
	}
}

func TestCoinGeckoFetch_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	src := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"bitcoin"}]`))
	})

	batch, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls)
	}
	if len(batch.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(batch.Records))
	}
}

func TestCoinGeckoFetch_MalformedBodyIsNotRetried(t *testing.T) {
	calls := 0
	src := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	})

	_, err := src.Fetch(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CategoryOf(err) != errors.CategoryMalformedResponse {
		t.Errorf("error category = %v, want malformed_response", errors.CategoryOf(err))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (malformed responses are not retried)", calls)
	}
}

func TestCoinGeckoFetch_BadCursor(t *testing.T) {
	src := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for a bad cursor")
	})

	_, err := src.Fetch(context.Background(), "not-a-page")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CategoryOf(err) != errors.CategoryMalformedResponse {
		t.Errorf("error category = %v, want malformed_response", errors.CategoryOf(err))
	}
}
