package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/retry"
	"github.com/price-etl/internal/types"
	"golang.org/x/time/rate"
)

// CoinPaprikaSource fetches ticker data from the CoinPaprika /tickers
// endpoint. The endpoint is not paginated: every fetch returns a single
// bounded snapshot and no next cursor.
type CoinPaprikaSource struct {
	baseURL  string
	apiKey   string
	limit    int
	client   *http.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
}

// NewCoinPaprikaSource creates a CoinPaprika source adapter
func NewCoinPaprikaSource(cfg *config.CoinPaprikaConfig) *CoinPaprikaSource {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.RetryIf = errors.IsTransient

	return &CoinPaprikaSource{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		limit:    limit,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg: retryCfg,
	}
}

// ID returns the source identifier
func (s *CoinPaprikaSource) ID() types.SourceID {
	return types.SourceCoinPaprika
}

type coinPaprikaTicker struct {
	ID string `json:"id"`
}

// Fetch retrieves the current ticker snapshot, capped at the configured
// limit. The cursor is ignored: the snapshot always reflects "now".
func (s *CoinPaprikaSource) Fetch(ctx context.Context, cursor string) (*Batch, error) {
	var payloads []json.RawMessage
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		var fetchErr error
		payloads, fetchErr = s.fetchTickers(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	if len(payloads) > s.limit {
		payloads = payloads[:s.limit]
	}

	records := make([]Raw, 0, len(payloads))
	for _, payload := range payloads {
		var ticker coinPaprikaTicker
		if err := json.Unmarshal(payload, &ticker); err != nil {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("decoding ticker entry: %w", err))
		}
		records = append(records, Raw{CoinID: ticker.ID, Payload: payload})
	}

	return &Batch{Records: records}, nil
}

func (s *CoinPaprikaSource) fetchTickers(ctx context.Context) ([]json.RawMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTransientFetchError(s.ID(), err)
	}

	endpoint := fmt.Sprintf("%s/tickers", s.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewMalformedResponseError(s.ID(), err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewTransientFetchError(s.ID(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, errors.NewTransientFetchError(s.ID(), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFetchError(s.ID(), err)
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("decoding tickers response: %w", err))
	}

	return payloads, nil
}
