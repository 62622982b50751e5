package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/retry"
	"github.com/price-etl/internal/types"
	"golang.org/x/time/rate"
)

// CoinGeckoSource fetches market data from the CoinGecko /coins/markets
// endpoint. The cursor is the page number; the source signals exhaustion
// by returning an empty next cursor once a short page comes back.
type CoinGeckoSource struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
}

// NewCoinGeckoSource creates a CoinGecko source adapter
func NewCoinGeckoSource(cfg *config.CoinGeckoConfig) *CoinGeckoSource {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 100
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.RetryIf = errors.IsTransient

	return &CoinGeckoSource{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg: retryCfg,
	}
}

// ID returns the source identifier
func (s *CoinGeckoSource) ID() types.SourceID {
	return types.SourceCoinGecko
}

// coinGeckoMarket is the minimal shape needed to label a record; the full
// payload is carried through verbatim
type coinGeckoMarket struct {
	ID string `json:"id"`
}

// Fetch retrieves one page of market data. The cursor is a 1-based page
// number; an empty cursor starts from page 1.
func (s *CoinGeckoSource) Fetch(ctx context.Context, cursor string) (*Batch, error) {
	page := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 1 {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("invalid page cursor %q", cursor))
		}
		page = parsed
	}

	var payloads []json.RawMessage
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		var fetchErr error
		payloads, fetchErr = s.fetchPage(ctx, page)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	records := make([]Raw, 0, len(payloads))
	for _, payload := range payloads {
		var market coinGeckoMarket
		if err := json.Unmarshal(payload, &market); err != nil {
			return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("decoding market entry: %w", err))
		}
		records = append(records, Raw{CoinID: market.ID, Payload: payload})
	}

	// A short page means there is no further page to resume from
	nextCursor := ""
	if len(records) == s.pageSize {
		nextCursor = strconv.Itoa(page + 1)
	}

	return &Batch{Records: records, NextCursor: nextCursor}, nil
}

func (s *CoinGeckoSource) fetchPage(ctx context.Context, page int) ([]json.RawMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTransientFetchError(s.ID(), err)
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(s.pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("sparkline", "false")

	endpoint := fmt.Sprintf("%s/coins/markets?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewMalformedResponseError(s.ID(), err)
	}
	if s.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", s.apiKey)
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
		return nil, errors.NewMalformedResponseError(s.ID(), fmt.Errorf("decoding markets response: %w", err))
	}

	return payloads, nil
}
