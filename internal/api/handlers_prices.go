package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/storage"
	"github.com/price-etl/internal/types"
)

// PricesResponse is the response body for price listings. RequestID and
// LatencyMs describe the request that produced the response, so they are
// stamped fresh even on a cache hit.
type PricesResponse struct {
	Prices    []*models.PriceRecord `json:"prices"`
	Count     int                   `json:"count"`
	RequestID string                `json:"request_id,omitempty"`
	LatencyMs int64                 `json:"latency_ms"`
}

func (resp *PricesResponse) stamp(start time.Time) {
	resp.RequestID = uuid.New().String()
	resp.LatencyMs = time.Since(start).Milliseconds()
}

// handleListPrices handles GET /api/prices
func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, err := parsePriceFilter(r)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	if !validSourceParam(s.ingest, filter.Source) {
		respondCategorizedError(w, errors.NewUnknownSourceError(string(filter.Source)))
		return
	}

	ctx := r.Context()

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GeneratePricesKey(filter.Source, filterHash(filter))

		var cached PricesResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			cached.stamp(start)
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	prices, err := s.prices.List(ctx, filter)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	response := PricesResponse{Prices: prices, Count: len(prices)}
	if response.Prices == nil {
		response.Prices = []*models.PriceRecord{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.WithError(err).Warn("failed to cache price listing")
		}
	}

	response.stamp(start)
	respondJSON(w, http.StatusOK, response)
}

// handleLatestPrices handles GET /api/prices/latest
func (s *Server) handleLatestPrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	source := types.SourceID(r.URL.Query().Get("source"))
	if !validSourceParam(s.ingest, source) {
		respondCategorizedError(w, errors.NewUnknownSourceError(string(source)))
		return
	}

	limit, err := parseIntParam(r, "limit", 100)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	prices, err := s.prices.Latest(r.Context(), source, limit)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	if prices == nil {
		prices = []*models.PriceRecord{}
	}

	response := PricesResponse{Prices: prices, Count: len(prices)}
	response.stamp(start)
	respondJSON(w, http.StatusOK, response)
}

// parsePriceFilter extracts and validates the price listing filter
func parsePriceFilter(r *http.Request) (storage.PriceFilter, error) {
	q := r.URL.Query()

	filter := storage.PriceFilter{
		CoinID: q.Get("coin_id"),
		Symbol: q.Get("symbol"),
		Source: types.SourceID(q.Get("source")),
	}

	var err error
	if filter.Limit, err = parseIntParam(r, "limit", 100); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseIntParam(r, "offset", 0); err != nil {
		return filter, err
	}

	if since := q.Get("since"); since != "" {
		t, parseErr := time.Parse(time.RFC3339, since)
		if parseErr != nil {
			return filter, errors.NewInvalidParameterError("since", "must be an RFC3339 timestamp")
		}
		filter.Since = &t
	}
	if until := q.Get("until"); until != "" {
		t, parseErr := time.Parse(time.RFC3339, until)
		if parseErr != nil {
			return filter, errors.NewInvalidParameterError("until", "must be an RFC3339 timestamp")
		}
		filter.Until = &t
	}

	if filter.Since != nil && filter.Until != nil && filter.Until.Before(*filter.Since) {
		return filter, errors.NewInvalidParameterError("until", "must not be before 'since'")
	}

	return filter, nil
}

// parseIntParam parses a non-negative integer query parameter
func parseIntParam(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.NewInvalidParameterError(name, "must be a non-negative integer")
	}

	return value, nil
}

// validSourceParam accepts an empty source (no filter) or a registered one
func validSourceParam(ingest IngestServiceInterface, source types.SourceID) bool {
	if source == "" {
		return true
	}
	return ingest.HasSource(source)
}

// filterHash produces a stable cache key fragment for a filter
func filterHash(filter storage.PriceFilter) string {
	data, err := json.Marshal(filter)
	if err != nil {
		return "unhashable"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
