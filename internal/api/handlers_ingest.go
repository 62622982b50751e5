package api

import (
	"io"
	"net/http"
	"time"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// TriggerIngestRequest selects what to ingest. An empty source runs every
// registered source.
type TriggerIngestRequest struct {
	Source string `json:"source,omitempty"`
}

// TriggerIngestResponse reports the outcome of a manual trigger
type TriggerIngestResponse struct {
	Runs []*models.RunRecord `json:"runs"`
}

// handleTriggerIngest handles POST /api/ingest/run. The run executes
// synchronously; a trigger for a source that is already running is
// rejected with 409.
func (s *Server) handleTriggerIngest(w http.ResponseWriter, r *http.Request) {
	var req TriggerIngestRequest
	if err := parseJSONBody(r, &req); err != nil && err != io.EOF {
		respondCategorizedError(w, errors.NewInvalidParameterError("body", "must be valid JSON"))
		return
	}

	ctx := r.Context()

	if req.Source == "" {
		runs := s.ingest.RunAll(ctx)
		respondJSON(w, http.StatusOK, TriggerIngestResponse{Runs: runs})
		return
	}

	id := types.SourceID(req.Source)
	if !s.ingest.HasSource(id) {
		respondCategorizedError(w, errors.NewUnknownSourceError(req.Source))
		return
	}

	run, err := s.ingest.RunSource(ctx, id)
	if err != nil {
		if errors.IsConflict(err) {
			respondCategorizedError(w, err)
			return
		}
		// The run itself failed but was recorded; surface both
		if run != nil {
			respondJSON(w, http.StatusOK, TriggerIngestResponse{Runs: []*models.RunRecord{run}})
			return
		}
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, TriggerIngestResponse{Runs: []*models.RunRecord{run}})
}

// AggregatesResponse is the response body for analytics queries
type AggregatesResponse struct {
	CoinID   string      `json:"coin_id"`
	Interval string      `json:"interval"`
	Buckets  interface{} `json:"buckets"`
}

// handleAggregates handles GET /api/aggregates. Served from the ClickHouse
// mirror; returns 503 when no analytics store is configured.
func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	if s.aggregates == nil {
		respondCategorizedError(w, errors.NewUnavailableError("analytics store"))
		return
	}

	q := r.URL.Query()

	coinID := q.Get("coin_id")
	if coinID == "" {
		respondCategorizedError(w, errors.NewInvalidParameterError("coin_id", "is required"))
		return
	}

	interval := q.Get("interval")
	if interval == "" {
		interval = "1h"
	}
	switch interval {
	case "15m", "1h", "1d":
	default:
		respondCategorizedError(w, errors.NewInvalidParameterError("interval", "must be one of 15m, 1h, 1d"))
		return
	}

	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)

	var err error
	if raw := q.Get("since"); raw != "" {
		if since, err = time.Parse(time.RFC3339, raw); err != nil {
			respondCategorizedError(w, errors.NewInvalidParameterError("since", "must be an RFC3339 timestamp"))
			return
		}
	}
	if raw := q.Get("until"); raw != "" {
		if until, err = time.Parse(time.RFC3339, raw); err != nil {
			respondCategorizedError(w, errors.NewInvalidParameterError("until", "must be an RFC3339 timestamp"))
			return
		}
	}

	buckets, err := s.aggregates.Aggregates(r.Context(), coinID, interval, since, until)
	if err != nil {
		respondCategorizedError(w, errors.NewStorageError("query aggregates", err))
		return
	}

	respondJSON(w, http.StatusOK, AggregatesResponse{
		CoinID:   coinID,
		Interval: interval,
		Buckets:  buckets,
	})
}
