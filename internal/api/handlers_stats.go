package api

import (
	"net/http"
	"time"

	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/storage"
	"github.com/price-etl/internal/types"
)

// HealthResponse reports service and per-source health. Cache and
// analytics are optional dependencies; when they are down the service is
// degraded, not unhealthy.
type HealthResponse struct {
	Status    string                              `json:"status"`
	Service   string                              `json:"service"`
	Database  string                              `json:"database"`
	Cache     string                              `json:"cache"`
	Analytics string                              `json:"analytics"`
	Sources   map[types.SourceID]SourceHealthInfo `json:"sources"`
}

// SourceHealthInfo is the per-source section of the health report
type SourceHealthInfo struct {
	Health    types.SourceHealth `json:"health"`
	LastRunID string             `json:"last_run_id,omitempty"`
	LastRunAt *time.Time         `json:"last_run_at,omitempty"`
	InFlight  bool               `json:"in_flight"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := HealthResponse{
		Status:    "healthy",
		Service:   "price-etl",
		Database:  "ok",
		Cache:     "disabled",
		Analytics: "disabled",
		Sources:   make(map[types.SourceID]SourceHealthInfo),
	}

	if err := s.db.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Database = "unreachable"
	}

	if s.cache != nil {
		response.Cache = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			response.Cache = "unreachable"
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}
	if s.analyticsPing != nil {
		response.Analytics = "ok"
		if err := s.analyticsPing.Ping(ctx); err != nil {
			response.Analytics = "unreachable"
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}

	latest, err := s.runs.LatestBySource(ctx)
	if err != nil {
		latest = map[types.SourceID]*models.RunRecord{}
	}

	for _, id := range s.ingest.Sources() {
		info := SourceHealthInfo{
			Health:   types.HealthUnknown,
			InFlight: s.ingest.InProgress(id),
		}
		if run, ok := latest[id]; ok {
			info.Health = types.HealthForStatus(run.Status)
			info.LastRunID = run.RunID
			info.LastRunAt = run.EndTime
		}
		response.Sources[id] = info
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}

// StatsResponse summarizes stored data, resume positions, and the latest
// finished run per source
type StatsResponse struct {
	Sources     []*storage.SourceStats               `json:"sources"`
	Checkpoints []*models.Checkpoint                 `json:"checkpoints"`
	LatestRuns  map[types.SourceID]*models.RunRecord `json:"latest_runs"`
	TotalCount  int64                                `json:"total_count"`
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateStatsKey()

		var cached StatsResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats, err := s.prices.Stats(ctx)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	checkpoints, err := s.checkpoints.List(ctx)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	latest, err := s.runs.LatestBySource(ctx)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	response := StatsResponse{Sources: stats, Checkpoints: checkpoints, LatestRuns: latest}
	if response.Sources == nil {
		response.Sources = []*storage.SourceStats{}
	}
	if response.Checkpoints == nil {
		response.Checkpoints = []*models.Checkpoint{}
	}
	if response.LatestRuns == nil {
		response.LatestRuns = map[types.SourceID]*models.RunRecord{}
	}
	for _, src := range response.Sources {
		response.TotalCount += src.RecordCount
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.WithError(err).Warn("failed to cache stats")
		}
	}

	respondJSON(w, http.StatusOK, response)
}
