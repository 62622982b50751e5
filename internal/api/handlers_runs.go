package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// RunsResponse is the response body for run listings
type RunsResponse struct {
	Runs  []*models.RunRecord `json:"runs"`
	Count int                 `json:"count"`
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	source := types.SourceID(r.URL.Query().Get("source"))
	if !validSourceParam(s.ingest, source) {
		respondCategorizedError(w, errors.NewUnknownSourceError(string(source)))
		return
	}

	limit, err := parseIntParam(r, "limit", 50)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	runs, err := s.runs.List(r.Context(), source, limit)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	if runs == nil {
		runs = []*models.RunRecord{}
	}
	respondJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	run, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// handleCompareRuns handles GET /api/runs/compare?base=&target=
func (s *Server) handleCompareRuns(w http.ResponseWriter, r *http.Request) {
	baseID := r.URL.Query().Get("base")
	targetID := r.URL.Query().Get("target")

	if baseID == "" {
		respondCategorizedError(w, errors.NewInvalidParameterError("base", "is required"))
		return
	}
	if targetID == "" {
		respondCategorizedError(w, errors.NewInvalidParameterError("target", "is required"))
		return
	}

	base, err := s.runs.Get(r.Context(), baseID)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	target, err := s.runs.Get(r.Context(), targetID)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.CompareRuns(base, target))
}
