package models

import (
	"time"

	"github.com/price-etl/internal/types"
)

// RunRecord is the audit trail of one ingestion attempt for one source.
// Created as running, finalized exactly once; immutable afterwards.
type RunRecord struct {
	RunID             string          `json:"runId" db:"run_id"`
	Source            types.SourceID  `json:"source" db:"source"`
	StartTime         time.Time       `json:"startTime" db:"start_time"`
	EndTime           *time.Time      `json:"endTime,omitempty" db:"end_time"`
	Status            types.RunStatus `json:"status" db:"status"`
	RecordsFetched    int             `json:"recordsFetched" db:"records_fetched"`
	RecordsNormalized int             `json:"recordsNormalized" db:"records_normalized"`
	RecordsRejected   int             `json:"recordsRejected" db:"records_rejected"`
	ErrorDetail       *string         `json:"errorDetail,omitempty" db:"error_detail"`
}

// Duration returns the run duration, or zero if the run is still open
func (r *RunRecord) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Finished reports whether the run has reached a terminal status
func (r *RunRecord) Finished() bool {
	return r.Status != types.RunStatusRunning
}

// RunDiff compares two runs for external reporting
type RunDiff struct {
	BaseRunID     string          `json:"baseRunId"`
	TargetRunID   string          `json:"targetRunId"`
	RecordsDelta  int             `json:"recordsDelta"`
	RejectedDelta int             `json:"rejectedDelta"`
	DurationDelta time.Duration   `json:"durationDeltaNs"`
	BaseStatus    types.RunStatus `json:"baseStatus"`
	TargetStatus  types.RunStatus `json:"targetStatus"`
	StatusChanged bool            `json:"statusChanged"`
}

// CompareRuns computes the diff between a base and a target run
func CompareRuns(base, target *RunRecord) *RunDiff {
	return &RunDiff{
		BaseRunID:     base.RunID,
		TargetRunID:   target.RunID,
		RecordsDelta:  target.RecordsNormalized - base.RecordsNormalized,
		RejectedDelta: target.RecordsRejected - base.RecordsRejected,
		DurationDelta: target.Duration() - base.Duration(),
		BaseStatus:    base.Status,
		TargetStatus:  target.Status,
		StatusChanged: base.Status != target.Status,
	}
}
