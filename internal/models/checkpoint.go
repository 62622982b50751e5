package models

import (
	"time"

	"github.com/price-etl/internal/types"
)

// Checkpoint is the durable resume position for a source. One row per
// source; overwritten after each successfully written batch and never
// advanced on a failed run.
type Checkpoint struct {
	Source        types.SourceID `json:"source" db:"source"`
	Cursor        string         `json:"cursor" db:"cursor"`
	LastSuccessAt time.Time      `json:"lastSuccessAt" db:"last_success_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}
