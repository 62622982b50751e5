// Package source provides the data source adapters for the price ETL
// pipeline. Every origin (remote paginated API or local file) implements
// the same fetch contract and is driven polymorphically by the orchestrator.
package source

import (
	"context"
	"encoding/json"

	"github.com/price-etl/internal/types"
)

// Raw is one origin-native record as fetched, before normalization.
// The payload is kept verbatim for the raw audit trail.
type Raw struct {
	CoinID  string
	Payload json.RawMessage
}

// Batch is the result of one fetch call. NextCursor is the position to
// persist after the batch is durably written; an empty NextCursor means
// "no more data right now" and leaves the checkpoint unchanged.
type Batch struct {
	Records    []Raw
	NextCursor string
}

// Source is the adapter contract. Fetch must be read-only with respect to
// the origin. Fetch errors are categorized: transient faults (network,
// timeouts, throttling) are distinguishable from malformed responses via
// the errors package so callers can decide on retry.
type Source interface {
	ID() types.SourceID
	Fetch(ctx context.Context, cursor string) (*Batch, error)
}
