// Package normalize maps origin-native payloads into the canonical price
// schema. Each source variant has its own typed extraction function;
// validation failures are isolated per record and never abort a batch.
package normalize

import (
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"

	etlerrors "github.com/price-etl/internal/errors"
)

// maxAbsValue is the sanity bound on numeric fields. Values outside
// [0, maxAbsValue] are treated as absent rather than rejecting the record.
const maxAbsValue = 1e15

// Func normalizes one raw record into the canonical schema
type Func func(raw *models.RawRecord) (*models.PriceRecord, error)

// Rejection pairs a raw record with the validation error that excluded it
type Rejection struct {
	Raw *models.RawRecord
	Err error
}

// BatchResult partitions a batch into normalized records and rejections
type BatchResult struct {
	Valid    []*models.PriceRecord
	Rejected []Rejection
}

// Registry dispatches normalization by source identifier
type Registry struct {
	funcs map[types.SourceID]Func
}

// NewRegistry creates a registry with the built-in source normalizers
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[types.SourceID]Func)}
	r.Register(types.SourceCoinGecko, CoinGecko)
	r.Register(types.SourceCoinPaprika, CoinPaprika)
	r.Register(types.SourceCSV, CSV)
	return r
}

// Register adds or replaces the normalizer for a source
func (r *Registry) Register(id types.SourceID, fn Func) {
	r.funcs[id] = fn
}

// Normalize normalizes a single raw record by its source
func (r *Registry) Normalize(raw *models.RawRecord) (*models.PriceRecord, error) {
	fn, ok := r.funcs[raw.Source]
	if !ok {
		return nil, etlerrors.NewUnknownSourceError(string(raw.Source))
	}
	return fn(raw)
}

// NormalizeBatch processes a whole batch, partitioning valid records from
// rejections. A rejected record never stops the rest of the batch.
func (r *Registry) NormalizeBatch(raws []*models.RawRecord) *BatchResult {
	result := &BatchResult{}

	for _, raw := range raws {
		record, err := r.Normalize(raw)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{Raw: raw, Err: err})
			continue
		}
		result.Valid = append(result.Valid, record)
	}

	return result
}

// sanitize nulls numeric values outside the sanity bound
func sanitize(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > maxAbsValue {
		return nil
	}
	return v
}
