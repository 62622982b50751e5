package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/price-etl/internal/models"
)

// IngestStore groups the per-batch writes behind a single transaction.
// Raw audit rows, price upserts and the checkpoint advance commit together,
// so a crash mid-batch leaves the checkpoint pointing at the last fully
// written batch and a retry replays it idempotently.
type IngestStore struct {
	db          *PostgresDB
	raw         *RawRepository
	prices      *PriceRepository
	checkpoints *CheckpointRepository
}

// NewIngestStore creates a new ingest store over the given repositories
func NewIngestStore(db *PostgresDB, raw *RawRepository, prices *PriceRepository, checkpoints *CheckpointRepository) *IngestStore {
	return &IngestStore{
		db:          db,
		raw:         raw,
		prices:      prices,
		checkpoints: checkpoints,
	}
}

// WriteBatch persists one fetched batch atomically. A nil checkpoint means
// the source produced no cursor to advance, the stored checkpoint is left
// untouched.
func (s *IngestStore) WriteBatch(ctx context.Context, raws []*models.RawRecord, prices []*models.PriceRecord, cp *models.Checkpoint) (*models.UpsertResult, error) {
	var result *models.UpsertResult

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.raw.InsertBatch(ctx, tx, raws); err != nil {
			return err
		}

		upserted, err := s.prices.UpsertBatch(ctx, tx, prices)
		if err != nil {
			return err
		}
		result = upserted

		if cp != nil {
			if err := s.checkpoints.Set(ctx, tx, cp); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
