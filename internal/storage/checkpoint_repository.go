package storage

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// CheckpointRepository handles per-source ingestion checkpoint persistence
type CheckpointRepository struct {
	db *PostgresDB
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(db *PostgresDB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Get retrieves the checkpoint for a source. Returns nil when the source
// has never checkpointed, so callers can start from the beginning.
func (r *CheckpointRepository) Get(ctx context.Context, source types.SourceID) (*models.Checkpoint, error) {
	query := `
		SELECT source, cursor, last_success_at, updated_at
		FROM etl_checkpoints
		WHERE source = $1
	`

	var cp models.Checkpoint

	err := r.db.Pool().QueryRow(ctx, query, source).Scan(
		&cp.Source,
		&cp.Cursor,
		&cp.LastSuccessAt,
		&cp.UpdatedAt,
	)

	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewStorageError("get checkpoint", err)
	}

	return &cp, nil
}

// Set upserts the checkpoint for a source on the given querier. The querier
// is the batch transaction during ingestion so the checkpoint only advances
// when the batch write commits.
func (r *CheckpointRepository) Set(ctx context.Context, q Querier, cp *models.Checkpoint) error {
	query := `
		INSERT INTO etl_checkpoints (source, cursor, last_success_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (source)
		DO UPDATE SET
			cursor = EXCLUDED.cursor,
			last_success_at = EXCLUDED.last_success_at,
			updated_at = NOW()
	`

	_, err := q.Exec(ctx, query, cp.Source, cp.Cursor, cp.LastSuccessAt)
	if err != nil {
		return errors.NewStorageError("set checkpoint", err)
	}

	return nil
}

// List retrieves checkpoints for all sources
func (r *CheckpointRepository) List(ctx context.Context) ([]*models.Checkpoint, error) {
	query := `
		SELECT source, cursor, last_success_at, updated_at
		FROM etl_checkpoints
		ORDER BY source
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("list checkpoints", err)
	}
	defer rows.Close()

	var checkpoints []*models.Checkpoint
	for rows.Next() {
		var cp models.Checkpoint
		if err := rows.Scan(&cp.Source, &cp.Cursor, &cp.LastSuccessAt, &cp.UpdatedAt); err != nil {
			return nil, errors.NewStorageError("scan checkpoint", err)
		}
		checkpoints = append(checkpoints, &cp)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate checkpoints", err)
	}

	return checkpoints, nil
}

// Delete removes the checkpoint for a source, forcing the next run to
// start from the beginning.
func (r *CheckpointRepository) Delete(ctx context.Context, source types.SourceID) error {
	query := `DELETE FROM etl_checkpoints WHERE source = $1`

	result, err := r.db.Pool().Exec(ctx, query, source)
	if err != nil {
		return errors.NewStorageError("delete checkpoint", err)
	}

	if result.RowsAffected() == 0 {
		return errors.NewNotFoundError("checkpoint", string(source))
	}

	return nil
}
