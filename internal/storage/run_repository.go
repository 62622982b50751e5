package storage

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// RunRepository handles the ingestion run ledger. Ledger rows are written
// outside the batch transaction so a run that fails mid-batch still leaves
// an auditable record.
type RunRepository struct {
	db *PostgresDB
}

// NewRunRepository creates a new run ledger repository
func NewRunRepository(db *PostgresDB) *RunRepository {
	return &RunRepository{db: db}
}

// Create records the start of a run with status running
func (r *RunRepository) Create(ctx context.Context, run *models.RunRecord) error {
	query := `
		INSERT INTO etl_runs (
			run_id, source, start_time, end_time, status,
			records_fetched, records_normalized, records_rejected, error_detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		run.RunID,
		run.Source,
		run.StartTime,
		run.EndTime,
		run.Status,
		run.RecordsFetched,
		run.RecordsNormalized,
		run.RecordsRejected,
		run.ErrorDetail,
	)
	if err != nil {
		return errors.NewStorageError("create run", err)
	}

	return nil
}

// Finish finalizes a run. A run is finalized at most once, a second call
// for the same run_id affects no rows and returns not found.
func (r *RunRepository) Finish(ctx context.Context, run *models.RunRecord) error {
	query := `
		UPDATE etl_runs
		SET end_time = $2, status = $3,
			records_fetched = $4, records_normalized = $5,
			records_rejected = $6, error_detail = $7
		WHERE run_id = $1 AND end_time IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query,
		run.RunID,
		run.EndTime,
		run.Status,
		run.RecordsFetched,
		run.RecordsNormalized,
		run.RecordsRejected,
		run.ErrorDetail,
	)
	if err != nil {
		return errors.NewStorageError("finish run", err)
	}

	if result.RowsAffected() == 0 {
		return errors.NewNotFoundError("open run", run.RunID)
	}

	return nil
}

// Get retrieves a run by its ID
func (r *RunRepository) Get(ctx context.Context, runID string) (*models.RunRecord, error) {
	query := `
		SELECT run_id, source, start_time, end_time, status,
			   records_fetched, records_normalized, records_rejected, error_detail
		FROM etl_runs
		WHERE run_id = $1
	`

	var run models.RunRecord
	err := r.db.Pool().QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.Source,
		&run.StartTime,
		&run.EndTime,
		&run.Status,
		&run.RecordsFetched,
		&run.RecordsNormalized,
		&run.RecordsRejected,
		&run.ErrorDetail,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("run", runID)
		}
		return nil, errors.NewStorageError("get run", err)
	}

	return &run, nil
}

// List retrieves runs newest first, optionally filtered by source
func (r *RunRepository) List(ctx context.Context, source types.SourceID, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT run_id, source, start_time, end_time, status,
			   records_fetched, records_normalized, records_rejected, error_detail
		FROM etl_runs
		WHERE ($1 = '' OR source = $1)
		ORDER BY start_time DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, string(source), limit)
	if err != nil {
		return nil, errors.NewStorageError("list runs", err)
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		var run models.RunRecord
		err := rows.Scan(
			&run.RunID,
			&run.Source,
			&run.StartTime,
			&run.EndTime,
			&run.Status,
			&run.RecordsFetched,
			&run.RecordsNormalized,
			&run.RecordsRejected,
			&run.ErrorDetail,
		)
		if err != nil {
			return nil, errors.NewStorageError("scan run", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate runs", err)
	}

	return runs, nil
}

// LatestBySource retrieves the most recent finished run per source,
// used for the health report.
func (r *RunRepository) LatestBySource(ctx context.Context) (map[types.SourceID]*models.RunRecord, error) {
	query := `
		SELECT DISTINCT ON (source)
			   run_id, source, start_time, end_time, status,
			   records_fetched, records_normalized, records_rejected, error_detail
		FROM etl_runs
		WHERE end_time IS NOT NULL
		ORDER BY source, start_time DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("latest runs", err)
	}
	defer rows.Close()

	latest := make(map[types.SourceID]*models.RunRecord)
	for rows.Next() {
		var run models.RunRecord
		err := rows.Scan(
			&run.RunID,
			&run.Source,
			&run.StartTime,
			&run.EndTime,
			&run.Status,
			&run.RecordsFetched,
			&run.RecordsNormalized,
			&run.RecordsRejected,
			&run.ErrorDetail,
		)
		if err != nil {
			return nil, errors.NewStorageError("scan run", err)
		}
		latest[run.Source] = &run
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate runs", err)
	}

	return latest, nil
}
