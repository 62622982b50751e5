package storage

import (
	"context"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// RawRepository handles the append-only raw payload audit trail
type RawRepository struct {
	db *PostgresDB
}

// NewRawRepository creates a new raw record repository
func NewRawRepository(db *PostgresDB) *RawRepository {
	return &RawRepository{db: db}
}

// InsertBatch appends raw records on the given querier. Records are never
// updated, the table is an audit trail of exactly what each source returned.
func (r *RawRepository) InsertBatch(ctx context.Context, q Querier, records []*models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO raw_prices (source, coin_id, payload, ingested_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	for _, rec := range records {
		err := q.QueryRow(ctx, query,
			rec.Source,
			rec.CoinID,
			rec.Payload,
			rec.IngestedAt,
		).Scan(&rec.ID)
		if err != nil {
			return errors.NewStorageError("insert raw record", err)
		}
	}

	return nil
}

// CountBySource returns the number of raw records stored per source
func (r *RawRepository) CountBySource(ctx context.Context) (map[types.SourceID]int64, error) {
	query := `SELECT source, COUNT(*) FROM raw_prices GROUP BY source`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("count raw records", err)
	}
	defer rows.Close()

	counts := make(map[types.SourceID]int64)
	for rows.Next() {
		var source types.SourceID
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, errors.NewStorageError("scan raw count", err)
		}
		counts[source] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate raw counts", err)
	}

	return counts, nil
}

// ListByCoin retrieves the most recent raw payloads for a coin, newest first
func (r *RawRepository) ListByCoin(ctx context.Context, coinID string, limit int) ([]*models.RawRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, source, coin_id, payload, ingested_at
		FROM raw_prices
		WHERE coin_id = $1
		ORDER BY ingested_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, coinID, limit)
	if err != nil {
		return nil, errors.NewStorageError("list raw records", err)
	}
	defer rows.Close()

	var records []*models.RawRecord
	for rows.Next() {
		var rec models.RawRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.CoinID, &rec.Payload, &rec.IngestedAt); err != nil {
			return nil, errors.NewStorageError("scan raw record", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate raw records", err)
	}

	return records, nil
}
