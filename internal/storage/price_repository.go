package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// PriceFilter narrows price listings
type PriceFilter struct {
	CoinID string
	Symbol string
	Source types.SourceID
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// PriceRepository handles normalized price persistence
type PriceRepository struct {
	db *PostgresDB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *PostgresDB) *PriceRepository {
	return &PriceRepository{db: db}
}

// UpsertBatch writes prices on the given querier with last-write-wins
// semantics on (coin_id, source, ts). A conflicting row that carries the
// same values is left untouched and counted as skipped; the WHERE clause
// suppresses the update so RETURNING yields no row. For rows that do come
// back, xmax = 0 distinguishes a fresh insert from an overwrite.
func (r *PriceRepository) UpsertBatch(ctx context.Context, q Querier, prices []*models.PriceRecord) (*models.UpsertResult, error) {
	query := `
		INSERT INTO crypto_prices (
			coin_id, symbol, name, price_usd,
			market_cap, volume_24h, price_change_24h, ts, source
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (coin_id, source, ts)
		DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			price_usd = EXCLUDED.price_usd,
			market_cap = EXCLUDED.market_cap,
			volume_24h = EXCLUDED.volume_24h,
			price_change_24h = EXCLUDED.price_change_24h
		WHERE (crypto_prices.symbol, crypto_prices.name, crypto_prices.price_usd,
			   crypto_prices.market_cap, crypto_prices.volume_24h, crypto_prices.price_change_24h)
			IS DISTINCT FROM
			  (EXCLUDED.symbol, EXCLUDED.name, EXCLUDED.price_usd,
			   EXCLUDED.market_cap, EXCLUDED.volume_24h, EXCLUDED.price_change_24h)
		RETURNING (xmax = 0)
	`

	result := &models.UpsertResult{}

	for _, p := range prices {
		var inserted bool
		err := q.QueryRow(ctx, query,
			p.CoinID,
			p.Symbol,
			p.Name,
			p.PriceUSD,
			p.MarketCap,
			p.Volume24h,
			p.PriceChange24h,
			p.Timestamp,
			p.Source,
		).Scan(&inserted)

		if err != nil {
			if stderrors.Is(err, pgx.ErrNoRows) {
				result.Skipped++
				continue
			}
			return nil, errors.NewStorageError("upsert price", err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// List retrieves prices matching the filter, newest first
func (r *PriceRepository) List(ctx context.Context, filter PriceFilter) ([]*models.PriceRecord, error) {
	query := `
		SELECT id, coin_id, symbol, name, price_usd,
			   market_cap, volume_24h, price_change_24h, ts, source
		FROM crypto_prices
		WHERE ($1 = '' OR coin_id = $1)
		  AND ($2 = '' OR symbol = $2)
		  AND ($3 = '' OR source = $3)
		  AND ($4::timestamptz IS NULL OR ts >= $4)
		  AND ($5::timestamptz IS NULL OR ts <= $5)
		ORDER BY ts DESC, coin_id
		LIMIT $6 OFFSET $7
	`

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.Pool().Query(ctx, query,
		filter.CoinID,
		filter.Symbol,
		string(filter.Source),
		filter.Since,
		filter.Until,
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, errors.NewStorageError("list prices", err)
	}
	defer rows.Close()

	var prices []*models.PriceRecord
	for rows.Next() {
		var p models.PriceRecord
		err := rows.Scan(
			&p.ID,
			&p.CoinID,
			&p.Symbol,
			&p.Name,
			&p.PriceUSD,
			&p.MarketCap,
			&p.Volume24h,
			&p.PriceChange24h,
			&p.Timestamp,
			&p.Source,
		)
		if err != nil {
			return nil, errors.NewStorageError("scan price", err)
		}
		prices = append(prices, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate prices", err)
	}

	return prices, nil
}

// Latest retrieves the most recent price per coin, optionally scoped to a source
func (r *PriceRepository) Latest(ctx context.Context, source types.SourceID, limit int) ([]*models.PriceRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT DISTINCT ON (coin_id)
			   id, coin_id, symbol, name, price_usd,
			   market_cap, volume_24h, price_change_24h, ts, source
		FROM crypto_prices
		WHERE ($1 = '' OR source = $1)
		ORDER BY coin_id, ts DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, string(source), limit)
	if err != nil {
		return nil, errors.NewStorageError("latest prices", err)
	}
	defer rows.Close()

	var prices []*models.PriceRecord
	for rows.Next() {
		var p models.PriceRecord
		err := rows.Scan(
			&p.ID,
			&p.CoinID,
			&p.Symbol,
			&p.Name,
			&p.PriceUSD,
			&p.MarketCap,
			&p.Volume24h,
			&p.PriceChange24h,
			&p.Timestamp,
			&p.Source,
		)
		if err != nil {
			return nil, errors.NewStorageError("scan price", err)
		}
		prices = append(prices, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate prices", err)
	}

	return prices, nil
}

// SourceStats summarizes stored prices for one source
type SourceStats struct {
	Source      types.SourceID `json:"source"`
	RecordCount int64          `json:"record_count"`
	CoinCount   int64          `json:"coin_count"`
	OldestTS    *time.Time     `json:"oldest_ts,omitempty"`
	NewestTS    *time.Time     `json:"newest_ts,omitempty"`
}

// Stats returns per-source summary statistics
func (r *PriceRepository) Stats(ctx context.Context) ([]*SourceStats, error) {
	query := `
		SELECT source, COUNT(*), COUNT(DISTINCT coin_id), MIN(ts), MAX(ts)
		FROM crypto_prices
		GROUP BY source
		ORDER BY source
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("price stats", err)
	}
	defer rows.Close()

	var stats []*SourceStats
	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.Source, &s.RecordCount, &s.CoinCount, &s.OldestTS, &s.NewestTS); err != nil {
			return nil, errors.NewStorageError("scan price stats", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate price stats", err)
	}

	return stats, nil
}
