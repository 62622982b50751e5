package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/price-etl/internal/models"
)

// AnalyticsRepository mirrors committed prices into ClickHouse for
// aggregate queries. Postgres stays the source of truth, the mirror is
// best effort and rebuildable.
type AnalyticsRepository struct {
	db *ClickHouseDB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *ClickHouseDB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// InsertPrices appends a batch of price ticks to the mirror
func (r *AnalyticsRepository) InsertPrices(ctx context.Context, prices []*models.PriceRecord) error {
	if len(prices) == 0 {
		return nil
	}

	batch, err := r.db.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (
			coin_id, symbol, source, ts, price_usd,
			market_cap, volume_24h, price_change_24h, ingested_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range prices {
		err := batch.Append(
			p.CoinID,
			p.Symbol,
			string(p.Source),
			p.Timestamp,
			p.PriceUSD,
			p.MarketCap,
			p.Volume24h,
			p.PriceChange24h,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to append price tick: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send price batch: %w", err)
	}

	return nil
}

// AggregateBucket is one time bucket of price aggregates for a coin
type AggregateBucket struct {
	Bucket   time.Time `json:"bucket"`
	AvgPrice float64   `json:"avg_price"`
	MinPrice float64   `json:"min_price"`
	MaxPrice float64   `json:"max_price"`
	Samples  uint64    `json:"samples"`
}

var aggregateIntervals = map[string]string{
	"1h":  "toStartOfHour(ts)",
	"1d":  "toStartOfDay(ts)",
	"15m": "toStartOfFifteenMinutes(ts)",
}

// Aggregates returns bucketed price aggregates for a coin over a window.
// Supported intervals are 15m, 1h and 1d.
func (r *AnalyticsRepository) Aggregates(ctx context.Context, coinID, interval string, since, until time.Time) ([]*AggregateBucket, error) {
	bucketExpr, ok := aggregateIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	query := fmt.Sprintf(`
		SELECT %s AS bucket,
			   avg(price_usd) AS avg_price,
			   min(price_usd) AS min_price,
			   max(price_usd) AS max_price,
			   count() AS samples
		FROM price_ticks
		WHERE coin_id = ? AND ts >= ? AND ts <= ? AND price_usd IS NOT NULL
		GROUP BY bucket
		ORDER BY bucket
	`, bucketExpr)

	rows, err := r.db.conn.Query(ctx, query, coinID, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var buckets []*AggregateBucket
	for rows.Next() {
		var b AggregateBucket
		if err := rows.Scan(&b.Bucket, &b.AvgPrice, &b.MinPrice, &b.MaxPrice, &b.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate bucket: %w", err)
		}
		buckets = append(buckets, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregates: %w", err)
	}

	return buckets, nil
}

// Ping checks connectivity to the underlying ClickHouse instance
func (r *AnalyticsRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
