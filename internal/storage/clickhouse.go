package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/price-etl/internal/config"
)

// ClickHouseDB wraps the ClickHouse connection
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Ping checks if the database is reachable
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Exec executes a query without returning rows
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}

// EnsureAnalyticsSchema creates the analytics table if it does not exist.
// The mirror is rebuildable from Postgres, so ReplacingMergeTree handles
// replayed batches without coordination.
func (db *ClickHouseDB) EnsureAnalyticsSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS price_ticks (
			coin_id          String,
			symbol           String,
			source           String,
			ts               DateTime64(3, 'UTC'),
			price_usd        Nullable(Float64),
			market_cap       Nullable(Float64),
			volume_24h       Nullable(Float64),
			price_change_24h Nullable(Float64),
			ingested_at      DateTime64(3, 'UTC')
		)
		ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY (coin_id, source, ts)
	`

	if err := db.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create price_ticks table: %w", err)
	}

	return nil
}
