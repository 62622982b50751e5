package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

func testClickHouseConfig() *config.ClickHouseConfig {
	return &config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "default",
	}
}

func setupAnalyticsRepo(t *testing.T) (*AnalyticsRepository, types.SourceID) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(testClickHouseConfig())
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := testContext(t)
	if err := db.Ping(ctx); err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	require.NoError(t, db.EnsureAnalyticsSchema(ctx))

	source := types.SourceID(fmt.Sprintf("it-%s", uuid.New().String()[:8]))
	t.Cleanup(func() {
		_ = db.Exec(testContext(t), `ALTER TABLE price_ticks DELETE WHERE source = ?`, string(source))
	})

	return NewAnalyticsRepository(db), source
}

func TestAnalyticsRepository_InsertAndAggregate(t *testing.T) {
	repo, source := setupAnalyticsRepo(t)
	ctx := testContext(t)

	coinID := fmt.Sprintf("coin-%s", source)
	ts := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	low, high := 100.0, 110.0

	// A record whose price was nulled during normalization must still
	// mirror cleanly alongside priced ticks
	prices := []*models.PriceRecord{
		{CoinID: coinID, Symbol: "TST", Source: source, Timestamp: ts, PriceUSD: &low},
		{CoinID: coinID, Symbol: "TST", Source: source, Timestamp: ts.Add(10 * time.Minute), PriceUSD: &high},
		{CoinID: coinID, Symbol: "TST", Source: source, Timestamp: ts.Add(20 * time.Minute), PriceUSD: nil},
	}
	require.NoError(t, repo.InsertPrices(ctx, prices))

	buckets, err := repo.Aggregates(ctx, coinID, "1h", ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	// The nil-price tick is excluded from the aggregate
	assert.Equal(t, uint64(2), buckets[0].Samples)
	assert.Equal(t, low, buckets[0].MinPrice)
	assert.Equal(t, high, buckets[0].MaxPrice)
	assert.InDelta(t, 105.0, buckets[0].AvgPrice, 0.001)
}
