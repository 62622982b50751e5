package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/types"
)

// setupIngestStore connects to the integration Postgres and registers
// cleanup for everything written under the given source id. Each test run
// uses a fresh source so concurrent runs cannot collide.
func setupIngestStore(t *testing.T) (*IngestStore, *PriceRepository, *CheckpointRepository, types.SourceID) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewPostgresDB(testPostgresConfig())
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	source := types.SourceID(fmt.Sprintf("it-%s", uuid.New().String()[:8]))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.Pool().Exec(ctx, `DELETE FROM crypto_prices WHERE source = $1`, string(source))
		_, _ = db.Pool().Exec(ctx, `DELETE FROM raw_prices WHERE source = $1`, string(source))
		_, _ = db.Pool().Exec(ctx, `DELETE FROM etl_checkpoints WHERE source = $1`, string(source))
	})

	raw := NewRawRepository(db)
	prices := NewPriceRepository(db)
	checkpoints := NewCheckpointRepository(db)
	store := NewIngestStore(db, raw, prices, checkpoints)

	return store, prices, checkpoints, source
}

func testRawRecord(source types.SourceID, coinID string, at time.Time) *models.RawRecord {
	payload, _ := json.Marshal(map[string]interface{}{"id": coinID, "price": 100.0})
	return &models.RawRecord{
		Source:     source,
		CoinID:     coinID,
		Payload:    payload,
		IngestedAt: at,
	}
}

func testPriceRecord(source types.SourceID, coinID string, price float64, ts time.Time) *models.PriceRecord {
	return &models.PriceRecord{
		CoinID:    coinID,
		Symbol:    "TST",
		Name:      "Test Coin",
		PriceUSD:  &price,
		Timestamp: ts,
		Source:    source,
	}
}

func TestIngestStore_WriteBatch(t *testing.T) {
	store, prices, checkpoints, source := setupIngestStore(t)
	ctx := testContext(t)

	ts := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	raws := []*models.RawRecord{
		testRawRecord(source, "coin-a", ts),
		testRawRecord(source, "coin-b", ts),
	}
	batch := []*models.PriceRecord{
		testPriceRecord(source, "coin-a", 100, ts),
		testPriceRecord(source, "coin-b", 200, ts),
	}
	cp := &models.Checkpoint{Source: source, Cursor: "2", LastSuccessAt: ts}

	result, err := store.WriteBatch(ctx, raws, batch, cp)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	// The sequence assigns raw ids, the batch must not collide on them
	assert.Greater(t, raws[0].ID, int64(0))
	assert.Greater(t, raws[1].ID, int64(0))
	assert.NotEqual(t, raws[0].ID, raws[1].ID)

	stored, err := checkpoints.Get(ctx, source)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "2", stored.Cursor)

	// Replaying the same batch must be a no-op for prices, append two more
	// raw audit rows, and leave exactly one price row per observation
	replayRaws := []*models.RawRecord{
		testRawRecord(source, "coin-a", ts),
		testRawRecord(source, "coin-b", ts),
	}
	result, err = store.WriteBatch(ctx, replayRaws, batch, cp)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)

	listed, err := prices.List(ctx, PriceFilter{Source: source})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestIngestStore_WriteBatch_NilCheckpoint(t *testing.T) {
	store, _, checkpoints, source := setupIngestStore(t)
	ctx := testContext(t)

	ts := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.WriteBatch(ctx,
		[]*models.RawRecord{testRawRecord(source, "coin-a", ts)},
		[]*models.PriceRecord{testPriceRecord(source, "coin-a", 100, ts)},
		nil)
	require.NoError(t, err)

	stored, err := checkpoints.Get(ctx, source)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestPriceRepository_UpsertBatch(t *testing.T) {
	store, prices, _, source := setupIngestStore(t)
	ctx := testContext(t)

	ts := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	original := testPriceRecord(source, "coin-a", 100, ts)

	result, err := store.WriteBatch(ctx, nil, []*models.PriceRecord{original}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.UpsertResult{Inserted: 1}, *result)

	// Same key, new value: last write wins and counts as updated
	revised := testPriceRecord(source, "coin-a", 105, ts)
	result, err = store.WriteBatch(ctx, nil, []*models.PriceRecord{revised}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.UpsertResult{Updated: 1}, *result)

	// Identical re-write is suppressed and counted as skipped
	result, err = store.WriteBatch(ctx, nil, []*models.PriceRecord{revised}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.UpsertResult{Skipped: 1}, *result)

	listed, err := prices.List(ctx, PriceFilter{Source: source})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].PriceUSD)
	assert.Equal(t, 105.0, *listed[0].PriceUSD)
}
