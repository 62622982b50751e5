package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-etl/internal/types"
)

func setupTestCacheService(t *testing.T, ttl time.Duration) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewCacheService(NewRedisCacheFromClient(client), ttl), mr
}

func TestCacheService_SetGet(t *testing.T) {
	cache, _ := setupTestCacheService(t, 20*time.Second)
	ctx := testContext(t)

	type payload struct {
		CoinID string  `json:"coin_id"`
		Price  float64 `json:"price"`
	}

	key := cache.GeneratePricesKey(types.SourceCoinGecko, "page1")
	require.NoError(t, cache.Set(ctx, key, payload{CoinID: "bitcoin", Price: 50000}))

	var got payload
	hit, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "bitcoin", got.CoinID)
	assert.Equal(t, float64(50000), got.Price)
}

func TestCacheService_GetMiss(t *testing.T) {
	cache, _ := setupTestCacheService(t, 20*time.Second)
	ctx := testContext(t)

	var got map[string]string
	hit, err := cache.Get(ctx, "prices:all:missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheService_TTLExpiry(t *testing.T) {
	cache, mr := setupTestCacheService(t, time.Second)
	ctx := testContext(t)

	key := cache.GenerateStatsKey()
	require.NoError(t, cache.Set(ctx, key, map[string]int{"total": 42}))

	mr.FastForward(2 * time.Second)

	var got map[string]int
	hit, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheService_InvalidateSource(t *testing.T) {
	cache, _ := setupTestCacheService(t, time.Minute)
	ctx := testContext(t)

	geckoKey := cache.GeneratePricesKey(types.SourceCoinGecko, "q1")
	paprikaKey := cache.GeneratePricesKey(types.SourceCoinPaprika, "q1")
	allKey := cache.GeneratePricesKey("", "q1")
	statsKey := cache.GenerateStatsKey()

	for _, key := range []string{geckoKey, paprikaKey, allKey, statsKey} {
		require.NoError(t, cache.Set(ctx, key, "cached"))
	}

	require.NoError(t, cache.InvalidateSource(ctx, types.SourceCoinGecko))

	for _, tc := range []struct {
		name string
		key  string
		want bool
	}{
		{"source scoped key dropped", geckoKey, false},
		{"cross source key dropped", allKey, false},
		{"stats dropped", statsKey, false},
		{"other source key kept", paprikaKey, true},
	} {
		exists, err := cache.Exists(ctx, tc.key)
		require.NoError(t, err)
		assert.Equal(t, tc.want, exists, tc.name)
	}
}

func TestCacheService_KeyNormalization(t *testing.T) {
	cache, _ := setupTestCacheService(t, time.Minute)

	key := cache.GenerateCacheKey(CacheKeyPrices, "CoinGecko", "BTC")
	assert.Equal(t, "prices:coingecko:btc", key)

	assert.Equal(t, "prices:all:q1", cache.GeneratePricesKey("", "q1"))
	assert.Equal(t, "agg:bitcoin:1h", cache.GenerateAggregatesKey("bitcoin", "1h"))
}
