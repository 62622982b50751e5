package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/price-etl/internal/types"
)

// CacheService provides read-path caching for price and stats queries.
// Entries are short-lived and invalidated per source after each ingestion
// run, so readers never see prices staler than one cache TTL past a write.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyPrices is for price query results
	CacheKeyPrices CacheKeyType = "prices"
	// CacheKeyStats is for per-source statistics
	CacheKeyStats CacheKeyType = "stats"
	// CacheKeyAggregates is for analytics aggregates
	CacheKeyAggregates CacheKeyType = "agg"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	normalizedParams := make([]string, len(params))
	for i, param := range params {
		normalizedParams[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalizedParams...)
	return strings.Join(parts, ":")
}

// GeneratePricesKey generates a cache key for a price query.
// Format: prices:<source>:<query-hash>
func (c *CacheService) GeneratePricesKey(source types.SourceID, queryHash string) string {
	src := string(source)
	if src == "" {
		src = "all"
	}
	return c.GenerateCacheKey(CacheKeyPrices, src, queryHash)
}

// GenerateStatsKey generates the cache key for the stats report
func (c *CacheService) GenerateStatsKey() string {
	return c.GenerateCacheKey(CacheKeyStats, "summary")
}

// GenerateAggregatesKey generates a cache key for an aggregates query
// Format: agg:<coin>:<interval>
func (c *CacheService) GenerateAggregatesKey(coinID, interval string) string {
	return c.GenerateCacheKey(CacheKeyAggregates, coinID, interval)
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		// Key not found is not an error, just a cache miss
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to find keys matching pattern: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...)
}

// InvalidateSource invalidates all cached reads that could include data
// from the given source. Called after every successful ingestion run.
func (c *CacheService) InvalidateSource(ctx context.Context, source types.SourceID) error {
	patterns := []string{
		fmt.Sprintf("prices:%s:*", strings.ToLower(string(source))),
		"prices:all:*",
		"stats:*",
		"agg:*",
	}

	for _, pattern := range patterns {
		if err := c.InvalidatePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", pattern, err)
		}
	}

	return nil
}

// Exists checks if a key exists in cache
func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	return c.redis.Exists(ctx, key)
}

// GetTTL returns the configured TTL for this cache service
func (c *CacheService) GetTTL() time.Duration {
	return c.ttl
}

// Ping checks connectivity to the underlying Redis instance
func (c *CacheService) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx)
}
