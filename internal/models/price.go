package models

import (
	"time"

	"github.com/price-etl/internal/types"
)

// RawRecord is the append-only audit form of a fetched record.
// The payload is the origin-native JSON blob, untouched.
type RawRecord struct {
	ID         int64          `json:"id" db:"id"`
	Source     types.SourceID `json:"source" db:"source"`
	CoinID     string         `json:"coinId" db:"coin_id"`
	Payload    []byte         `json:"payload" db:"payload"`
	IngestedAt time.Time      `json:"ingestedAt" db:"ingested_at"`
}

// PriceRecord is the canonical normalized price observation.
// (CoinID, Source, Timestamp) is the uniqueness key; re-ingesting the
// same observation must update in place, never duplicate.
type PriceRecord struct {
	ID             int64          `json:"id" db:"id"`
	CoinID         string         `json:"coinId" db:"coin_id"`
	Symbol         string         `json:"symbol" db:"symbol"`
	Name           string         `json:"name" db:"name"`
	PriceUSD       *float64       `json:"priceUsd" db:"price_usd"`
	MarketCap      *float64       `json:"marketCap" db:"market_cap"`
	Volume24h      *float64       `json:"volume24h" db:"volume_24h"`
	PriceChange24h *float64       `json:"priceChange24h" db:"price_change_24h"`
	Timestamp      time.Time      `json:"timestamp" db:"ts"`
	Source         types.SourceID `json:"source" db:"source"`
}

// Key returns the logical uniqueness key of the observation
func (p *PriceRecord) Key() PriceKey {
	return PriceKey{CoinID: p.CoinID, Source: p.Source, Timestamp: p.Timestamp.UTC()}
}

// PriceKey is the (coin, source, timestamp) dedup key
type PriceKey struct {
	CoinID    string
	Source    types.SourceID
	Timestamp time.Time
}

// UpsertResult summarizes the outcome of an idempotent batch write
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Total returns the number of records covered by the result
func (r UpsertResult) Total() int {
	return r.Inserted + r.Updated + r.Skipped
}

// Add accumulates another result into this one
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
}
