package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/price-etl/internal/models"

	etlerrors "github.com/price-etl/internal/errors"
)

type coinGeckoMarket struct {
	ID             string   `json:"id"`
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	CurrentPrice   *float64 `json:"current_price"`
	MarketCap      *float64 `json:"market_cap"`
	TotalVolume    *float64 `json:"total_volume"`
	PriceChange24h *float64 `json:"price_change_percentage_24h"`
	LastUpdated    string   `json:"last_updated"`
}

// CoinGecko normalizes a /coins/markets entry
func CoinGecko(raw *models.RawRecord) (*models.PriceRecord, error) {
	var market coinGeckoMarket
	if err := json.Unmarshal(raw.Payload, &market); err != nil {
		return nil, etlerrors.NewMalformedRecordError("payload", "not a valid market object")
	}

	if market.ID == "" {
		return nil, etlerrors.NewMalformedRecordError("id", "missing coin identifier")
	}
	if market.CurrentPrice == nil {
		return nil, etlerrors.NewMalformedRecordError("current_price", "missing price")
	}

	ts, err := parseTimestamp(market.LastUpdated)
	if err != nil {
		return nil, etlerrors.NewMalformedRecordError("last_updated", "missing or unparseable timestamp")
	}

	return &models.PriceRecord{
		CoinID:         market.ID,
		Symbol:         strings.ToUpper(market.Symbol),
		Name:           market.Name,
		PriceUSD:       sanitize(market.CurrentPrice),
		MarketCap:      sanitize(market.MarketCap),
		Volume24h:      sanitize(market.TotalVolume),
		PriceChange24h: sanitizeChange(market.PriceChange24h),
		Timestamp:      ts,
		Source:         raw.Source,
	}, nil
}

type coinPaprikaQuote struct {
	Price            *float64 `json:"price"`
	MarketCap        *float64 `json:"market_cap"`
	Volume24h        *float64 `json:"volume_24h"`
	PercentChange24h *float64 `json:"percent_change_24h"`
}

type coinPaprikaTicker struct {
	ID          string                      `json:"id"`
	Symbol      string                      `json:"symbol"`
	Name        string                      `json:"name"`
	LastUpdated string                      `json:"last_updated"`
	Quotes      map[string]coinPaprikaQuote `json:"quotes"`
}

// CoinPaprika normalizes a /tickers entry. Only the USD quote is mapped.
func CoinPaprika(raw *models.RawRecord) (*models.PriceRecord, error) {
	var ticker coinPaprikaTicker
	if err := json.Unmarshal(raw.Payload, &ticker); err != nil {
		return nil, etlerrors.NewMalformedRecordError("payload", "not a valid ticker object")
	}

	if ticker.ID == "" {
		return nil, etlerrors.NewMalformedRecordError("id", "missing coin identifier")
	}

	quote, ok := ticker.Quotes["USD"]
	if !ok {
		return nil, etlerrors.NewMalformedRecordError("quotes.USD", "missing USD quote")
	}
	if quote.Price == nil {
		return nil, etlerrors.NewMalformedRecordError("quotes.USD.price", "missing price")
	}

	ts, err := parseTimestamp(ticker.LastUpdated)
	if err != nil {
		return nil, etlerrors.NewMalformedRecordError("last_updated", "missing or unparseable timestamp")
	}

	return &models.PriceRecord{
		CoinID:         ticker.ID,
		Symbol:         strings.ToUpper(ticker.Symbol),
		Name:           ticker.Name,
		PriceUSD:       sanitize(quote.Price),
		MarketCap:      sanitize(quote.MarketCap),
		Volume24h:      sanitize(quote.Volume24h),
		PriceChange24h: sanitizeChange(quote.PercentChange24h),
		Timestamp:      ts,
		Source:         raw.Source,
	}, nil
}

// CSV normalizes a header-keyed row payload. Column naming conventions
// differ between exports, so each canonical field probes a few aliases.
func CSV(raw *models.RawRecord) (*models.PriceRecord, error) {
	var fields map[string]string
	if err := json.Unmarshal(raw.Payload, &fields); err != nil {
		return nil, etlerrors.NewMalformedRecordError("payload", "not a valid row object")
	}

	coinID := pick(fields, "id", "coin_id", "symbol")
	if coinID == "" {
		return nil, etlerrors.NewMalformedRecordError("id", "missing coin identifier")
	}

	priceStr := pick(fields, "price", "Price", "price_usd", "current_price")
	if priceStr == "" {
		return nil, etlerrors.NewMalformedRecordError("price", "missing price")
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return nil, etlerrors.NewMalformedRecordError("price", "not a number")
	}

	ts, err := parseTimestamp(pick(fields, "timestamp", "ts", "date", "time"))
	if err != nil {
		return nil, etlerrors.NewMalformedRecordError("timestamp", "missing or unparseable timestamp")
	}

	return &models.PriceRecord{
		CoinID:         coinID,
		Symbol:         strings.ToUpper(pick(fields, "symbol", "Symbol")),
		Name:           pick(fields, "name", "Name"),
		PriceUSD:       sanitize(&price),
		MarketCap:      sanitize(parseOptFloat(pick(fields, "market_cap", "Market_Cap", "marketcap"))),
		Volume24h:      sanitize(parseOptFloat(pick(fields, "volume", "Volume", "volume_24h"))),
		PriceChange24h: sanitizeChange(parseOptFloat(pick(fields, "price_change", "Price_Change", "change_24h", "price_change_24h"))),
		Timestamp:      ts,
		Source:         raw.Source,
	}, nil
}

// pick returns the first non-empty value among the given keys
func pick(fields map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := fields[key]; v != "" {
			return v
		}
	}
	return ""
}

// parseOptFloat parses an optional numeric field; empty or invalid is absent
func parseOptFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// timestampLayouts are the accepted observation timestamp formats
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses an observation timestamp and truncates it to UTC
func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// sanitizeChange bounds the 24h change percentage. Unlike the other
// numeric fields a change can legitimately be negative.
func sanitizeChange(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v < -maxAbsValue || *v > maxAbsValue {
		return nil
	}
	return v
}
