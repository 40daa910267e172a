package ports

import (
	"context"
	"time"
)

// RawCandle is one candle exactly as the pricehistory endpoint returns it.
// Datetime is the bucket start in epoch milliseconds; the field name follows
// the wire format, which calls it "datetime".
type RawCandle struct {
	Datetime int64   `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
}

// PriceHistoryRequest describes one fetch window: a single API request's
// date span for a (symbol, timeframe) pair. Start and End are inclusive
// calendar dates; PeriodDays must be one of the API's legal period buckets.
type PriceHistoryRequest struct {
	Symbol           string
	PeriodDays       int
	FrequencyMinutes int
	Start            time.Time
	End              time.Time
}

// MarketDataClient defines the interface for fetching historical candles
// from the upstream market data API. Implementations own transport
// mechanics: pacing, bounded retry, and token refresh on auth failures.
type MarketDataClient interface {
	// PriceHistory fetches the raw candles for one window. An empty slice
	// with a nil error means the API had no data for the span.
	PriceHistory(ctx context.Context, req PriceHistoryRequest) ([]RawCandle, error)
}

// TokenProvider supplies bearer tokens for the market data API. Token
// acquisition and refresh are external concerns; this core only asks for a
// token and, after a 401-class failure, for a forced refresh.
type TokenProvider interface {
	// Token returns a valid access token.
	Token(ctx context.Context) (string, error)
	// Refresh discards any cached token and returns a fresh one.
	Refresh(ctx context.Context) (string, error)
}
