package domain

import "time"

// Candle represents a single OHLCV bar for one timeframe bucket.
type Candle struct {
	Timestamp int64   // Bucket start, milliseconds since epoch
	Datetime  string  // Exchange-local wall time, e.g. "2025-07-03 09:30:00 EDT"
	Open      float64 // Opening price
	High      float64 // Highest price
	Low       float64 // Lowest price
	Close     float64 // Closing price
	Volume    int64   // Traded volume, non-negative
}

// Time returns the candle's bucket start as a time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// DatetimeLayout is the canonical exchange-local wall time format used in
// the Datetime column of persisted series.
const DatetimeLayout = "2006-01-02 15:04:05 MST"

// SortedUnique reports whether the series is sorted ascending by
// timestamp with no duplicates, the invariant every persisted series holds.
func SortedUnique(series []Candle) bool {
	for i := 1; i < len(series); i++ {
		if series[i].Timestamp <= series[i-1].Timestamp {
			return false
		}
	}
	return true
}
