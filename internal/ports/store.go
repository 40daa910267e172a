package ports

import (
	"context"

	"github.com/elkingarcia11/market-data-api/internal/domain"
)

// SeriesStore owns the canonical per-(symbol, timeframe) candle series.
// A series is always sorted ascending by timestamp with no duplicates.
type SeriesStore interface {
	// Load returns the persisted series, or an empty slice if none exists yet.
	Load(ctx context.Context, symbol string, timeframeMinutes int) ([]domain.Candle, error)

	// MergeAppend unions a new batch into the existing series keyed by
	// timestamp. Existing rows win on conflict; the result is re-sorted and
	// rewritten in full. Returns the number of newly added rows. Repeated
	// merges of overlapping batches are idempotent.
	MergeAppend(ctx context.Context, symbol string, timeframeMinutes int, batch []domain.Candle) (int, error)

	// Replace rewrites the whole series, discarding what was there. Used by
	// the aggregator, which always re-derives its output from the source
	// timeframe.
	Replace(ctx context.Context, symbol string, timeframeMinutes int, series []domain.Candle) error
}
