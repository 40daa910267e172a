package fetch

import (
	"context"
	"time"

	"github.com/elkingarcia11/market-data-api/internal/calendar"
	"github.com/elkingarcia11/market-data-api/internal/domain"
	"github.com/elkingarcia11/market-data-api/internal/ports"
)

// Processor normalizes raw API candles into canonical domain candles:
// exchange-local datetimes attached, rows outside trading hours dropped.
type Processor struct {
	cal    *calendar.Calendar
	logger ports.Logger
}

// NewProcessor creates a processor bound to a market calendar.
func NewProcessor(cal *calendar.Calendar, logger ports.Logger) *Processor {
	return &Processor{cal: cal, logger: logger}
}

// Normalize converts a raw batch to domain candles, keeping only rows whose
// exchange-local time falls inside [open, close) of that date's session.
// Input order is preserved; no deduplication happens here, that is the
// store's job.
func (p *Processor) Normalize(ctx context.Context, raw []ports.RawCandle) []domain.Candle {
	out := make([]domain.Candle, 0, len(raw))
	dropped := 0
	for _, rc := range raw {
		local := time.UnixMilli(rc.Datetime).In(p.cal.Location())
		session, trading := p.cal.SessionFor(local)
		if !trading {
			dropped++
			continue
		}
		if local.Before(session.Open) || !local.Before(session.Close) {
			dropped++
			continue
		}
		out = append(out, domain.Candle{
			Timestamp: rc.Datetime,
			Datetime:  local.Format(domain.DatetimeLayout),
			Open:      rc.Open,
			High:      rc.High,
			Low:       rc.Low,
			Close:     rc.Close,
			Volume:    rc.Volume,
		})
	}
	if dropped > 0 {
		p.logger.Debug(ctx, "Dropped candles outside trading hours", map[string]interface{}{
			"dropped": dropped,
			"kept":    len(out),
		})
	}
	return out
}
