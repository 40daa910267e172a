package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/elkingarcia11/market-data-api/internal/calendar"
	"github.com/elkingarcia11/market-data-api/internal/domain"
	"github.com/elkingarcia11/market-data-api/internal/ports"
)

// Aggregator resamples a finer persisted timeframe into a coarser one,
// preserving OHLCV semantics exactly: open from the first bar of a group,
// close from the last, high=max, low=min, volume=sum.
type Aggregator struct {
	store       ports.SeriesStore
	cal         *calendar.Calendar
	logger      ports.Logger
	dropPartial bool
}

// Config holds the collaborators and policy of an Aggregator.
type Config struct {
	Store    ports.SeriesStore
	Calendar *calendar.Calendar
	Logger   ports.Logger
	// DropPartial discards groups with fewer than target/source members
	// (e.g. the trailing group at an early close) instead of emitting them
	// reduced from whatever members exist. Off by default.
	DropPartial bool
}

// New creates an aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("series store is required for aggregator")
	}
	if cfg.Calendar == nil {
		return nil, fmt.Errorf("market calendar is required for aggregator")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for aggregator")
	}
	return &Aggregator{
		store:       cfg.Store,
		cal:         cfg.Calendar,
		logger:      cfg.Logger,
		dropPartial: cfg.DropPartial,
	}, nil
}

// groupKey identifies one target bar: a trading date plus the bucket index
// counted from session open. Keying on the date keeps groups from ever
// crossing a session boundary.
type groupKey struct {
	date   string
	bucket int
}

// Aggregate resamples the persisted source series of a symbol into the
// target timeframe, persists the result (full replace, as re-aggregation
// always re-derives from source), and returns it. Target must be a proper
// integer multiple of source. Buckets align to the 09:30 session open, so a
// 3-minute bar starts at :30, :33, :36... regardless of gaps in the data.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, sourceMinutes, targetMinutes int) ([]domain.Candle, error) {
	if sourceMinutes <= 0 || targetMinutes <= 0 {
		return nil, fmt.Errorf("timeframes must be positive, got %dm -> %dm", sourceMinutes, targetMinutes)
	}
	if targetMinutes <= sourceMinutes || targetMinutes%sourceMinutes != 0 {
		return nil, fmt.Errorf("target timeframe %dm must be an integer multiple of source %dm", targetMinutes, sourceMinutes)
	}

	source, err := a.store.Load(ctx, symbol, sourceMinutes)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 {
		a.logger.Warn(ctx, "No source data to aggregate", map[string]interface{}{
			"symbol": symbol,
			"source": domain.TimeframeKey(sourceMinutes),
		})
		return []domain.Candle{}, nil
	}

	groupSize := targetMinutes / sourceMinutes
	var (
		result     []domain.Candle
		members    []domain.Candle
		currentKey groupKey
		dropped    int
	)

	flush := func() {
		if len(members) == 0 {
			return
		}
		if a.dropPartial && len(members) < groupSize {
			dropped++
			members = members[:0]
			return
		}
		result = append(result, reduce(members))
		members = members[:0]
	}

	for _, c := range source {
		key, ok := a.keyFor(c, targetMinutes)
		if !ok {
			continue // outside any session; persisted series should not contain these
		}
		if key != currentKey {
			flush()
			currentKey = key
		}
		members = append(members, c)
	}
	flush()

	if err := a.store.Replace(ctx, symbol, targetMinutes, result); err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "Aggregated series", map[string]interface{}{
		"symbol":         symbol,
		"source":         domain.TimeframeKey(sourceMinutes),
		"target":         domain.TimeframeKey(targetMinutes),
		"sourceRows":     len(source),
		"aggregatedRows": len(result),
		"droppedPartial": dropped,
	})
	return result, nil
}

func (a *Aggregator) keyFor(c domain.Candle, targetMinutes int) (groupKey, bool) {
	local := time.UnixMilli(c.Timestamp).In(a.cal.Location())
	session, trading := a.cal.SessionFor(local)
	if !trading {
		return groupKey{}, false
	}
	minutesSinceOpen := int(local.Sub(session.Open).Minutes())
	if minutesSinceOpen < 0 {
		return groupKey{}, false
	}
	return groupKey{
		date:   session.Date.Format("2006-01-02"),
		bucket: minutesSinceOpen / targetMinutes,
	}, true
}

// reduce collapses one group of source bars into a single coarser bar.
// Timestamp, datetime, and open come from the first member; close from the
// last; high and low span the group; volume is the sum.
func reduce(members []domain.Candle) domain.Candle {
	out := domain.Candle{
		Timestamp: members[0].Timestamp,
		Datetime:  members[0].Datetime,
		Open:      members[0].Open,
		High:      members[0].High,
		Low:       members[0].Low,
		Close:     members[len(members)-1].Close,
	}
	for _, m := range members {
		if m.High > out.High {
			out.High = m.High
		}
		if m.Low < out.Low {
			out.Low = m.Low
		}
		out.Volume += m.Volume
	}
	return out
}
