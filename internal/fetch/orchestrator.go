package fetch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/elkingarcia11/market-data-api/internal/domain"
	"github.com/elkingarcia11/market-data-api/internal/ports"
	"github.com/elkingarcia11/market-data-api/internal/quality"
)

// Summary reports what one range fetch accomplished. When FetchRange also
// returns an error, the summary still covers everything merged before the
// abort.
type Summary struct {
	Symbol           string
	TimeframeMinutes int
	Windows          int
	RowsWritten      int
	QualityFailures  int
}

// Orchestrator drives the chunked-fetch loop for one (symbol, timeframe,
// date range) at a time: window splitting, quality gating, and idempotent
// persistence. Transport pacing and bounded retries live in the client.
type Orchestrator struct {
	client    ports.MarketDataClient
	store     ports.SeriesStore
	journal   ports.RunJournal // optional
	processor *Processor
	logger    ports.Logger
}

// Config holds the collaborators of an Orchestrator. Journal may be nil.
type Config struct {
	Client    ports.MarketDataClient
	Store     ports.SeriesStore
	Journal   ports.RunJournal
	Processor *Processor
	Logger    ports.Logger
}

// NewOrchestrator validates the wiring and builds an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: market data client is required", ports.ErrConfigurationError)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: series store is required", ports.ErrConfigurationError)
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("%w: processor is required", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	return &Orchestrator{
		client:    cfg.Client,
		store:     cfg.Store,
		journal:   cfg.Journal,
		processor: cfg.Processor,
		logger:    cfg.Logger,
	}, nil
}

// FetchRange fetches, validates, and persists all candles for the symbol
// and timeframe across [start, end] (inclusive calendar dates).
//
// The range is split into API-legal windows chosen greedily from the
// remaining day count, re-derived from the current cursor each iteration.
// A window whose batch fails validation is logged, journaled, and skipped
// without aborting the loop; a transport failure that survives the client's
// bounded retry aborts the range, returning the summary of what was already
// merged alongside the error. Repeated runs over overlapping ranges are
// idempotent because persistence goes through the store's merge-append.
func (o *Orchestrator) FetchRange(ctx context.Context, symbol string, timeframeMinutes int, start, end time.Time) (*Summary, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ports.ErrConfigurationError)
	}
	if err := domain.ValidateFrequency(timeframeMinutes); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}

	summary := &Summary{Symbol: symbol, TimeframeMinutes: timeframeMinutes}
	startedAt := time.Now()
	var defects []ports.QualityDefectRecord

	start = truncateToDate(start)
	end = truncateToDate(end)

	cursor := start
	var runErr error
	for !cursor.After(end) {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("range fetch canceled: %w: %w", ports.ErrContextCanceled, err)
			break
		}

		remaining := daysInclusive(cursor, end)
		chunk := OptimalChunkDays(remaining)
		if chunk == 0 {
			break
		}
		windowEnd := cursor.AddDate(0, 0, chunk-1)
		if windowEnd.After(end) {
			windowEnd = end
		}

		o.logger.Info(ctx, "Fetching window", map[string]interface{}{
			"symbol":    symbol,
			"timeframe": domain.TimeframeKey(timeframeMinutes),
			"start":     cursor.Format("2006-01-02"),
			"end":       windowEnd.Format("2006-01-02"),
			"period":    chunk,
		})

		raw, err := o.client.PriceHistory(ctx, ports.PriceHistoryRequest{
			Symbol:           symbol,
			PeriodDays:       chunk,
			FrequencyMinutes: timeframeMinutes,
			Start:            cursor,
			End:              windowEnd,
		})
		summary.Windows++
		if err != nil {
			// The client already performed its bounded retry; anything that
			// reaches here aborts the range but keeps what was merged.
			runErr = fmt.Errorf("fetch window %s..%s failed: %w",
				cursor.Format("2006-01-02"), windowEnd.Format("2006-01-02"), err)
			break
		}

		batch := o.processor.Normalize(ctx, raw)
		if len(batch) == 0 {
			o.logger.Debug(ctx, "No candles in window after normalization", map[string]interface{}{
				"symbol": symbol,
				"start":  cursor.Format("2006-01-02"),
			})
			cursor = windowEnd.AddDate(0, 0, 1)
			continue
		}

		report := quality.Validate(batch)
		for _, w := range report.Warnings() {
			o.logger.Warn(ctx, "Data quality advisory", map[string]interface{}{
				"symbol": symbol,
				"kind":   string(w.Kind),
				"detail": w.Detail,
			})
		}
		if !report.IsValid() {
			// Policy: one bad window must not poison the whole range.
			summary.QualityFailures++
			for _, d := range report.Defects {
				if d.Severity != quality.SeverityError {
					continue
				}
				o.logger.Error(ctx, ports.ErrDataQuality, "Rejecting window batch", map[string]interface{}{
					"symbol": symbol,
					"kind":   string(d.Kind),
					"detail": d.Detail,
				})
				defects = append(defects, ports.QualityDefectRecord{
					WindowStart: cursor,
					WindowEnd:   windowEnd,
					Kind:        string(d.Kind),
					Severity:    string(d.Severity),
					Detail:      d.Detail,
				})
			}
			cursor = windowEnd.AddDate(0, 0, 1)
			continue
		}

		written, err := o.store.MergeAppend(ctx, symbol, timeframeMinutes, batch)
		if err != nil {
			// Persisted state integrity is no longer guaranteed; abort.
			runErr = fmt.Errorf("persisting window %s..%s failed: %w",
				cursor.Format("2006-01-02"), windowEnd.Format("2006-01-02"), err)
			break
		}
		summary.RowsWritten += written

		cursor = windowEnd.AddDate(0, 0, 1)
	}

	o.recordRun(ctx, summary, start, end, startedAt, runErr, defects)

	if runErr != nil {
		o.logger.Error(ctx, runErr, "Range fetch aborted", map[string]interface{}{
			"symbol":      symbol,
			"rowsWritten": summary.RowsWritten,
			"windows":     summary.Windows,
		})
		return summary, runErr
	}

	o.logger.Info(ctx, "Range fetch completed", map[string]interface{}{
		"symbol":          symbol,
		"timeframe":       domain.TimeframeKey(timeframeMinutes),
		"windows":         summary.Windows,
		"rowsWritten":     summary.RowsWritten,
		"qualityFailures": summary.QualityFailures,
	})
	return summary, nil
}

// recordRun writes the run and any defects to the journal. Journal trouble
// is logged and swallowed; it must never fail the fetch itself.
func (o *Orchestrator) recordRun(ctx context.Context, s *Summary, start, end, startedAt time.Time, runErr error, defects []ports.QualityDefectRecord) {
	if o.journal == nil {
		return
	}
	run := &ports.FetchRun{
		Symbol:           s.Symbol,
		TimeframeMinutes: s.TimeframeMinutes,
		StartDate:        start,
		EndDate:          end,
		Windows:          s.Windows,
		RowsWritten:      s.RowsWritten,
		QualityFailures:  s.QualityFailures,
		Status:           ports.RunStatusCompleted,
		StartedAt:        startedAt,
		FinishedAt:       time.Now(),
	}
	if runErr != nil {
		run.Status = ports.RunStatusAborted
		run.Error = runErr.Error()
	}
	id, err := o.journal.RecordRun(ctx, run)
	if err != nil {
		o.logger.Warn(ctx, "Failed to journal fetch run", map[string]interface{}{
			"symbol": s.Symbol, "error": err.Error(),
		})
		return
	}
	if len(defects) == 0 {
		return
	}
	if err := o.journal.RecordDefects(ctx, id, defects); err != nil {
		o.logger.Warn(ctx, "Failed to journal quality defects", map[string]interface{}{
			"symbol": s.Symbol, "error": err.Error(),
		})
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysInclusive counts calendar days from a through b, both included.
// Rounding absorbs the odd 23/25-hour day around DST transitions.
func daysInclusive(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(math.Round(b.Sub(a).Hours()/24)) + 1
}
