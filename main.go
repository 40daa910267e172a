package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/elkingarcia11/market-data-api/config"
	"github.com/elkingarcia11/market-data-api/internal/adapters/csvstore"
	"github.com/elkingarcia11/market-data-api/internal/adapters/logger"
	"github.com/elkingarcia11/market-data-api/internal/adapters/schwab"
	"github.com/elkingarcia11/market-data-api/internal/adapters/sqlite"
	"github.com/elkingarcia11/market-data-api/internal/aggregate"
	"github.com/elkingarcia11/market-data-api/internal/calendar"
	"github.com/elkingarcia11/market-data-api/internal/domain"
	"github.com/elkingarcia11/market-data-api/internal/fetch"
	"github.com/elkingarcia11/market-data-api/internal/ports"
	"github.com/elkingarcia11/market-data-api/internal/scheduler"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == config.LogFormatJSON {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize logger: %v", err)
		}
		defer zl.Sync()
		appLogger = zl
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Load the backfill job
	job, err := config.LoadJob(cfg.JobFile)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load backfill job")
		os.Exit(1)
	}

	// 4. Wire the pipeline
	cal, err := calendar.New(calendar.Config{Timezone: cfg.MarketTimezone})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market calendar")
		os.Exit(1)
	}

	client, err := schwab.New(schwab.Config{
		BaseURL:        cfg.APIBaseURL,
		Tokens:         schwab.NewEnvTokenProvider(config.AccessTokenEnv),
		Logger:         appLogger,
		Timeout:        cfg.APITimeout,
		RateLimitDelay: cfg.RateLimitDelay,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Schwab client")
		os.Exit(1)
	}

	store, err := csvstore.New(csvstore.Config{DataDir: cfg.DataDir, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize series store")
		os.Exit(1)
	}

	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.JournalDBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize run journal")
		os.Exit(1)
	}
	defer journal.Close()

	orchestrator, err := fetch.NewOrchestrator(fetch.Config{
		Client:    client,
		Store:     store,
		Journal:   journal,
		Processor: fetch.NewProcessor(cal, appLogger),
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize orchestrator")
		os.Exit(1)
	}

	aggregator, err := aggregate.New(aggregate.Config{Store: store, Calendar: cal, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize aggregator")
		os.Exit(1)
	}

	runJob := func(ctx context.Context) {
		runBackfill(ctx, appLogger, cal, orchestrator, aggregator, job)
	}

	// 5. Run once, or on a schedule if configured
	if cfg.CronSpec == "" {
		runJob(ctx)
		return
	}

	sched := scheduler.New(appLogger)
	if err := sched.Register(ctx, cfg.CronSpec, runJob); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to register backfill schedule")
		os.Exit(1)
	}
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop(context.Background())
}

// runBackfill drives one complete pass over the job: every
// (symbol, timeframe) pair strictly in sequence, then the aggregation
// passes. A failed pair is reported and the run moves on to the next; only
// context cancellation stops the pass early.
func runBackfill(ctx context.Context, appLogger ports.Logger, cal *calendar.Calendar, orchestrator *fetch.Orchestrator, aggregator *aggregate.Aggregator, job *config.Job) {
	start, end, err := job.DateRange(cal.Location())
	if err != nil {
		appLogger.Error(ctx, err, "Backfill pass aborted: bad date range")
		return
	}

	appLogger.Info(ctx, "Backfill pass starting", map[string]interface{}{
		"symbols":    len(job.Symbols),
		"timeframes": len(job.Timeframes),
		"start":      start.Format("2006-01-02"),
		"end":        end.Format("2006-01-02"),
	})

	failures := 0
	for _, symbol := range job.Symbols {
		for _, timeframe := range job.Timeframes {
			if ctx.Err() != nil {
				appLogger.Warn(ctx, "Backfill pass interrupted")
				return
			}
			summary, err := orchestrator.FetchRange(ctx, symbol, timeframe, start, end)
			if err != nil {
				failures++
				appLogger.Error(ctx, err, "Range fetch failed, continuing with next pair", map[string]interface{}{
					"symbol":    symbol,
					"timeframe": domain.TimeframeKey(timeframe),
				})
				continue
			}
			appLogger.Info(ctx, "Pair done", map[string]interface{}{
				"symbol":          summary.Symbol,
				"timeframe":       domain.TimeframeKey(summary.TimeframeMinutes),
				"rowsWritten":     summary.RowsWritten,
				"qualityFailures": summary.QualityFailures,
			})
		}
	}

	for _, agg := range job.Aggregations {
		for _, symbol := range job.Symbols {
			if ctx.Err() != nil {
				appLogger.Warn(ctx, "Backfill pass interrupted")
				return
			}
			if _, err := aggregator.Aggregate(ctx, symbol, agg.FromMinutes, agg.ToMinutes); err != nil {
				failures++
				appLogger.Error(ctx, err, "Aggregation failed, continuing", map[string]interface{}{
					"symbol": symbol,
					"from":   domain.TimeframeKey(agg.FromMinutes),
					"to":     domain.TimeframeKey(agg.ToMinutes),
				})
			}
		}
	}

	appLogger.Info(ctx, "Backfill pass finished", map[string]interface{}{"failures": failures})
}
