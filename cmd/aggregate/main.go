package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/elkingarcia11/market-data-api/config"
	"github.com/elkingarcia11/market-data-api/internal/adapters/csvstore"
	"github.com/elkingarcia11/market-data-api/internal/adapters/logger"
	"github.com/elkingarcia11/market-data-api/internal/aggregate"
	"github.com/elkingarcia11/market-data-api/internal/calendar"
)

// Standalone aggregation pass: resample an already-fetched series into a
// coarser timeframe without touching the API.
func main() {
	symbol := flag.String("symbol", "", "symbol to aggregate (required)")
	from := flag.Int("from", 1, "source timeframe in minutes")
	to := flag.Int("to", 3, "target timeframe in minutes")
	dropPartial := flag.Bool("drop-partial", false, "drop incomplete trailing groups instead of emitting them")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("FATAL: -symbol is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	cal, err := calendar.New(calendar.Config{Timezone: cfg.MarketTimezone})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market calendar: %v", err)
	}
	store, err := csvstore.New(csvstore.Config{DataDir: cfg.DataDir, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize series store: %v", err)
	}
	aggregator, err := aggregate.New(aggregate.Config{
		Store:       store,
		Calendar:    cal,
		Logger:      appLogger,
		DropPartial: *dropPartial,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize aggregator: %v", err)
	}

	result, err := aggregator.Aggregate(ctx, *symbol, *from, *to)
	if err != nil {
		appLogger.Error(ctx, err, "Aggregation failed")
		log.Fatalf("FATAL: Aggregation failed: %v", err)
	}
	fmt.Printf("Aggregated %s from %dm to %dm: %d bars\n", *symbol, *from, *to, len(result))
}
