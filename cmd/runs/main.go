package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/elkingarcia11/market-data-api/config"
	"github.com/elkingarcia11/market-data-api/internal/adapters/logger"
	"github.com/elkingarcia11/market-data-api/internal/adapters/sqlite"
	"github.com/elkingarcia11/market-data-api/internal/domain"
)

// Inspect the run journal: print the most recent fetch runs for a symbol.
func main() {
	symbol := flag.String("symbol", "", "symbol to inspect (required)")
	limit := flag.Int("limit", 10, "number of runs to show")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("FATAL: -symbol is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(logger.LevelWarn) // keep the listing clean
	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.JournalDBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open run journal: %v", err)
	}
	defer journal.Close()

	runs, err := journal.RecentRuns(context.Background(), *symbol, *limit)
	if err != nil {
		log.Fatalf("FATAL: Failed to query runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Printf("No journaled runs for %s\n", *symbol)
		return
	}

	for _, r := range runs {
		status := r.Status
		if r.Error != "" {
			status = fmt.Sprintf("%s (%s)", r.Status, r.Error)
		}
		fmt.Printf("#%d %s %s %s..%s windows=%d rows=%d qualityFailures=%d %s\n",
			r.ID, r.Symbol, domain.TimeframeKey(r.TimeframeMinutes),
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
			r.Windows, r.RowsWritten, r.QualityFailures, status)
	}
}
