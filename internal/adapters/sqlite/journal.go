package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/elkingarcia11/market-data-api/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements ports.RunJournal using SQLite. Every range fetch gets
// one row in fetch_runs; rejected windows additionally get their validator
// defects in quality_defects.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite run journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a new SQLite journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/fetch_journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create journal directory %q: %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open journal database at %q: %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping journal database at %q: %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver works best with a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	journal := &Journal{db: db, logger: cfg.Logger}
	if err := journal.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite run journal ready", map[string]interface{}{"path": dbPath})
	return journal, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fetch_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe_minutes INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		windows INTEGER NOT NULL,
		rows_written INTEGER NOT NULL,
		quality_failures INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT DEFAULT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quality_defects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		detail TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fetch_runs_symbol_started ON fetch_runs (symbol, started_at);
	CREATE INDEX IF NOT EXISTS idx_quality_defects_run ON quality_defects (run_id);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing SQLite run journal")
		return j.db.Close()
	}
	return nil
}

const dateLayout = "2006-01-02"

// RecordRun persists a finished run and returns its assigned ID.
func (j *Journal) RecordRun(ctx context.Context, run *ports.FetchRun) (int64, error) {
	const query = `
	INSERT INTO fetch_runs (symbol, timeframe_minutes, start_date, end_date, windows,
	                        rows_written, quality_failures, status, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var runErr sql.NullString
	if run.Error != "" {
		runErr = sql.NullString{String: run.Error, Valid: true}
	}

	result, err := j.db.ExecContext(ctx, query,
		run.Symbol, run.TimeframeMinutes,
		run.StartDate.Format(dateLayout), run.EndDate.Format(dateLayout),
		run.Windows, run.RowsWritten, run.QualityFailures,
		run.Status, runErr, run.StartedAt, run.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fetch run for symbol %s: %w", run.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for fetch run %s: %w", run.Symbol, err)
	}
	run.ID = id
	j.logger.Debug(ctx, "Fetch run journaled", map[string]interface{}{"runID": id, "symbol": run.Symbol, "status": run.Status})
	return id, nil
}

// RecordDefects persists the validator defects of a rejected window.
func (j *Journal) RecordDefects(ctx context.Context, runID int64, defects []ports.QualityDefectRecord) error {
	const query = `
	INSERT INTO quality_defects (run_id, window_start, window_end, kind, severity, detail)
	VALUES (?, ?, ?, ?, ?, ?)`

	for _, d := range defects {
		if _, err := j.db.ExecContext(ctx, query,
			runID, d.WindowStart.Format(dateLayout), d.WindowEnd.Format(dateLayout),
			d.Kind, d.Severity, d.Detail); err != nil {
			return fmt.Errorf("failed to insert quality defect for run %d: %w", runID, err)
		}
	}
	j.logger.Debug(ctx, "Quality defects journaled", map[string]interface{}{"runID": runID, "count": len(defects)})
	return nil
}

// RecentRuns returns the most recent runs for a symbol, newest first.
func (j *Journal) RecentRuns(ctx context.Context, symbol string, limit int) ([]*ports.FetchRun, error) {
	const query = `
	SELECT id, symbol, timeframe_minutes, start_date, end_date, windows,
	       rows_written, quality_failures, status, error, started_at, finished_at
	FROM fetch_runs
	WHERE symbol = ? ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch runs for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	runs := make([]*ports.FetchRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch run during RecentRuns: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch run rows: %w", err)
	}
	return runs, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*ports.FetchRun, error) {
	run := &ports.FetchRun{}
	var startDate, endDate string
	var runErr sql.NullString
	err := s.Scan(
		&run.ID, &run.Symbol, &run.TimeframeMinutes, &startDate, &endDate,
		&run.Windows, &run.RowsWritten, &run.QualityFailures,
		&run.Status, &runErr, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	if run.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
	}
	if run.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("parsing end_date %q: %w", endDate, err)
	}
	if runErr.Valid {
		run.Error = runErr.String
	}
	return run, nil
}
