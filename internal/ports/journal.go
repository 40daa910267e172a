package ports

import (
	"context"
	"time"
)

// Run statuses recorded in the journal.
const (
	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
)

// FetchRun is the journal record of one range fetch for a
// (symbol, timeframe) pair.
type FetchRun struct {
	ID               int64
	Symbol           string
	TimeframeMinutes int
	StartDate        time.Time
	EndDate          time.Time
	Windows          int
	RowsWritten      int
	QualityFailures  int
	Status           string
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// QualityDefectRecord captures one validator defect for a rejected window.
type QualityDefectRecord struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Kind        string
	Severity    string
	Detail      string
}

// RunJournal records fetch runs and their quality defects for later
// inspection. Journal failures must never abort a run; callers log and
// continue.
type RunJournal interface {
	// RecordRun persists a finished run and returns its assigned ID.
	RecordRun(ctx context.Context, run *FetchRun) (int64, error)
	// RecordDefects persists the defects of a rejected window under a run.
	RecordDefects(ctx context.Context, runID int64, defects []QualityDefectRecord) error
	// RecentRuns returns the most recent runs for a symbol, newest first.
	RecentRuns(ctx context.Context, symbol string, limit int) ([]*FetchRun, error)
}
