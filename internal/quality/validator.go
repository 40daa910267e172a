package quality

import (
	"fmt"
	"math"

	"github.com/elkingarcia11/market-data-api/internal/domain"
)

// DefectKind identifies one class of data quality problem.
type DefectKind string

const (
	DuplicateTimestamp DefectKind = "DUPLICATE_TIMESTAMP"
	DuplicateDatetime  DefectKind = "DUPLICATE_DATETIME"
	MissingField       DefectKind = "MISSING_FIELD"
	NegativePrice      DefectKind = "NEGATIVE_PRICE"
	ZeroVolume         DefectKind = "ZERO_VOLUME"
	OutOfOrder         DefectKind = "OUT_OF_ORDER"
)

// Severity classifies a defect. Only error-severity defects make a batch
// unsafe to persist; warnings are advisory.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Defect is one concrete problem found in a candle batch.
type Defect struct {
	Kind     DefectKind
	Severity Severity
	Detail   string
}

// Report is the ephemeral result of validating one batch. It aggregates
// every defect found; no check short-circuits the others.
type Report struct {
	Defects []Defect
}

// IsValid reports whether the batch is safe to persist: true iff no
// error-severity defect is present.
func (r Report) IsValid() bool {
	for _, d := range r.Defects {
		if d.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Warnings returns the advisory defects only.
func (r Report) Warnings() []Defect {
	var out []Defect
	for _, d := range r.Defects {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Validate runs every data quality check against a candle batch and
// returns the aggregated report. The batch is expected to be chronological;
// cross-batch deduplication is the store's job, not the validator's.
//
// Price sanity (low <= open,close <= high) is deliberately not checked; the
// upstream occasionally emits bars that violate it and rejecting them would
// silently punch holes in the series.
func Validate(batch []domain.Candle) Report {
	var report Report
	report.Defects = append(report.Defects, checkDuplicateTimestamps(batch)...)
	report.Defects = append(report.Defects, checkDuplicateDatetimes(batch)...)
	report.Defects = append(report.Defects, checkMissingFields(batch)...)
	report.Defects = append(report.Defects, checkNegativePrices(batch)...)
	report.Defects = append(report.Defects, checkVolumes(batch)...)
	report.Defects = append(report.Defects, checkOrdering(batch)...)
	return report
}

func checkDuplicateTimestamps(batch []domain.Candle) []Defect {
	seen := make(map[int64]int, len(batch))
	var defects []Defect
	for i, c := range batch {
		if first, ok := seen[c.Timestamp]; ok {
			defects = append(defects, Defect{
				Kind:     DuplicateTimestamp,
				Severity: SeverityError,
				Detail:   fmt.Sprintf("timestamp %d at index %d repeats index %d", c.Timestamp, i, first),
			})
			continue
		}
		seen[c.Timestamp] = i
	}
	return defects
}

func checkDuplicateDatetimes(batch []domain.Candle) []Defect {
	seen := make(map[string]int, len(batch))
	var defects []Defect
	for i, c := range batch {
		if c.Datetime == "" {
			continue // reported by the missing-field check
		}
		if first, ok := seen[c.Datetime]; ok {
			defects = append(defects, Defect{
				Kind:     DuplicateDatetime,
				Severity: SeverityError,
				Detail:   fmt.Sprintf("datetime %q at index %d repeats index %d", c.Datetime, i, first),
			})
			continue
		}
		seen[c.Datetime] = i
	}
	return defects
}

func checkMissingFields(batch []domain.Candle) []Defect {
	var defects []Defect
	for i, c := range batch {
		var missing []string
		if c.Timestamp <= 0 {
			missing = append(missing, "timestamp")
		}
		if c.Datetime == "" {
			missing = append(missing, "datetime")
		}
		for _, p := range []struct {
			name  string
			value float64
		}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}} {
			if math.IsNaN(p.value) {
				missing = append(missing, p.name)
			}
		}
		if len(missing) > 0 {
			defects = append(defects, Defect{
				Kind:     MissingField,
				Severity: SeverityError,
				Detail:   fmt.Sprintf("candle at index %d missing %v", i, missing),
			})
		}
	}
	return defects
}

func checkNegativePrices(batch []domain.Candle) []Defect {
	var defects []Defect
	for i, c := range batch {
		if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 {
			defects = append(defects, Defect{
				Kind:     NegativePrice,
				Severity: SeverityError,
				Detail:   fmt.Sprintf("candle at index %d has a negative price (o=%g h=%g l=%g c=%g)", i, c.Open, c.High, c.Low, c.Close),
			})
		}
	}
	return defects
}

func checkVolumes(batch []domain.Candle) []Defect {
	var defects []Defect
	for i, c := range batch {
		if c.Volume <= 0 {
			defects = append(defects, Defect{
				Kind:     ZeroVolume,
				Severity: SeverityWarning,
				Detail:   fmt.Sprintf("candle at index %d has non-positive volume %d", i, c.Volume),
			})
		}
	}
	return defects
}

// checkOrdering flags timestamps that move backwards. Equal neighbours are
// the duplicate check's territory and are not reported again here.
func checkOrdering(batch []domain.Candle) []Defect {
	var defects []Defect
	for i := 1; i < len(batch); i++ {
		if batch[i].Timestamp < batch[i-1].Timestamp {
			defects = append(defects, Defect{
				Kind:     OutOfOrder,
				Severity: SeverityError,
				Detail:   fmt.Sprintf("timestamp %d at index %d precedes %d at index %d", batch[i].Timestamp, i, batch[i-1].Timestamp, i-1),
			})
		}
	}
	return defects
}
