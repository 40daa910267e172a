package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elkingarcia11/market-data-api/internal/domain"
)

// Aggregation describes one post-backfill resampling pass.
type Aggregation struct {
	FromMinutes int `yaml:"from"`
	ToMinutes   int `yaml:"to"`
}

// Job is the declarative backfill job: which symbols and timeframes to
// fetch across which date range, and which aggregations to derive after.
type Job struct {
	Symbols    []string `yaml:"symbols"`
	Timeframes []int    `yaml:"timeframes"` // minutes, API-fetchable values only
	StartDate  string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate    string   `yaml:"end_date"`   // YYYY-MM-DD, defaults to today

	Aggregations []Aggregation `yaml:"aggregations"`
}

const jobDateLayout = "2006-01-02"

// LoadJob reads and validates a backfill job from a YAML file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	job := &Job{}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	if err := job.validate(); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return job, nil
}

func (j *Job) validate() error {
	var errs []string
	if len(j.Symbols) == 0 {
		errs = append(errs, "at least one symbol is required")
	}
	for _, s := range j.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "symbols must not be blank")
			break
		}
	}
	if len(j.Timeframes) == 0 {
		errs = append(errs, "at least one timeframe is required")
	}
	for _, tf := range j.Timeframes {
		if err := domain.ValidateFrequency(tf); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if j.StartDate == "" {
		errs = append(errs, "start_date is required")
	} else if _, err := time.Parse(jobDateLayout, j.StartDate); err != nil {
		errs = append(errs, fmt.Sprintf("invalid start_date %q (want YYYY-MM-DD)", j.StartDate))
	}
	if j.EndDate != "" {
		if _, err := time.Parse(jobDateLayout, j.EndDate); err != nil {
			errs = append(errs, fmt.Sprintf("invalid end_date %q (want YYYY-MM-DD)", j.EndDate))
		}
	}
	for _, agg := range j.Aggregations {
		if agg.FromMinutes <= 0 || agg.ToMinutes <= agg.FromMinutes || agg.ToMinutes%agg.FromMinutes != 0 {
			errs = append(errs, fmt.Sprintf("aggregation %dm -> %dm must be a proper integer multiple", agg.FromMinutes, agg.ToMinutes))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DateRange resolves the job's date range in the given location, with
// end_date defaulting to today when absent.
func (j *Job) DateRange(loc *time.Location) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(jobDateLayout, j.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: %w", j.StartDate, err)
	}
	if j.EndDate == "" {
		now := time.Now().In(loc)
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return start, end, nil
	}
	end, err = time.ParseInLocation(jobDateLayout, j.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: %w", j.EndDate, err)
	}
	return start, end, nil
}
