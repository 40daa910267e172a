package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // exchange timezone must resolve even without system zoneinfo
)

// Session is the trading-hours window for a single date. Derived on demand,
// never stored.
type Session struct {
	Date       time.Time // Midnight in the exchange timezone
	Open       time.Time // Session open, 09:30 local
	Close      time.Time // Session close, 16:00 local or 13:00 on early-close days
	EarlyClose bool
}

// Config holds configuration for the market calendar.
type Config struct {
	Timezone string // IANA name, defaults to "America/New_York"
}

// Calendar decides regular/early/closed for a date and produces the
// trading-hours window. Weekends have no session; full market-holiday
// closures are not modeled (out-of-session rows are filtered out anyway,
// which has the same practical effect).
type Calendar struct {
	loc         *time.Location
	earlyCloses []earlyCloseRule
}

// Session times in minutes from midnight local.
const (
	openMinute       = 9*60 + 30
	closeMinute      = 16 * 60
	earlyCloseMinute = 13 * 60
)

type ruleKind int

const (
	fixedDate ruleKind = iota // a fixed month/day, e.g. July 3rd
	nthWeekday                // the Nth weekday of a month, e.g. fourth Friday of November
)

type earlyCloseRule struct {
	kind    ruleKind
	month   time.Month
	day     int          // fixedDate only
	weekday time.Weekday // nthWeekday only
	nth     int          // nthWeekday only
}

// defaultEarlyCloses is the rule table for 13:00 closes. New holidays are
// data changes here, not logic changes.
var defaultEarlyCloses = []earlyCloseRule{
	{kind: fixedDate, month: time.July, day: 3},
	{kind: nthWeekday, month: time.November, weekday: time.Friday, nth: 4},
	{kind: fixedDate, month: time.December, day: 24},
}

// New creates a market calendar for the configured exchange timezone.
func New(cfg Config) (*Calendar, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading market timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc, earlyCloses: defaultEarlyCloses}, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// SessionFor returns the trading session for the given date, interpreted in
// the exchange timezone. The second return value is false on non-trading
// days (weekends); callers must skip those dates.
func (c *Calendar) SessionFor(date time.Time) (Session, bool) {
	local := date.In(c.loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, c.loc)

	switch midnight.Weekday() {
	case time.Saturday, time.Sunday:
		return Session{}, false
	}

	closeAt := closeMinute
	early := c.isEarlyClose(midnight)
	if early {
		closeAt = earlyCloseMinute
	}

	return Session{
		Date:       midnight,
		Open:       midnight.Add(time.Duration(openMinute) * time.Minute),
		Close:      midnight.Add(time.Duration(closeAt) * time.Minute),
		EarlyClose: early,
	}, true
}

func (c *Calendar) isEarlyClose(midnight time.Time) bool {
	for _, rule := range c.earlyCloses {
		if rule.matches(midnight) {
			return true
		}
	}
	return false
}

func (r earlyCloseRule) matches(midnight time.Time) bool {
	if midnight.Month() != r.month {
		return false
	}
	switch r.kind {
	case fixedDate:
		return midnight.Day() == r.day
	case nthWeekday:
		if midnight.Weekday() != r.weekday {
			return false
		}
		return (midnight.Day()-1)/7+1 == r.nth
	default:
		return false
	}
}
