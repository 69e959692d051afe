package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/preetsinghmakkar/workshops/internal/models"
)

var (
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	ErrInvalidTimeOfDay = errors.New("recurrence: time of day must be HH:MM")
	ErrInvalidTimezone  = errors.New("recurrence: unknown timezone")
)

// Rule is a series' recurrence resolved against its own location.
type Rule struct {
	Frequency models.SeriesFrequency
	Interval  int
	Weekdays  []time.Weekday
	Hour      int
	Minute    int
	Location  *time.Location

	// StartsOn and EndsOn name civil dates in Location, whatever zone the
	// instants arrive in; EndsOn is inclusive. A monthly anchor past the end
	// of a shorter month falls on that month's last day.
	StartsOn time.Time
	EndsOn   *time.Time
}

// RuleFromSeries validates a stored series and resolves its timezone.
func RuleFromSeries(s *models.Series) (Rule, error) {
	switch s.Frequency {
	case models.SeriesFrequencyDaily, models.SeriesFrequencyWeekly,
		models.SeriesFrequencyBiweekly, models.SeriesFrequencyMonthly:
	default:
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, s.Frequency)
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, s.Timezone)
	}
	tod, err := time.Parse("15:04", s.TimeOfDay)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s.TimeOfDay)
	}

	interval := s.Interval
	if interval < 1 {
		interval = 1
	}
	// Stored instants come back in the database session's zone.
	var ends *time.Time
	if s.EndsOn != nil {
		e := s.EndsOn.In(loc)
		ends = &e
	}
	return Rule{
		Frequency: s.Frequency,
		Interval:  interval,
		Weekdays:  s.Weekdays,
		Hour:      tod.Hour(),
		Minute:    tod.Minute(),
		Location:  loc,
		StartsOn:  s.StartsOn.In(loc),
		EndsOn:    ends,
	}, nil
}

// civil is a calendar date with no clock or zone attached. Day arithmetic is
// done at noon UTC, which has no DST, so differences are exact multiples of 24h.
type civil struct {
	year  int
	month time.Month
	day   int
}

func civilOf(t time.Time) civil {
	y, m, d := t.Date()
	return civil{y, m, d}
}

func (c civil) lastOfMonth() int {
	return time.Date(c.year, c.month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

func (c civil) noon() time.Time {
	return time.Date(c.year, c.month, c.day, 12, 0, 0, 0, time.UTC)
}

func (c civil) addDays(n int) civil {
	return civilOf(c.noon().AddDate(0, 0, n))
}

func (c civil) before(o civil) bool {
	return c.noon().Before(o.noon())
}

func daysBetween(from, to civil) int {
	return int(to.noon().Sub(from.noon()).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// at resolves a civil date to the rule's wall-clock time in its location.
// Wall-clock times inside a spring-forward gap are normalized by time.Date.
func (r Rule) at(d civil) time.Time {
	return time.Date(d.year, d.month, d.day, r.Hour, r.Minute, 0, 0, r.Location)
}

func (r Rule) anchor() civil {
	return civilOf(r.StartsOn.In(r.Location))
}

func (r Rule) matches(d civil) bool {
	anchor := r.anchor()
	if d.before(anchor) {
		return false
	}
	if r.EndsOn != nil && civilOf(r.EndsOn.In(r.Location)).before(d) {
		return false
	}

	n := daysBetween(anchor, d)
	switch r.Frequency {
	case models.SeriesFrequencyDaily:
		return n%r.Interval == 0

	case models.SeriesFrequencyWeekly, models.SeriesFrequencyBiweekly:
		step := r.Interval
		if r.Frequency == models.SeriesFrequencyBiweekly {
			step *= 2
		}
		// weeks start on the anchor's Sunday
		offset := int(anchor.noon().Weekday())
		if floorDiv(n+offset, 7)%step != 0 {
			return false
		}
		weekday := d.noon().Weekday()
		if len(r.Weekdays) == 0 {
			return weekday == anchor.noon().Weekday()
		}
		for _, w := range r.Weekdays {
			if w == weekday {
				return true
			}
		}
		return false

	case models.SeriesFrequencyMonthly:
		if d.day != min(anchor.day, d.lastOfMonth()) {
			return false
		}
		months := (d.year-anchor.year)*12 + int(d.month-anchor.month)
		return months%r.Interval == 0
	}
	return false
}

// Occurrences returns every start instant in (after, until], ascending.
func (r Rule) Occurrences(after, until time.Time) []time.Time {
	if !until.After(after) {
		return nil
	}
	first := civilOf(after.In(r.Location)).addDays(-1)
	if anchor := r.anchor(); first.before(anchor) {
		first = anchor
	}
	last := civilOf(until.In(r.Location)).addDays(1)

	var out []time.Time
	for d := first; !last.before(d); d = d.addDays(1) {
		if !r.matches(d) {
			continue
		}
		start := r.at(d)
		if start.After(after) && !start.After(until) {
			out = append(out, start)
		}
	}
	return out
}
