package models

import (
	"time"

	"github.com/google/uuid"
)

type SeriesFrequency string

const (
	SeriesFrequencyDaily    SeriesFrequency = "daily"
	SeriesFrequencyWeekly   SeriesFrequency = "weekly"
	SeriesFrequencyBiweekly SeriesFrequency = "biweekly"
	SeriesFrequencyMonthly  SeriesFrequency = "monthly"
)

// Series is a recurrence template that materializes future workshops.
type Series struct {
	ID     uuid.UUID `db:"id"`
	HostID uuid.UUID `db:"host_id"`

	Title           string `db:"title"`
	Description     string `db:"description"`
	Category        string `db:"category"`
	DurationMinutes *int   `db:"duration_minutes"`
	Capacity        int    `db:"capacity"`
	IsPrivate       bool   `db:"is_private"`

	Frequency SeriesFrequency `db:"frequency"`
	Interval  int             `db:"interval_value"` // every N units, minimum 1
	Weekdays  []time.Weekday  `db:"weekdays"`       // weekly/biweekly only; empty means the anchor's weekday
	TimeOfDay string          `db:"time_of_day"`    // "HH:MM" wall clock in Timezone
	Timezone  string          `db:"timezone"`       // IANA name

	StartsOn time.Time  `db:"starts_on"` // anchor date
	EndsOn   *time.Time `db:"ends_on"`
	Active   bool       `db:"active"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
