package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/scheduler"
	"github.com/spf13/cobra"
)

type seriesOptions struct {
	host        string
	title       string
	description string
	category    string
	duration    int
	capacity    int
	private     bool
	frequency   string
	interval    int
	weekdays    []string
	timeOfDay   string
	timezone    string
	startsOn    string
	endsOn      string
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseWeekday accepts "mon", "Monday" and the like.
func parseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		if day, ok := weekdayNames[n[:3]]; ok {
			return day, nil
		}
	}
	return 0, fmt.Errorf("--weekdays: unknown day %q", name)
}

// build turns the flags into a series, rejecting anything the recurrence
// engine would refuse later.
func (o seriesOptions) build() (*models.Series, error) {
	hostID, err := uuid.Parse(o.host)
	if err != nil {
		return nil, fmt.Errorf("--host: %w", err)
	}
	if strings.TrimSpace(o.title) == "" {
		return nil, errors.New("--title is required")
	}
	if o.capacity < 0 || o.duration < 0 {
		return nil, errors.New("--capacity and --duration cannot be negative")
	}

	s := &models.Series{
		ID:          uuid.New(),
		HostID:      hostID,
		Title:       o.title,
		Description: o.description,
		Category:    o.category,
		Capacity:    o.capacity,
		IsPrivate:   o.private,
		Frequency:   models.SeriesFrequency(strings.ToLower(o.frequency)),
		Interval:    o.interval,
		TimeOfDay:   o.timeOfDay,
		Timezone:    o.timezone,
		Active:      true,
	}
	if o.duration > 0 {
		d := o.duration
		s.DurationMinutes = &d
	}
	for _, name := range o.weekdays {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		s.Weekdays = append(s.Weekdays, day)
	}

	rule, err := scheduler.RuleFromSeries(s)
	if err != nil {
		return nil, err
	}
	if s.StartsOn, err = time.ParseInLocation(time.DateOnly, o.startsOn, rule.Location); err != nil {
		return nil, fmt.Errorf("--starts-on: %w", err)
	}
	if o.endsOn != "" {
		ends, err := time.ParseInLocation(time.DateOnly, o.endsOn, rule.Location)
		if err != nil {
			return nil, fmt.Errorf("--ends-on: %w", err)
		}
		if ends.Before(s.StartsOn) {
			return nil, errors.New("--ends-on is before --starts-on")
		}
		s.EndsOn = &ends
	}
	return s, nil
}

func newSeriesCmd() *cobra.Command {
	series := &cobra.Command{
		Use:   "series",
		Short: "Manage recurring workshop series",
	}
	series.AddCommand(newSeriesCreateCmd(), newSeriesListCmd())
	return series
}

func newSeriesCreateCmd() *cobra.Command {
	var opts seriesOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a series; instances appear on the next series run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.build()
			if err != nil {
				return err
			}
			a, log, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Series().CreateSeries(cmd.Context(), s); err != nil {
				return fmt.Errorf("create series: %w", err)
			}
			log.Info().Str("series_id", s.ID.String()).Str("frequency", string(s.Frequency)).Msg("series created")
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", "", "host user id")
	f.StringVar(&opts.title, "title", "", "workshop title")
	f.StringVar(&opts.description, "description", "", "workshop description")
	f.StringVar(&opts.category, "category", "", "workshop category")
	f.IntVar(&opts.duration, "duration", 60, "duration in minutes")
	f.IntVar(&opts.capacity, "capacity", 0, "maximum attendees, 0 for unlimited")
	f.BoolVar(&opts.private, "private", false, "admit only RSVP holders")
	f.StringVar(&opts.frequency, "frequency", "weekly", "daily, weekly, biweekly or monthly")
	f.IntVar(&opts.interval, "interval", 1, "repeat every N units")
	f.StringSliceVar(&opts.weekdays, "weekdays", nil, "weekdays for weekly series, e.g. mon,wed")
	f.StringVar(&opts.timeOfDay, "time", "", "local start time, HH:MM")
	f.StringVar(&opts.timezone, "timezone", "UTC", "IANA time zone")
	f.StringVar(&opts.startsOn, "starts-on", "", "first date, YYYY-MM-DD")
	f.StringVar(&opts.endsOn, "ends-on", "", "last date, YYYY-MM-DD")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("time")
	cmd.MarkFlagRequired("starts-on")
	return cmd
}

func newSeriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.Series().ListActiveSeries(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tFREQUENCY\tTIME\tTIMEZONE")
			for _, s := range all {
				fmt.Fprintf(w, "%s\t%s\t%s/%d\t%s\t%s\n", s.ID, s.Title, s.Frequency, s.Interval, s.TimeOfDay, s.Timezone)
			}
			return w.Flush()
		},
	}
}
