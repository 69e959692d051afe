package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Job is one idempotent pass over the store.
type Job interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// RunnerConfig sets the job cadences.
type RunnerConfig struct {
	ReminderInterval time.Duration
	NoShowInterval   time.Duration
	// SeriesRunAt is the "HH:MM" UTC time of the daily series pass.
	SeriesRunAt string
}

// Runner drives the jobs on independent timers until its context ends.
type Runner struct {
	reminders Job
	noShow    Job
	series    Job
	cfg       RunnerConfig
	seriesAt  time.Duration
	logger    zerolog.Logger
}

func NewRunner(reminders, noShow, series Job, cfg RunnerConfig, logger zerolog.Logger) (*Runner, error) {
	at, err := time.Parse("15:04", cfg.SeriesRunAt)
	if err != nil {
		return nil, fmt.Errorf("series run time %q: %w", cfg.SeriesRunAt, err)
	}
	if cfg.ReminderInterval <= 0 || cfg.NoShowInterval <= 0 {
		return nil, fmt.Errorf("job intervals must be positive")
	}
	return &Runner{
		reminders: reminders,
		noShow:    noShow,
		series:    series,
		cfg:       cfg,
		seriesAt:  time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Run blocks until ctx is cancelled. Job failures are logged, never returned.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.every(ctx, r.reminders, r.cfg.ReminderInterval)
		return nil
	})
	g.Go(func() error {
		r.every(ctx, r.noShow, r.cfg.NoShowInterval)
		return nil
	})
	g.Go(func() error {
		r.daily(ctx, r.series)
		return nil
	})
	r.logger.Info().
		Dur("reminder_interval", r.cfg.ReminderInterval).
		Dur("no_show_interval", r.cfg.NoShowInterval).
		Str("series_run_at", r.cfg.SeriesRunAt).
		Msg("scheduler started")
	err := g.Wait()
	r.logger.Info().Msg("scheduler stopped")
	return err
}

func (r *Runner) every(ctx context.Context, job Job, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunOnce(ctx, job, r.logger)
		}
	}
}

func (r *Runner) daily(ctx context.Context, job Job) {
	for {
		timer := time.NewTimer(time.Until(nextDaily(time.Now(), r.seriesAt)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			RunOnce(ctx, job, r.logger)
		}
	}
}

// nextDaily returns the first instant after now at offset past UTC midnight.
func nextDaily(now time.Time, offset time.Duration) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(offset)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce runs a job and logs its report.
func RunOnce(ctx context.Context, job Job, logger zerolog.Logger) (Report, error) {
	started := time.Now()
	report, err := job.Run(ctx)
	event := logger.Debug()
	if err != nil {
		event = logger.Error().Err(err)
	} else if report.Sent+report.Created+report.Cancelled+report.Failed > 0 {
		event = logger.Info()
	}
	event.
		Str("job", job.Name()).
		Int("processed", report.Processed).
		Int("sent", report.Sent).
		Int("created", report.Created).
		Int("cancelled", report.Cancelled).
		Int("failed", report.Failed).
		Dur("took", time.Since(started)).
		Msg("job finished")
	return report, err
}
