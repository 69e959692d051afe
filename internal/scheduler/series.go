package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/media"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
	"github.com/rs/zerolog"
)

// SeriesJob materializes future instances of every active series.
type SeriesJob struct {
	series    SeriesStore
	instances InstanceStore
	clock     Clock
	lookahead time.Duration
	horizon   time.Duration
	logger    zerolog.Logger
}

func NewSeriesJob(series SeriesStore, instances InstanceStore, clock Clock, lookahead, horizon time.Duration, logger zerolog.Logger) *SeriesJob {
	if clock == nil {
		clock = SystemClock
	}
	return &SeriesJob{
		series:    series,
		instances: instances,
		clock:     clock,
		lookahead: lookahead,
		horizon:   horizon,
		logger:    logger.With().Str("component", "scheduler").Str("job", "series").Logger(),
	}
}

func (j *SeriesJob) Name() string { return "series" }

func (j *SeriesJob) Run(ctx context.Context) (Report, error) {
	report := Report{Job: j.Name()}
	now := j.clock.Now()

	active, err := j.series.ListActiveSeries(ctx)
	if err != nil {
		return report, fmt.Errorf("list active series: %w", err)
	}

	for _, s := range active {
		report.Processed++
		created, err := j.materialize(ctx, s, now)
		if err != nil {
			report.Failed++
			j.logger.Error().Err(err).Str("series_id", s.ID.String()).Msg("failed to materialize series")
			continue
		}
		report.Created += created
	}
	return report, nil
}

func (j *SeriesJob) materialize(ctx context.Context, s *models.Series, now time.Time) (int, error) {
	logger := j.logger.With().Str("series_id", s.ID.String()).Logger()

	latest, err := j.instances.FindLatestInstance(ctx, s.ID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		latest = nil
	case err != nil:
		return 0, fmt.Errorf("find latest instance: %w", err)
	}
	if latest != nil && latest.ScheduledStart.After(now.Add(j.lookahead)) {
		logger.Debug().Time("latest", latest.ScheduledStart).Msg("series already materialized past the lookahead")
		return 0, nil
	}

	rule, err := RuleFromSeries(s)
	if err != nil {
		return 0, err
	}
	until := now.Add(j.horizon)
	starts := rule.Occurrences(now, until)
	if len(starts) == 0 {
		return 0, nil
	}

	existing, err := j.instances.ListInstanceStarts(ctx, s.ID, now, until.Add(time.Second))
	if err != nil {
		return 0, fmt.Errorf("list existing instances: %w", err)
	}
	taken := make(map[int64]bool, len(existing))
	for _, t := range existing {
		taken[t.Unix()] = true
	}

	created := 0
	for _, start := range starts {
		if taken[start.Unix()] {
			continue
		}
		w := newInstance(s, start)
		err := j.instances.CreateWorkshop(ctx, w)
		if errors.Is(err, repositories.ErrDuplicate) {
			// an overlapping run got there first
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create instance at %s: %w", start.Format(time.RFC3339), err)
		}
		taken[start.Unix()] = true
		created++
	}
	if created > 0 {
		logger.Info().Int("created", created).Msg("materialized series instances")
	}
	return created, nil
}

func newInstance(s *models.Series, start time.Time) *models.Workshop {
	id := uuid.New()
	seriesID := s.ID
	return &models.Workshop{
		ID:              id,
		Title:           s.Title,
		Description:     s.Description,
		Category:        s.Category,
		HostID:          s.HostID,
		SeriesID:        &seriesID,
		ScheduledStart:  start.UTC(),
		DurationMinutes: s.DurationMinutes,
		Capacity:        s.Capacity,
		IsPrivate:       s.IsPrivate,
		RoomID:          media.RoomIDFor(id),
		Status:          models.WorkshopStatusScheduled,
	}
}
