package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/notifications"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
	"github.com/rs/zerolog"
)

// NoShowJob cancels workshops whose host never started them within the grace
// period. The cancel goes through the session's coordinator, so a host start
// that lands first turns it into a no-op.
type NoShowJob struct {
	store     Store
	canceller Canceller
	notifier  notifications.Notifier
	clock     Clock
	grace     time.Duration
	logger    zerolog.Logger
}

func NewNoShowJob(store Store, canceller Canceller, notifier notifications.Notifier, clock Clock, grace time.Duration, logger zerolog.Logger) *NoShowJob {
	if clock == nil {
		clock = SystemClock
	}
	return &NoShowJob{
		store:     store,
		canceller: canceller,
		notifier:  notifier,
		clock:     clock,
		grace:     grace,
		logger:    logger.With().Str("component", "scheduler").Str("job", "no-show").Logger(),
	}
}

func (j *NoShowJob) Name() string { return "no-show" }

func (j *NoShowJob) Run(ctx context.Context) (Report, error) {
	report := Report{Job: j.Name()}
	cutoff := j.clock.Now().Add(-j.grace)

	overdue, err := j.store.ListOverdueScheduled(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("list overdue workshops: %w", err)
	}

	for _, w := range overdue {
		report.Processed++
		logger := j.logger.With().Str("session_id", w.ID.String()).Logger()

		cancelled, err := j.canceller.Cancel(ctx, w.ID, workshop.Actor{System: true}, workshop.CancelReasonNoShow)
		if err != nil {
			report.Failed++
			logger.Error().Err(err).Msg("failed to cancel no-show workshop")
			continue
		}
		if !cancelled {
			logger.Debug().Msg("workshop left scheduled before the cancel landed")
			continue
		}
		report.Cancelled++
		logger.Info().Time("scheduled_start", w.ScheduledStart).Msg("cancelled no-show workshop")

		sent, err := j.notify(ctx, w)
		if err != nil {
			report.Failed++
			logger.Error().Err(err).Msg("failed to notify attendees of cancellation")
			continue
		}
		report.Sent += sent
	}
	return report, nil
}

func (j *NoShowJob) notify(ctx context.Context, w *models.Workshop) (int, error) {
	attendees, err := j.store.ListRSVPedAttendees(ctx, w.ID)
	if err != nil {
		return 0, err
	}
	return notifications.Fanout(ctx, j.notifier, j.logger, attendees, func(recipient uuid.UUID) notifications.Notification {
		return notifications.CancellationNotice(recipient, w.ID, w.Title)
	}), nil
}
