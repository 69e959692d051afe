package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/notifications"
	"github.com/rs/zerolog"
)

// ReminderKind is one "starts in ..." notice. Name goes into the dedup key.
type ReminderKind struct {
	Name  string
	Lead  time.Duration
	Label string
}

var DefaultReminderKinds = []ReminderKind{
	{Name: "1h", Lead: time.Hour, Label: "1 hour"},
	{Name: "15m", Lead: 15 * time.Minute, Label: "15 minutes"},
}

// ReminderTolerance is the band half-width for a job ticking every interval.
// A full interval makes consecutive bands overlap, so a late tick leaves no gap.
func ReminderTolerance(interval time.Duration) time.Duration {
	return interval
}

// ReminderJob notifies RSVP holders ahead of a workshop. A workshop is
// picked up while its start lies within Tolerance of now+Lead; the dedup key
// makes every tick after the first a no-op for that kind.
type ReminderJob struct {
	store     Store
	notifier  notifications.Notifier
	clock     Clock
	kinds     []ReminderKind
	tolerance time.Duration
	logger    zerolog.Logger
}

func NewReminderJob(store Store, notifier notifications.Notifier, clock Clock, tolerance time.Duration, logger zerolog.Logger) *ReminderJob {
	if clock == nil {
		clock = SystemClock
	}
	return &ReminderJob{
		store:     store,
		notifier:  notifier,
		clock:     clock,
		kinds:     DefaultReminderKinds,
		tolerance: tolerance,
		logger:    logger.With().Str("component", "scheduler").Str("job", "reminders").Logger(),
	}
}

func (j *ReminderJob) Name() string { return "reminders" }

func (j *ReminderJob) Run(ctx context.Context) (Report, error) {
	report := Report{Job: j.Name()}
	now := j.clock.Now()

	for _, kind := range j.kinds {
		target := now.Add(kind.Lead)
		sessions, err := j.store.ListScheduledStartingBetween(ctx, target.Add(-j.tolerance), target.Add(j.tolerance))
		if err != nil {
			return report, fmt.Errorf("list workshops for %s reminders: %w", kind.Name, err)
		}
		for _, w := range sessions {
			report.Processed++
			sent, err := j.remind(ctx, w, kind)
			if err != nil {
				report.Failed++
				j.logger.Error().Err(err).
					Str("session_id", w.ID.String()).
					Str("reminder", kind.Name).
					Msg("failed to send reminders")
				continue
			}
			report.Sent += sent
		}
	}
	return report, nil
}

func (j *ReminderJob) remind(ctx context.Context, w *models.Workshop, kind ReminderKind) (int, error) {
	attendees, err := j.store.ListRSVPedAttendees(ctx, w.ID)
	if err != nil {
		return 0, err
	}
	sent := notifications.Fanout(ctx, j.notifier, j.logger, attendees, func(recipient uuid.UUID) notifications.Notification {
		return notifications.ReminderNotice(recipient, w.ID, kind.Name, w.Title, kind.Label)
	})
	if sent > 0 {
		j.logger.Info().
			Str("session_id", w.ID.String()).
			Str("reminder", kind.Name).
			Int("sent", sent).
			Msg("reminders sent")
	}
	return sent, nil
}
