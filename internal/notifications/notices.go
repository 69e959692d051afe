package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func workshopRef(workshopID uuid.UUID) string {
	return "workshop:" + workshopID.String()
}

// ReminderKey is shared by every recipient of one reminder kind for one workshop.
func ReminderKey(reminderKind string, workshopID uuid.UUID) string {
	return fmt.Sprintf("workshop-reminder:%s:%s", reminderKind, workshopID)
}

// CancellationKey is used by every path that can cancel a workshop, so an
// attendee hears about a cancellation once.
func CancellationKey(workshopID uuid.UUID) string {
	return "workshop-cancelled:" + workshopID.String()
}

func ReminderNotice(recipient, workshopID uuid.UUID, reminderKind, title, startsIn string) Notification {
	return Notification{
		RecipientID: recipient,
		Kind:        KindReminder,
		EntityRef:   workshopRef(workshopID),
		Preview:     fmt.Sprintf("%q starts in %s", title, startsIn),
		DedupKey:    ReminderKey(reminderKind, workshopID),
	}
}

func CancellationNotice(recipient, workshopID uuid.UUID, title string) Notification {
	return Notification{
		RecipientID: recipient,
		Kind:        KindCancelled,
		EntityRef:   workshopRef(workshopID),
		Preview:     fmt.Sprintf("%q has been cancelled", title),
		DedupKey:    CancellationKey(workshopID),
	}
}

// Fanout delivers one notification per recipient. A failure for one
// recipient is logged and does not stop the rest.
func Fanout(ctx context.Context, n Notifier, logger zerolog.Logger, recipients []uuid.UUID, build func(recipient uuid.UUID) Notification) (sent int) {
	for _, recipient := range recipients {
		note := build(recipient)
		err := n.Notify(ctx, note)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrAlreadySent):
		default:
			logger.Error().Err(err).
				Str("recipient_id", recipient.String()).
				Str("kind", string(note.Kind)).
				Msg("failed to notify recipient")
		}
	}
	return sent
}
