package workshop

import (
	"context"
	"errors"
	"fmt"

	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
)

// Cancel reasons recorded on the workshop row.
const (
	CancelReasonHost   = "host_cancelled"
	CancelReasonAdmin  = "admin_cancelled"
	CancelReasonNoShow = "host_no_show"
)

func (c *Coordinator) start(ctx context.Context, actor Actor) error {
	if actor.UserID != c.session.HostID {
		return reject(ErrPermissionDenied, "only the host can start the workshop")
	}
	if !c.status.IsPreStart() {
		return reject(ErrInvalidState, "cannot start a workshop that is %s", c.status)
	}
	now := c.now()
	_, err := c.transition(ctx, models.WorkshopStatusLive, "", models.StatusUpdate{StartedAt: &now})
	return err
}

func (c *Coordinator) end(ctx context.Context, actor Actor, recordingURL string) error {
	if actor.UserID != c.session.HostID {
		return reject(ErrPermissionDenied, "only the host can end the workshop")
	}
	if c.status != models.WorkshopStatusLive {
		return reject(ErrInvalidState, "cannot end a workshop that is %s", c.status)
	}
	now := c.now()
	update := models.StatusUpdate{EndedAt: &now}
	if recordingURL != "" {
		update.RecordingURL = &recordingURL
	}
	_, err := c.transition(ctx, models.WorkshopStatusEnded, "", update)
	return err
}

// cancel is open to the host, admins and the scheduler. A scheduler call on a
// workshop that already left the pre-start states is a silent no-op.
func (c *Coordinator) cancel(ctx context.Context, actor Actor, reason string) (bool, error) {
	switch {
	case actor.System:
		if reason == "" {
			reason = CancelReasonNoShow
		}
		if !c.status.IsPreStart() {
			return false, nil
		}
	case actor.IsAdmin:
		if reason == "" {
			reason = CancelReasonAdmin
		}
	case actor.UserID == c.session.HostID:
		if reason == "" {
			reason = CancelReasonHost
		}
	default:
		return false, reject(ErrPermissionDenied, "only the host or an admin can cancel the workshop")
	}
	if !c.status.IsPreStart() {
		return false, reject(ErrInvalidState, "cannot cancel a workshop that is %s", c.status)
	}
	now := c.now()
	return c.transition(ctx, models.WorkshopStatusCancelled, reason, models.StatusUpdate{
		EndedAt:      &now,
		CancelReason: &reason,
	})
}

// transition persists a lifecycle move as a compare-and-set against the
// stored status. Losing the race is not an error: the coordinator adopts
// whatever the winner wrote and broadcasts that instead.
func (c *Coordinator) transition(ctx context.Context, next models.WorkshopStatus, reason string, update models.StatusUpdate) (bool, error) {
	previous := c.status
	if !models.CanTransition(previous, next) {
		return false, reject(ErrInvalidState, "cannot move from %s to %s", previous, next)
	}

	expected := previous
	if expected == models.WorkshopStatusLobby {
		expected = models.WorkshopStatusScheduled
	}

	err := c.store.UpdateWorkshopStatus(ctx, c.sessionID, expected, next, update)
	if errors.Is(err, repositories.ErrStatusConflict) {
		return false, c.resync(ctx, previous)
	}
	if err != nil {
		return false, fmt.Errorf("persist %s: %w", next, err)
	}

	c.status = next
	c.session.Status = next
	if update.StartedAt != nil {
		c.session.StartedAt = update.StartedAt
	}
	if update.EndedAt != nil {
		c.session.EndedAt = update.EndedAt
	}
	if update.CancelReason != nil {
		c.session.CancelReason = update.CancelReason
	}
	if update.RecordingURL != nil {
		c.session.RecordingURL = update.RecordingURL
	}

	c.transport.Broadcast(c.sessionID, dtos.StateChangedEvent{
		SessionID: c.sessionID,
		Status:    next,
		Previous:  previous,
		Reason:    reason,
		At:        c.now(),
	})
	c.logger.Info().
		Str("from", string(previous)).
		Str("to", string(next)).
		Str("reason", reason).
		Msg("workshop status changed")
	return true, nil
}

// resync re-reads the store after a lost compare-and-set.
func (c *Coordinator) resync(ctx context.Context, previous models.WorkshopStatus) error {
	fresh, err := c.store.GetWorkshop(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("reload after conflict: %w", err)
	}
	c.session = fresh
	c.status = fresh.Status
	if c.status == models.WorkshopStatusScheduled && previous == models.WorkshopStatusLobby {
		c.status = models.WorkshopStatusLobby
	}
	c.logger.Info().
		Str("expected", string(previous)).
		Str("actual", string(c.status)).
		Msg("lifecycle transition lost a race")
	if c.status != previous {
		c.transport.Broadcast(c.sessionID, dtos.StateChangedEvent{
			SessionID: c.sessionID,
			Status:    c.status,
			Previous:  previous,
			Reason:    stringValue(fresh.CancelReason),
			At:        c.now(),
		})
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
