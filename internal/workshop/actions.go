package workshop

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

// apply runs one intent against the roster. Permission is checked before any mutation.
func (c *Coordinator) apply(ctx context.Context, actor Actor, intent dtos.Intent) error {
	switch intent.Type {
	case dtos.IntentStart:
		return c.start(ctx, actor)
	case dtos.IntentEnd:
		return c.end(ctx, actor, intent.Payload.RecordingURL)
	case dtos.IntentCancel:
		_, err := c.cancel(ctx, actor, intent.Payload.Reason)
		return err
	case dtos.IntentLeave:
		c.leave(actor.UserID, actor.ConnectionID)
		return nil
	}

	self := c.roster.Get(actor.UserID)
	if self == nil {
		return reject(ErrNotFound, "join the workshop first")
	}
	if c.status.IsTerminal() {
		return reject(ErrInvalidState, "workshop is %s", c.status)
	}

	switch intent.Type {
	case dtos.IntentRaiseHand:
		return c.raiseHand(self)
	case dtos.IntentLowerHand:
		return c.lowerHand(self)
	}

	target, err := c.target(self, intent)
	if err != nil {
		return err
	}

	switch intent.Type {
	case dtos.IntentApproveSpeaker:
		return c.approveSpeaker(self, target)
	case dtos.IntentRevokeSpeaker:
		return c.revokeSpeaker(self, target)
	case dtos.IntentPromoteCohost:
		return c.promoteCoHost(self, target)
	case dtos.IntentDemoteCohost:
		return c.demoteCoHost(self, target)
	case dtos.IntentMuteUser:
		c.transport.Broadcast(c.sessionID, dtos.UserMutedEvent{UserID: target.UserID, By: self.UserID})
		return nil
	case dtos.IntentRemoveUser:
		if target.IsHost {
			return reject(ErrPermissionDenied, "the host cannot be removed")
		}
		c.removeUser(self, target, false, intent.Payload.Reason)
		return nil
	case dtos.IntentBanUser:
		return c.banUser(ctx, self, target, intent.Payload.Reason)
	}
	return reject(ErrInvalidRequest, "unsupported intent %q", intent.Type)
}

// target resolves and authorizes the subject of a moderation intent.
func (c *Coordinator) target(self *Entry, intent dtos.Intent) (*Entry, error) {
	hostOnly := intent.Type == dtos.IntentPromoteCohost || intent.Type == dtos.IntentDemoteCohost
	if hostOnly && !self.IsHost {
		return nil, reject(ErrPermissionDenied, "only the host can %s", intent.Type)
	}
	if !self.CanModerate() {
		return nil, reject(ErrPermissionDenied, "only the host or a co-host can %s", intent.Type)
	}
	if intent.Payload.Target == nil {
		return nil, reject(ErrInvalidRequest, "%s requires a target", intent.Type)
	}
	target := c.roster.Get(*intent.Payload.Target)
	if target == nil {
		return nil, reject(ErrNotFound, "attendee %s is not in the workshop", *intent.Payload.Target)
	}
	return target, nil
}

func (c *Coordinator) raiseHand(self *Entry) error {
	if err := c.roster.RaiseHand(self.UserID); err != nil {
		return rejectRoster(err)
	}
	c.transport.Broadcast(c.sessionID, dtos.HandRaisedEvent{UserID: self.UserID})
	return nil
}

func (c *Coordinator) lowerHand(self *Entry) error {
	if !c.roster.LowerHand(self.UserID) {
		return rejectRoster(ErrHandNotRaised)
	}
	c.transport.Broadcast(c.sessionID, dtos.HandLoweredEvent{UserID: self.UserID})
	return nil
}

// approveSpeaker is idempotent: approving someone who already speaks changes nothing.
func (c *Coordinator) approveSpeaker(self, target *Entry) error {
	if target.CanSpeak() {
		return nil
	}
	if err := c.roster.ApproveSpeaker(target.UserID); err != nil {
		return rejectRoster(err)
	}
	c.transport.Broadcast(c.sessionID, dtos.SpeakerApprovedEvent{UserID: target.UserID, By: self.UserID})
	return nil
}

func (c *Coordinator) revokeSpeaker(self, target *Entry) error {
	if err := c.roster.RevokeSpeaker(target.UserID); err != nil {
		return rejectRoster(err)
	}
	c.transport.Broadcast(c.sessionID, dtos.SpeakerRevokedEvent{UserID: target.UserID, By: self.UserID})
	return nil
}

func (c *Coordinator) promoteCoHost(self, target *Entry) error {
	if err := c.roster.PromoteCoHost(target.UserID); err != nil {
		return rejectRoster(err)
	}
	c.transport.Broadcast(c.sessionID, dtos.CohostPromotedEvent{UserID: target.UserID, By: self.UserID})
	return nil
}

// demoteCoHost also emits speaker_revoked when the co-host role was the only
// source of speaking rights.
func (c *Coordinator) demoteCoHost(self, target *Entry) error {
	canSpeak, err := c.roster.DemoteCoHost(target.UserID)
	if err != nil {
		return rejectRoster(err)
	}
	c.transport.Broadcast(c.sessionID, dtos.CohostDemotedEvent{UserID: target.UserID, By: self.UserID, CanSpeak: canSpeak})
	if !canSpeak {
		c.transport.Broadcast(c.sessionID, dtos.SpeakerRevokedEvent{UserID: target.UserID, By: self.UserID})
	}
	return nil
}

func (c *Coordinator) removeUser(self, target *Entry, banned bool, reason string) {
	c.roster.Remove(target.UserID)
	delete(c.grants, target.UserID)
	c.transport.Broadcast(c.sessionID, dtos.UserRemovedEvent{
		UserID: target.UserID,
		By:     self.UserID,
		Banned: banned,
		Reason: reason,
	})
	c.transport.LeaveRoom(c.sessionID, target.ConnectionID)
	c.transport.Disconnect(target.ConnectionID)
	c.logger.Info().
		Str("user_id", target.UserID.String()).
		Str("by", self.UserID.String()).
		Bool("banned", banned).
		Msg("attendee removed")
}

func (c *Coordinator) banUser(ctx context.Context, self, target *Entry, reason string) error {
	if target.IsHost {
		return reject(ErrPermissionDenied, "the host cannot be banned")
	}
	err := c.store.RecordBan(ctx, models.WorkshopBan{
		WorkshopID: c.sessionID,
		UserID:     target.UserID,
		BannedBy:   self.UserID,
		Reason:     reason,
		CreatedAt:  c.now(),
	})
	if err != nil {
		return fmt.Errorf("record ban: %w", err)
	}
	c.removeUser(self, target, true, reason)
	return nil
}

// mediaGrant confirms the caller's current role for credential issuance.
func (c *Coordinator) mediaGrant(userID uuid.UUID) (MediaGrant, error) {
	if c.status != models.WorkshopStatusLive {
		return MediaGrant{}, reject(ErrInvalidState, "workshop is %s", c.status)
	}
	entry := c.roster.Get(userID)
	if entry == nil {
		return MediaGrant{}, reject(ErrNotFound, "join the workshop first")
	}
	return MediaGrant{
		SessionID:  c.sessionID,
		RoomID:     c.session.RoomID,
		UserID:     userID,
		CanPublish: entry.CanSpeak(),
		IsHost:     entry.IsHost,
		IsCoHost:   entry.IsCoHost,
	}, nil
}

// MediaGrant is the confirmed role a media credential is scoped to.
type MediaGrant struct {
	SessionID  uuid.UUID
	RoomID     string
	UserID     uuid.UUID
	CanPublish bool
	IsHost     bool
	IsCoHost   bool
}

func asRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	ok := errors.As(err, &rej)
	return rej, ok
}
