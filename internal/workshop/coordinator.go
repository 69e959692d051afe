package workshop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/rs/zerolog"
)

// Actor identifies who asked for a change.
type Actor struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID // uuid.Nil for REST and scheduler callers
	IsAdmin      bool
	System       bool // scheduler-driven
}

// JoinRequest carries the authenticated identity plus self-reported display metadata.
type JoinRequest struct {
	SessionID    uuid.UUID
	ConnectionID uuid.UUID
	UserID       uuid.UUID
	DisplayName  string
	AvatarURL    string
	IsAdmin      bool
}

// grant is what survives a disconnect for the session's lifetime.
type grant struct {
	coHost  bool
	speaker bool
}

type command struct {
	ctx  context.Context
	fn   func(ctx context.Context, c *Coordinator) error
	done chan error
}

// Coordinator is the single owner of one session's lifecycle and roster.
// All state below is touched only by the run goroutine.
type Coordinator struct {
	sessionID uuid.UUID
	registry  *Registry
	store     Store
	transport Transport
	logger    zerolog.Logger
	now       func() time.Time

	mailbox chan command
	pending int // guarded by registry.mu

	session *models.Workshop
	status  models.WorkshopStatus
	roster  *Roster
	grants  map[uuid.UUID]grant
}

func newCoordinator(r *Registry, sessionID uuid.UUID) *Coordinator {
	return &Coordinator{
		sessionID: sessionID,
		registry:  r,
		store:     r.store,
		transport: r.transport,
		logger:    r.logger.With().Str("session_id", sessionID.String()).Logger(),
		now:       r.now,
		mailbox:   make(chan command, r.mailboxSize),
		grants:    make(map[uuid.UUID]grant),
	}
}

func (c *Coordinator) run() {
	c.logger.Debug().Msg("coordinator started")
	for {
		select {
		case cmd := <-c.mailbox:
			cmd.done <- c.execute(cmd)
			if c.registry.settle(c) {
				c.logger.Debug().Msg("coordinator retired")
				return
			}
		case <-c.registry.quit:
			return
		}
	}
}

func (c *Coordinator) execute(cmd command) (err error) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error().Interface("panic", p).Msg("coordinator command panicked")
			err = fmt.Errorf("coordinator panic: %v", p)
		}
	}()
	if cmd.fn == nil {
		return nil
	}
	if err := c.hydrate(cmd.ctx); err != nil {
		return err
	}
	return cmd.fn(cmd.ctx, c)
}

// hydrate loads the durable record the first time the coordinator is used.
func (c *Coordinator) hydrate(ctx context.Context) error {
	if c.session != nil {
		return nil
	}
	session, err := c.store.GetWorkshop(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("load workshop %s: %w", c.sessionID, err)
	}
	c.session = session
	c.status = session.Status
	c.roster = NewRoster(session.HostID)
	return nil
}

func (c *Coordinator) idle() bool {
	return c.roster == nil || c.roster.Len() == 0
}

func (c *Coordinator) snapshot() dtos.SnapshotEvent {
	entries := c.roster.Entries()
	participants := make([]dtos.Participant, 0, len(entries))
	for _, e := range entries {
		participants = append(participants, e.Participant())
	}
	return dtos.SnapshotEvent{
		SessionID:    c.sessionID,
		HostID:       c.session.HostID,
		Status:       c.status,
		StartedAt:    c.session.StartedAt,
		Participants: participants,
		RaisedHands:  c.roster.RaisedHands(),
		ServerTime:   c.now(),
	}
}

func (c *Coordinator) join(ctx context.Context, req JoinRequest) error {
	isHost := req.UserID == c.session.HostID

	banned, err := c.store.IsBanned(ctx, c.sessionID, req.UserID)
	if err != nil {
		return fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return reject(ErrBanned, "you have been removed from this workshop")
	}

	if c.session.IsPrivate && !isHost && !req.IsAdmin {
		ok, err := c.store.HasRSVP(ctx, c.sessionID, req.UserID)
		if err != nil {
			return fmt.Errorf("check rsvp: %w", err)
		}
		if !ok {
			return reject(ErrPermissionDenied, "this workshop is private")
		}
	}

	existing := c.roster.Get(req.UserID)
	if existing == nil && !isHost && c.session.Capacity > 0 && c.roster.Len() >= c.session.Capacity {
		return reject(ErrCapacityReached, "workshop is full")
	}

	if err := c.transport.JoinRoom(c.sessionID, req.ConnectionID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	entry := &Entry{
		UserID:       req.UserID,
		ConnectionID: req.ConnectionID,
		DisplayName:  req.DisplayName,
		AvatarURL:    req.AvatarURL,
		JoinedAt:     c.now(),
	}
	if existing != nil {
		// Same identity reconnecting: keep facets, retire the stale connection.
		entry.IsCoHost = existing.IsCoHost
		entry.SpeakerGranted = existing.SpeakerGranted
		entry.JoinedAt = existing.JoinedAt
		if entry.DisplayName == "" {
			entry.DisplayName = existing.DisplayName
		}
		if existing.ConnectionID != req.ConnectionID {
			c.transport.LeaveRoom(c.sessionID, existing.ConnectionID)
			c.transport.Disconnect(existing.ConnectionID)
		}
	} else if g, ok := c.grants[req.UserID]; ok {
		entry.IsCoHost = g.coHost
		entry.SpeakerGranted = g.speaker
	}
	c.roster.Upsert(entry)

	if c.status == models.WorkshopStatusScheduled {
		c.status = models.WorkshopStatusLobby
		c.transport.Broadcast(c.sessionID, dtos.StateChangedEvent{
			SessionID: c.sessionID,
			Status:    models.WorkshopStatusLobby,
			Previous:  models.WorkshopStatusScheduled,
			At:        c.now(),
		})
	}

	if err := c.transport.SendToConnection(req.ConnectionID, c.snapshot()); err != nil {
		c.logger.Warn().Err(err).Str("user_id", req.UserID.String()).Msg("failed to send snapshot")
	}
	c.transport.Broadcast(c.sessionID, dtos.UserJoinedEvent{Participant: entry.Participant()})

	c.logger.Info().
		Str("user_id", req.UserID.String()).
		Bool("reconnect", existing != nil).
		Int("roster", c.roster.Len()).
		Msg("attendee joined")
	return nil
}

// leave ignores a connection that has already been replaced by a newer one.
func (c *Coordinator) leave(userID, connectionID uuid.UUID) {
	entry := c.roster.Get(userID)
	if entry == nil || (connectionID != uuid.Nil && entry.ConnectionID != connectionID) {
		c.transport.LeaveRoom(c.sessionID, connectionID)
		return
	}
	c.roster.Remove(userID)
	c.grants[userID] = grant{coHost: entry.IsCoHost, speaker: entry.SpeakerGranted}
	c.transport.LeaveRoom(c.sessionID, entry.ConnectionID)
	c.transport.Broadcast(c.sessionID, dtos.UserLeftEvent{UserID: userID})
	c.logger.Info().Str("user_id", userID.String()).Int("roster", c.roster.Len()).Msg("attendee left")
}

// notifyRejection sends the validation error to the originating connection only.
func (c *Coordinator) notifyRejection(actor Actor, intent dtos.IntentType, rej *Rejection) {
	c.logger.Debug().
		Str("user_id", actor.UserID.String()).
		Str("intent", string(intent)).
		Str("code", rej.Code()).
		Msg(rej.Message)
	if actor.ConnectionID == uuid.Nil {
		return
	}
	ev := dtos.ValidationErrorEvent{Intent: intent, Code: rej.Code(), Message: rej.Message}
	if err := c.transport.SendToConnection(actor.ConnectionID, ev); err != nil {
		c.logger.Warn().Err(err).Msg("failed to deliver validation error")
	}
}
