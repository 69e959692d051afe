package workshop

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/rs/zerolog"
)

// RegistryConfig tunes the per-session actors.
type RegistryConfig struct {
	MailboxSize int
	Now         func() time.Time
}

// Registry hands out exactly one Coordinator per session id. A coordinator
// retires itself once its roster is empty and nothing is queued for it.
type Registry struct {
	mu           sync.Mutex
	coordinators map[uuid.UUID]*Coordinator
	closed       bool
	quit         chan struct{}

	store       Store
	transport   Transport
	logger      zerolog.Logger
	now         func() time.Time
	mailboxSize int
}

func NewRegistry(store Store, transport Transport, logger zerolog.Logger, cfg RegistryConfig) *Registry {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		coordinators: make(map[uuid.UUID]*Coordinator),
		quit:         make(chan struct{}),
		store:        store,
		transport:    transport,
		logger:       logger.With().Str("component", "coordinator").Logger(),
		now:          cfg.Now,
		mailboxSize:  cfg.MailboxSize,
	}
}

// do queues fn on the session's coordinator and waits for it to run.
func (r *Registry) do(ctx context.Context, sessionID uuid.UUID, fn func(ctx context.Context, c *Coordinator) error) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	c, ok := r.coordinators[sessionID]
	if !ok {
		c = newCoordinator(r, sessionID)
		r.coordinators[sessionID] = c
		go c.run()
	}
	c.pending++
	r.mu.Unlock()

	cmd := command{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case c.mailbox <- cmd:
	case <-ctx.Done():
		// pending is already counted; hand the coordinator a no-op so it settles.
		go func() {
			select {
			case c.mailbox <- command{ctx: context.Background(), done: make(chan error, 1)}:
			case <-r.quit:
			}
		}()
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return ErrRegistryClosed
	}
}

// settle is called by the coordinator after every command.
func (r *Registry) settle(c *Coordinator) (retired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.pending--
	if c.pending == 0 && c.idle() {
		if r.coordinators[c.sessionID] == c {
			delete(r.coordinators, c.sessionID)
		}
		return true
	}
	return false
}

// Join adds or refreshes an attendee and sends them a full snapshot.
// A rejected join is also reported to the connection as a validation error.
func (r *Registry) Join(ctx context.Context, req JoinRequest) error {
	return r.do(ctx, req.SessionID, func(ctx context.Context, c *Coordinator) error {
		err := c.join(ctx, req)
		if rej, ok := asRejection(err); ok {
			c.notifyRejection(Actor{UserID: req.UserID, ConnectionID: req.ConnectionID}, dtos.IntentJoin, rej)
		}
		return err
	})
}

// Leave removes the attendee unless connectionID has already been replaced.
func (r *Registry) Leave(ctx context.Context, sessionID, userID, connectionID uuid.UUID) error {
	return r.do(ctx, sessionID, func(ctx context.Context, c *Coordinator) error {
		c.leave(userID, connectionID)
		return nil
	})
}

// Handle applies one client intent. Rejections go back to the actor's
// connection only and are also returned.
func (r *Registry) Handle(ctx context.Context, sessionID uuid.UUID, actor Actor, intent dtos.Intent) error {
	return r.do(ctx, sessionID, func(ctx context.Context, c *Coordinator) error {
		err := c.apply(ctx, actor, intent)
		if rej, ok := asRejection(err); ok {
			c.notifyRejection(actor, intent.Type, rej)
		}
		return err
	})
}

// Cancel performs the pre-start cancellation for the host, an admin or the
// scheduler. transitioned is false when another transition won the race.
// A rejection is reported to actor.ConnectionID when one is set.
func (r *Registry) Cancel(ctx context.Context, sessionID uuid.UUID, actor Actor, reason string) (transitioned bool, err error) {
	err = r.do(ctx, sessionID, func(ctx context.Context, c *Coordinator) error {
		var cerr error
		transitioned, cerr = c.cancel(ctx, actor, reason)
		if rej, ok := asRejection(cerr); ok {
			c.notifyRejection(actor, dtos.IntentCancel, rej)
		}
		return cerr
	})
	return transitioned, err
}

// AuthorizeMedia confirms the user's live role before a credential is issued.
func (r *Registry) AuthorizeMedia(ctx context.Context, sessionID, userID uuid.UUID) (MediaGrant, error) {
	var grant MediaGrant
	err := r.do(ctx, sessionID, func(ctx context.Context, c *Coordinator) error {
		var gerr error
		grant, gerr = c.mediaGrant(userID)
		return gerr
	})
	return grant, err
}

// LiveView reports the coordinator's status (which may be "lobby") and roster
// size. ok is false when no coordinator is active for the session.
func (r *Registry) LiveView(ctx context.Context, sessionID uuid.UUID) (status models.WorkshopStatus, participants int, ok bool, err error) {
	r.mu.Lock()
	_, active := r.coordinators[sessionID]
	r.mu.Unlock()
	if !active {
		return "", 0, false, nil
	}
	err = r.do(ctx, sessionID, func(ctx context.Context, c *Coordinator) error {
		status = c.status
		participants = c.roster.Len()
		return nil
	})
	return status, participants, err == nil, err
}

// ActiveSessions returns the number of live coordinators.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.coordinators)
}

// Close stops every coordinator. Queued commands fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.quit)
	r.coordinators = make(map[uuid.UUID]*Coordinator)
}
