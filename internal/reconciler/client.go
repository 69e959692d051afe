package reconciler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/rs/zerolog"
)

var (
	ErrNotSynced   = errors.New("session state not synced")
	ErrRemoved     = errors.New("removed from workshop")
	ErrJoinRefused = errors.New("join refused")
)

type ClientConfig struct {
	// Endpoint is the websocket route, e.g. wss://host/api/ws/workshop.
	Endpoint    string
	SessionID   uuid.UUID
	UserID      uuid.UUID
	AccessToken string
	DisplayName string
	AvatarURL   string

	Retry        RetryConfig
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client keeps a Mirror of one session in sync with the coordinator. Every
// (re)connect sends a join, and the snapshot that answers it replaces the
// mirror wholesale.
type Client struct {
	cfg       ClientConfig
	endpoint  string
	dialer    *websocket.Dialer
	refresher *Refresher
	onChange  func(Mirror)
	logger    zerolog.Logger

	mu         sync.Mutex
	mirror     Mirror
	conn       *websocket.Conn
	credential *Credential
	version    uint64

	notifyMu sync.Mutex
	notified uint64

	writeMu sync.Mutex
}

// NewClient builds a client. credentials may be nil when media is not needed;
// onChange, when set, receives every new mirror in order.
func NewClient(cfg ClientConfig, credentials CredentialSource, onChange func(Mirror), logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("token", cfg.AccessToken)
	q.Set("session_id", cfg.SessionID.String())
	u.RawQuery = q.Encode()

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	c := &Client{
		cfg:      cfg,
		endpoint: u.String(),
		dialer:   websocket.DefaultDialer,
		onChange: onChange,
		mirror:   NewMirror(cfg.SessionID, cfg.UserID),
		logger: logger.With().
			Str("component", "reconciler").
			Str("session_id", cfg.SessionID.String()).
			Logger(),
	}
	if credentials != nil {
		c.refresher = NewRefresher(credentials, cfg.Retry, c.setMedia, c.logger)
	}
	return c, nil
}

// Mirror returns the current view.
func (c *Client) Mirror() Mirror {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.clone()
}

// Credential returns the last media credential, if one is held.
func (c *Client) Credential() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credential == nil {
		return Credential{}, false
	}
	return *c.credential, true
}

// Run connects and keeps the mirror synced until ctx ends. It returns
// ErrRemoved when the user is removed or banned, ErrJoinRefused when the
// coordinator turns the join down, and a wrapped ErrRetriesExhausted once
// reconnecting gives up; the mirror is offline in each case.
//
// Failed dials and connections that drop before their snapshot count as
// consecutive failures. Only a snapshot resets the count.
func (c *Client) Run(ctx context.Context) error {
	defer c.stopMedia()

	var lastErr error
	failures := 0
	for {
		if failures > 0 {
			if failures > c.cfg.Retry.MaxRetries {
				c.update(func(m Mirror) Mirror { return WithConnection(m, ConnectionOffline) })
				return fmt.Errorf("%w after %d retries: %v", ErrRetriesExhausted, c.cfg.Retry.MaxRetries, lastErr)
			}
			c.update(func(m Mirror) Mirror { return WithConnection(m, ConnectionReconnecting) })
			if err := sleep(ctx, c.cfg.Retry.delay(failures)); err != nil {
				return nil
			}
		}

		synced, err := c.attempt(ctx, failures)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrRemoved) || errors.Is(err, ErrJoinRefused) {
			c.update(func(m Mirror) Mirror { return WithConnection(m, ConnectionOffline) })
			return err
		}
		lastErr = err
		if synced {
			c.logger.Warn().Err(err).Msg("connection lost, resyncing")
			failures = 1
			continue
		}
		failures++
	}
}

// attempt dials once and, on success, runs a session over the connection.
func (c *Client) attempt(ctx context.Context, failures int) (synced bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.endpoint, nil)
	if err != nil {
		ev := c.logger.Debug().Err(err).Int("failures", failures)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("dial failed")
		return false, err
	}
	return c.session(ctx, conn)
}

// session joins over conn and applies events until the connection fails.
// synced reports whether a snapshot arrived on it.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) (synced bool, err error) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	join := dtos.Intent{
		Type: dtos.IntentJoin,
		Payload: dtos.IntentPayload{
			DisplayName: c.cfg.DisplayName,
			AvatarURL:   c.cfg.AvatarURL,
		},
	}
	if err := c.write(conn, join); err != nil {
		return false, fmt.Errorf("send join: %w", err)
	}

	for {
		var env dtos.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return synced, err
		}
		ev, err := dtos.DecodeEvent(env)
		if err != nil {
			c.logger.Debug().Err(err).Str("type", env.Type).Msg("skipping unknown event")
			continue
		}
		if _, ok := ev.(dtos.SnapshotEvent); ok {
			synced = true
		}

		var before Mirror
		m := c.update(func(m Mirror) Mirror {
			before = m
			return Reduce(m, ev)
		})
		c.syncMedia(ctx, m, before.selfCanSpeak() != m.selfCanSpeak())
		if m.Removed {
			return synced, ErrRemoved
		}
		if m.Refused != "" {
			return synced, fmt.Errorf("%w: %s", ErrJoinRefused, m.Refused)
		}
	}
}

// Send forwards an intent. Anything other than ping or leave is refused
// until the current connection has applied its snapshot.
func (c *Client) Send(intent dtos.Intent) error {
	c.mu.Lock()
	conn, status := c.conn, c.mirror.Connection
	c.mu.Unlock()

	if conn == nil {
		return ErrNotSynced
	}
	if intent.Type != dtos.IntentPing && intent.Type != dtos.IntentLeave && status != ConnectionSynced {
		return ErrNotSynced
	}
	return c.write(conn, intent)
}

func (c *Client) RaiseHand() error {
	return c.Send(dtos.Intent{Type: dtos.IntentRaiseHand})
}

func (c *Client) LowerHand() error {
	return c.Send(dtos.Intent{Type: dtos.IntentLowerHand})
}

// Moderate sends a targeted intent such as approve_speaker or ban_user.
func (c *Client) Moderate(kind dtos.IntentType, target uuid.UUID, reason string) error {
	if !kind.Targeted() {
		return fmt.Errorf("%w: %s is not a moderation intent", dtos.ErrInvalidIntent, kind)
	}
	return c.Send(dtos.Intent{
		Type:    kind,
		Payload: dtos.IntentPayload{Target: &target, Reason: reason},
	})
}

// AcknowledgeMute clears the local user's mute flag once the microphone is off.
func (c *Client) AcknowledgeMute() {
	c.update(func(m Mirror) Mirror { return ClearMute(m, m.Self) })
}

// Start shows the session live immediately and reconciles on the reply.
func (c *Client) Start() error {
	return c.transition(dtos.IntentStart, models.WorkshopStatusLive)
}

func (c *Client) End() error {
	return c.transition(dtos.IntentEnd, models.WorkshopStatusEnded)
}

func (c *Client) transition(kind dtos.IntentType, next models.WorkshopStatus) error {
	c.update(func(m Mirror) Mirror { return BeginTransition(m, next) })
	if err := c.Send(dtos.Intent{Type: kind}); err != nil {
		c.update(func(m Mirror) Mirror {
			if m.Pending == next {
				return BeginTransition(m, "")
			}
			return m
		})
		return err
	}
	return nil
}

func (c *Client) write(conn *websocket.Conn, intent dtos.Intent) error {
	env, err := dtos.EncodeIntent(intent)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(env)
}

// update swaps the mirror under the lock and notifies outside it. Stale
// notifications are dropped so observers never see the view go backwards.
func (c *Client) update(fn func(Mirror) Mirror) Mirror {
	c.mu.Lock()
	m := fn(c.mirror)
	c.mirror = m
	c.version++
	v := c.version
	c.mu.Unlock()

	if c.onChange != nil {
		c.notifyMu.Lock()
		if v > c.notified {
			c.notified = v
			c.onChange(m.clone())
		}
		c.notifyMu.Unlock()
	}
	return m
}

// syncMedia runs the refresher while the confirmed status is live. A change
// in the local user's speaking rights fetches a credential carrying them.
func (c *Client) syncMedia(ctx context.Context, m Mirror, speakingChanged bool) {
	if c.refresher == nil {
		return
	}
	if m.Status == models.WorkshopStatusLive && !m.Removed {
		if speakingChanged {
			c.refresher.Stop()
		}
		c.refresher.Start(ctx, m.SessionID)
		return
	}
	c.stopMedia()
}

func (c *Client) stopMedia() {
	if c.refresher == nil {
		return
	}
	c.refresher.Stop()
	c.mu.Lock()
	c.credential = nil
	idle := c.mirror.Media == MediaIdle
	c.mu.Unlock()
	if !idle {
		c.update(func(m Mirror) Mirror { return WithMedia(m, MediaIdle) })
	}
}

func (c *Client) setMedia(state MediaState, cred *Credential) {
	if cred != nil {
		c.mu.Lock()
		held := *cred
		c.credential = &held
		c.mu.Unlock()
	}
	c.update(func(m Mirror) Mirror { return WithMedia(m, state) })
}
