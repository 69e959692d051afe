package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/rs/zerolog"
)

var ErrCredentialRejected = errors.New("credential request rejected")

// refreshFraction of a credential's lifetime passes before it is renewed.
const refreshFraction = 0.8

type Credential struct {
	Token      string
	RoomID     string
	URL        string
	CanPublish bool
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// CredentialSource fetches a media credential for the current user.
type CredentialSource interface {
	Fetch(ctx context.Context, sessionID uuid.UUID) (Credential, error)
}

// HTTPCredentialSource calls GET /api/workshops/:id/credential.
type HTTPCredentialSource struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

func NewHTTPCredentialSource(baseURL, accessToken string, client *http.Client) *HTTPCredentialSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPCredentialSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		client:      client,
	}
}

func (s *HTTPCredentialSource) Fetch(ctx context.Context, sessionID uuid.UUID) (Credential, error) {
	url := fmt.Sprintf("%s/api/workshops/%s/credential", s.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	issued := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("request credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("%w: status %d", ErrCredentialRejected, resp.StatusCode)
	}
	var body dtos.CredentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return Credential{
		Token:      body.Credential,
		RoomID:     body.RoomID,
		URL:        body.URL,
		CanPublish: body.CanPublish,
		IssuedAt:   issued,
		ExpiresAt:  body.ExpiresAt,
	}, nil
}

// refreshAfter is how long to wait before renewing cred.
func refreshAfter(cred Credential) time.Duration {
	lifetime := cred.ExpiresAt.Sub(cred.IssuedAt)
	if lifetime <= 0 {
		return 0
	}
	return time.Duration(float64(lifetime) * refreshFraction)
}

// Refresher keeps a media credential valid while a session is live. It runs
// on its own goroutine so a slow gateway never stalls event handling.
type Refresher struct {
	source   CredentialSource
	retry    RetryConfig
	onUpdate func(MediaState, *Credential)
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(source CredentialSource, retry RetryConfig, onUpdate func(MediaState, *Credential), logger zerolog.Logger) *Refresher {
	return &Refresher{
		source:   source,
		retry:    retry,
		onUpdate: onUpdate,
		logger:   logger.With().Str("component", "credentials").Logger(),
	}
}

// Start begins fetching credentials for sessionID. It is a no-op until Stop,
// including after the loop has given up.
func (r *Refresher) Start(ctx context.Context, sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go func() {
		defer close(done)
		r.loop(ctx, sessionID)
	}()
}

// Stop cancels any in-flight fetch and waits for the loop to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Start has been called without a matching Stop.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) loop(ctx context.Context, sessionID uuid.UUID) {
	r.onUpdate(MediaRequesting, nil)
	for {
		var cred Credential
		err := withRetry(ctx, r.retry, func(attempt int) error {
			var ferr error
			cred, ferr = r.source.Fetch(ctx, sessionID)
			if ferr != nil {
				r.logger.Debug().Err(ferr).Int("attempt", attempt).Msg("credential fetch failed")
			}
			return ferr
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("media unavailable")
			r.onUpdate(MediaUnavailable, nil)
			return
		}
		r.onUpdate(MediaReady, &cred)

		timer := time.NewTimer(refreshAfter(cred))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
