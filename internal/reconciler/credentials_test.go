package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/rs/zerolog"
)

var fastRetry = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  5 * time.Millisecond,
	MaxDelay:      20 * time.Millisecond,
	BackoffFactor: 2,
}

func TestRetryDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := cfg.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestWithRetry(t *testing.T) {
	boom := errors.New("boom")

	calls := 0
	err := withRetry(context.Background(), fastRetry, func(attempt int) error {
		calls++
		if attempt < 2 {
			return boom
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("recovering fn: err=%v calls=%d, want nil after 3", err, calls)
	}

	calls = 0
	err = withRetry(context.Background(), fastRetry, func(int) error {
		calls++
		return boom
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("err = %v, want ErrRetriesExhausted", err)
	}
	if calls != fastRetry.MaxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, fastRetry.MaxRetries+1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = withRetry(ctx, fastRetry, func(int) error { return boom })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRefreshAfter(t *testing.T) {
	issued := time.Date(2026, 10, 19, 17, 0, 0, 0, time.UTC)
	cred := Credential{IssuedAt: issued, ExpiresAt: issued.Add(10 * time.Minute)}
	if got := refreshAfter(cred); got != 8*time.Minute {
		t.Errorf("refreshAfter = %s, want 8m", got)
	}
	cred.ExpiresAt = issued.Add(-time.Second)
	if got := refreshAfter(cred); got != 0 {
		t.Errorf("expired credential refreshAfter = %s, want 0", got)
	}
}

type fakeSource struct {
	mu       sync.Mutex
	lifetime time.Duration
	err      error
	fetches  []time.Time
}

func (s *fakeSource) Fetch(ctx context.Context, sessionID uuid.UUID) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.fetches = append(s.fetches, now)
	if s.err != nil {
		return Credential{}, s.err
	}
	return Credential{Token: "tok", IssuedAt: now, ExpiresAt: now.Add(s.lifetime)}, nil
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetches)
}

type stateLog struct {
	mu     sync.Mutex
	states []MediaState
}

func (l *stateLog) record(state MediaState, _ *Credential) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
}

func (l *stateLog) last() MediaState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.states) == 0 {
		return ""
	}
	return l.states[len(l.states)-1]
}

func TestRefresher_RenewsBeforeExpiry(t *testing.T) {
	source := &fakeSource{lifetime: 200 * time.Millisecond}
	log := &stateLog{}
	r := NewRefresher(source, fastRetry, log.record, zerolog.Nop())

	r.Start(context.Background(), uuid.New())
	r.Start(context.Background(), uuid.New())

	deadline := time.Now().Add(3 * time.Second)
	for source.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d fetches", source.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	source.mu.Lock()
	defer source.mu.Unlock()
	for i := 1; i < len(source.fetches); i++ {
		gap := source.fetches[i].Sub(source.fetches[i-1])
		if gap < 150*time.Millisecond {
			t.Errorf("refresh %d came after %s, want about 80%% of the lifetime", i, gap)
		}
	}
	if log.states[0] != MediaRequesting || log.last() != MediaReady {
		t.Errorf("states = %v", log.states)
	}
	if r.Running() {
		t.Error("refresher still running after Stop")
	}
}

func TestRefresher_GivesUp(t *testing.T) {
	source := &fakeSource{err: errors.New("gateway down")}
	log := &stateLog{}
	r := NewRefresher(source, fastRetry, log.record, zerolog.Nop())

	r.Start(context.Background(), uuid.New())
	deadline := time.Now().Add(2 * time.Second)
	for log.last() != MediaUnavailable {
		if time.Now().After(deadline) {
			t.Fatalf("never gave up, states = %v", log.states)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := source.count(); got != fastRetry.MaxRetries+1 {
		t.Errorf("fetches = %d, want %d", got, fastRetry.MaxRetries+1)
	}

	// an exhausted refresher stays put until stopped
	r.Start(context.Background(), uuid.New())
	time.Sleep(30 * time.Millisecond)
	if got := source.count(); got != fastRetry.MaxRetries+1 {
		t.Errorf("restarted without Stop: %d fetches", got)
	}
	r.Stop()
}

func TestHTTPCredentialSource(t *testing.T) {
	sessionID := uuid.New()
	expires := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/workshops/"+sessionID.String()+"/credential" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(dtos.CredentialResponse{
			Credential: "media-token",
			ExpiresAt:  expires,
			RoomID:     "room-1",
			URL:        "wss://media.example",
			CanPublish: true,
		})
	}))
	defer srv.Close()

	cred, err := NewHTTPCredentialSource(srv.URL+"/", "good", nil).Fetch(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cred.Token != "media-token" || cred.RoomID != "room-1" || !cred.CanPublish || !cred.ExpiresAt.Equal(expires) {
		t.Errorf("credential = %+v", cred)
	}
	if cred.IssuedAt.IsZero() {
		t.Error("IssuedAt not stamped")
	}

	_, err = NewHTTPCredentialSource(srv.URL, "bad", nil).Fetch(context.Background(), sessionID)
	if !errors.Is(err, ErrCredentialRejected) {
		t.Errorf("err = %v, want ErrCredentialRejected", err)
	}
}
