package workshop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
	"github.com/rs/zerolog"
)

// fakeStore is an in-memory Store with compare-and-set status updates.
type fakeStore struct {
	mu        sync.Mutex
	workshops map[uuid.UUID]*models.Workshop
	bans      map[uuid.UUID]map[uuid.UUID]bool
	rsvps     map[uuid.UUID]map[uuid.UUID]bool
	updates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workshops: make(map[uuid.UUID]*models.Workshop),
		bans:      make(map[uuid.UUID]map[uuid.UUID]bool),
		rsvps:     make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (s *fakeStore) add(w *models.Workshop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workshops[w.ID] = w
}

// force moves the stored status as a concurrent writer would.
func (s *fakeStore) force(id uuid.UUID, status models.WorkshopStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workshops[id].Status = status
}

func (s *fakeStore) status(id uuid.UUID) models.WorkshopStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workshops[id].Status
}

func (s *fakeStore) GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workshops[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (s *fakeStore) UpdateWorkshopStatus(ctx context.Context, id uuid.UUID, expected, next models.WorkshopStatus, update models.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workshops[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if w.Status != expected {
		return repositories.ErrStatusConflict
	}
	w.Status = next
	if update.StartedAt != nil {
		w.StartedAt = update.StartedAt
	}
	if update.EndedAt != nil {
		w.EndedAt = update.EndedAt
	}
	if update.CancelReason != nil {
		w.CancelReason = update.CancelReason
	}
	if update.RecordingURL != nil {
		w.RecordingURL = update.RecordingURL
	}
	s.updates++
	return nil
}

func (s *fakeStore) RecordBan(ctx context.Context, ban models.WorkshopBan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bans[ban.WorkshopID] == nil {
		s.bans[ban.WorkshopID] = make(map[uuid.UUID]bool)
	}
	s.bans[ban.WorkshopID][ban.UserID] = true
	return nil
}

func (s *fakeStore) IsBanned(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bans[workshopID][userID], nil
}

func (s *fakeStore) HasRSVP(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rsvps[workshopID][userID], nil
}

type sentEvent struct {
	target uuid.UUID // session id for broadcasts, connection id for direct sends
	event  dtos.Event
}

// fakeTransport records rooms and every event it was asked to deliver.
type fakeTransport struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]map[uuid.UUID]bool
	broadcasts   []sentEvent
	direct       []sentEvent
	disconnected []uuid.UUID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (t *fakeTransport) JoinRoom(sessionID, connectionID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[sessionID] == nil {
		t.rooms[sessionID] = make(map[uuid.UUID]bool)
	}
	t.rooms[sessionID][connectionID] = true
	return nil
}

func (t *fakeTransport) LeaveRoom(sessionID, connectionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms[sessionID], connectionID)
}

func (t *fakeTransport) Broadcast(sessionID uuid.UUID, ev dtos.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts = append(t.broadcasts, sentEvent{target: sessionID, event: ev})
}

func (t *fakeTransport) SendToConnection(connectionID uuid.UUID, ev dtos.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.direct = append(t.direct, sentEvent{target: connectionID, event: ev})
	return nil
}

func (t *fakeTransport) Disconnect(connectionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected = append(t.disconnected, connectionID)
}

func (t *fakeTransport) roomSize(sessionID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms[sessionID])
}

// broadcastTypes lists broadcast event types in order.
func (t *fakeTransport) broadcastTypes() []dtos.EventType {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]dtos.EventType, 0, len(t.broadcasts))
	for _, b := range t.broadcasts {
		out = append(out, b.event.Type())
	}
	return out
}

func (t *fakeTransport) countBroadcasts(typ dtos.EventType) int {
	n := 0
	for _, got := range t.broadcastTypes() {
		if got == typ {
			n++
		}
	}
	return n
}

// lastDirect returns the last event sent to one connection.
func (t *fakeTransport) lastDirect(connectionID uuid.UUID) dtos.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.direct) - 1; i >= 0; i-- {
		if t.direct[i].target == connectionID {
			return t.direct[i].event
		}
	}
	return nil
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts = nil
	t.direct = nil
	t.disconnected = nil
}

var testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type harness struct {
	t         *testing.T
	registry  *Registry
	store     *fakeStore
	transport *fakeTransport
	session   *models.Workshop
	host      uuid.UUID
	conns     map[uuid.UUID]uuid.UUID // user id -> connection id
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newFakeStore()
	transport := newFakeTransport()
	host := uuid.New()
	session := &models.Workshop{
		ID:             uuid.New(),
		Title:          "Morning reflection",
		HostID:         host,
		ScheduledStart: testNow.Add(10 * time.Minute),
		RoomID:         "room-test",
		Status:         models.WorkshopStatusScheduled,
	}
	store.add(session)
	registry := NewRegistry(store, transport, zerolog.Nop(), RegistryConfig{
		MailboxSize: 8,
		Now:         func() time.Time { return testNow },
	})
	t.Cleanup(registry.Close)
	return &harness{
		t:         t,
		registry:  registry,
		store:     store,
		transport: transport,
		session:   session,
		host:      host,
		conns:     make(map[uuid.UUID]uuid.UUID),
	}
}

func (h *harness) join(userID uuid.UUID) uuid.UUID {
	h.t.Helper()
	conn := uuid.New()
	err := h.registry.Join(context.Background(), JoinRequest{
		SessionID:    h.session.ID,
		ConnectionID: conn,
		UserID:       userID,
		DisplayName:  "user-" + userID.String()[:4],
	})
	if err != nil {
		h.t.Fatalf("join %s: %v", userID, err)
	}
	h.conns[userID] = conn
	return conn
}

func (h *harness) actor(userID uuid.UUID) Actor {
	return Actor{UserID: userID, ConnectionID: h.conns[userID]}
}

func (h *harness) send(userID uuid.UUID, typ dtos.IntentType, target *uuid.UUID) error {
	return h.registry.Handle(context.Background(), h.session.ID, h.actor(userID), dtos.Intent{
		Type:    typ,
		Payload: dtos.IntentPayload{Target: target},
	})
}

// entry reads a roster entry through the coordinator's own goroutine.
func (h *harness) entry(userID uuid.UUID) (Entry, bool) {
	h.t.Helper()
	var out Entry
	var found bool
	err := h.registry.do(context.Background(), h.session.ID, func(ctx context.Context, c *Coordinator) error {
		if e := c.roster.Get(userID); e != nil {
			out, found = *e, true
		}
		return nil
	})
	if err != nil {
		h.t.Fatalf("read roster: %v", err)
	}
	return out, found
}

func (h *harness) hands() []uuid.UUID {
	h.t.Helper()
	var out []uuid.UUID
	err := h.registry.do(context.Background(), h.session.ID, func(ctx context.Context, c *Coordinator) error {
		out = c.roster.RaisedHands()
		return nil
	})
	if err != nil {
		h.t.Fatalf("read hands: %v", err)
	}
	return out
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
