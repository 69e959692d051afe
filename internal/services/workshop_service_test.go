package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/media"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/notifications"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
	"github.com/rs/zerolog"
)

type stubStore struct {
	workshops map[uuid.UUID]*models.Workshop
	rsvps     map[uuid.UUID][]uuid.UUID
	banned    map[uuid.UUID]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		workshops: make(map[uuid.UUID]*models.Workshop),
		rsvps:     make(map[uuid.UUID][]uuid.UUID),
		banned:    make(map[uuid.UUID]bool),
	}
}

func (s *stubStore) CreateWorkshop(ctx context.Context, w *models.Workshop) error {
	s.workshops[w.ID] = w
	return nil
}

func (s *stubStore) GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	w, ok := s.workshops[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return w, nil
}

func (s *stubStore) AddRSVP(ctx context.Context, workshopID, userID uuid.UUID) error {
	s.rsvps[workshopID] = append(s.rsvps[workshopID], userID)
	return nil
}

func (s *stubStore) RemoveRSVP(ctx context.Context, workshopID, userID uuid.UUID) error {
	return nil
}

func (s *stubStore) IsBanned(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	return s.banned[userID], nil
}

func (s *stubStore) ListRSVPedAttendees(ctx context.Context, workshopID uuid.UUID) ([]uuid.UUID, error) {
	return s.rsvps[workshopID], nil
}

type stubCoordinators struct {
	transitioned bool
	cancelErr    error
	grant        workshop.MediaGrant
	grantErr     error
	live         bool
}

func (c *stubCoordinators) Cancel(ctx context.Context, id uuid.UUID, actor workshop.Actor, reason string) (bool, error) {
	return c.transitioned, c.cancelErr
}

func (c *stubCoordinators) AuthorizeMedia(ctx context.Context, id, userID uuid.UUID) (workshop.MediaGrant, error) {
	return c.grant, c.grantErr
}

func (c *stubCoordinators) LiveView(ctx context.Context, id uuid.UUID) (models.WorkshopStatus, int, bool, error) {
	if !c.live {
		return "", 0, false, nil
	}
	return models.WorkshopStatusLobby, 3, true, nil
}

func newTestService(t *testing.T, store *stubStore, coords *stubCoordinators) (*WorkshopService, *notifications.MemorySink) {
	t.Helper()
	gateway, err := media.NewGateway(media.Config{URL: "wss://media.test", APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	sink := notifications.NewMemorySink(zerolog.Nop())
	return NewWorkshopService(store, coords, gateway, sink, zerolog.Nop()), sink
}

func TestCreate_RejectsPastStart(t *testing.T) {
	svc, _ := newTestService(t, newStubStore(), &stubCoordinators{})
	_, err := svc.Create(context.Background(), uuid.New(), dtos.CreateWorkshopRequest{
		Title:          "late",
		ScheduledStart: time.Now().Add(-time.Minute),
	})
	if !errors.Is(err, ErrStartInPast) {
		t.Errorf("expected ErrStartInPast, got %v", err)
	}
}

func TestCreate_DerivesRoomFromID(t *testing.T) {
	store := newStubStore()
	svc, _ := newTestService(t, store, &stubCoordinators{})
	host := uuid.New()

	w, err := svc.Create(context.Background(), host, dtos.CreateWorkshopRequest{
		Title:          "Morning flow",
		ScheduledStart: time.Now().Add(time.Hour),
		Capacity:       20,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.RoomID != media.RoomIDFor(w.ID) {
		t.Errorf("room id %q is not derived from %s", w.RoomID, w.ID)
	}
	if w.Status != models.WorkshopStatusScheduled || w.HostID != host {
		t.Errorf("unexpected workshop %+v", w)
	}
	if _, ok := store.workshops[w.ID]; !ok {
		t.Error("workshop was not stored")
	}
}

func TestGet_MergesLiveView(t *testing.T) {
	store := newStubStore()
	w := &models.Workshop{ID: uuid.New(), Status: models.WorkshopStatusScheduled}
	store.workshops[w.ID] = w

	svc, _ := newTestService(t, store, &stubCoordinators{})
	resp, err := svc.Get(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.LiveStatus != models.WorkshopStatusScheduled || resp.ParticipantCount != 0 {
		t.Errorf("idle workshop should report its stored status, got %+v", resp)
	}

	svc, _ = newTestService(t, store, &stubCoordinators{live: true})
	resp, _ = svc.Get(context.Background(), w.ID)
	if resp.Status != models.WorkshopStatusScheduled || resp.LiveStatus != models.WorkshopStatusLobby || resp.ParticipantCount != 3 {
		t.Errorf("live view not merged: %+v", resp)
	}
}

func TestRSVP(t *testing.T) {
	store := newStubStore()
	open := &models.Workshop{ID: uuid.New(), Status: models.WorkshopStatusScheduled}
	live := &models.Workshop{ID: uuid.New(), Status: models.WorkshopStatusLive}
	store.workshops[open.ID] = open
	store.workshops[live.ID] = live
	bannedUser := uuid.New()
	store.banned[bannedUser] = true

	svc, _ := newTestService(t, store, &stubCoordinators{})
	ctx := context.Background()

	if err := svc.RSVP(ctx, open.ID, uuid.New()); err != nil {
		t.Errorf("rsvp: %v", err)
	}
	if err := svc.RSVP(ctx, live.ID, uuid.New()); !errors.Is(err, ErrRSVPClosed) {
		t.Errorf("expected ErrRSVPClosed, got %v", err)
	}
	if err := svc.RSVP(ctx, open.ID, bannedUser); !errors.Is(err, ErrBanned) {
		t.Errorf("expected ErrBanned, got %v", err)
	}
	if err := svc.RSVP(ctx, uuid.New(), uuid.New()); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if got := len(store.rsvps[open.ID]); got != 1 {
		t.Errorf("expected 1 rsvp, got %d", got)
	}
}

func TestCancel_NotifiesOnlyOnTransition(t *testing.T) {
	store := newStubStore()
	w := &models.Workshop{ID: uuid.New(), Title: "Yoga", Status: models.WorkshopStatusScheduled}
	store.workshops[w.ID] = w
	a, b := uuid.New(), uuid.New()
	store.rsvps[w.ID] = []uuid.UUID{a, b}
	actor := workshop.Actor{UserID: uuid.New(), IsAdmin: true}

	coords := &stubCoordinators{transitioned: false}
	svc, sink := newTestService(t, store, coords)
	if err := svc.Cancel(context.Background(), w.ID, actor, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n := len(sink.Sent()); n != 0 {
		t.Errorf("no-op cancel sent %d notices", n)
	}

	coords.transitioned = true
	svc.Cancel(context.Background(), w.ID, actor, "")
	svc.Cancel(context.Background(), w.ID, actor, "")
	sent := sink.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected one notice per attendee, got %d", len(sent))
	}
	for _, n := range sent {
		if n.Kind != notifications.KindCancelled || n.DedupKey != notifications.CancellationKey(w.ID) {
			t.Errorf("unexpected notice %+v", n)
		}
	}
}

func TestCancel_PropagatesRejection(t *testing.T) {
	rej := &workshop.Rejection{Class: workshop.ErrPermissionDenied, Message: "host or admin only"}
	svc, sink := newTestService(t, newStubStore(), &stubCoordinators{cancelErr: rej})
	err := svc.Cancel(context.Background(), uuid.New(), workshop.Actor{UserID: uuid.New()}, "")
	if !errors.Is(err, workshop.ErrPermissionDenied) {
		t.Errorf("expected permission_denied, got %v", err)
	}
	if len(sink.Sent()) != 0 {
		t.Error("a rejected cancel must not notify")
	}
}

func TestCredential_RoleMapping(t *testing.T) {
	session, user := uuid.New(), uuid.New()
	tests := []struct {
		name       string
		grant      workshop.MediaGrant
		canPublish bool
	}{
		{"host", workshop.MediaGrant{IsHost: true, CanPublish: true}, true},
		{"cohost", workshop.MediaGrant{IsCoHost: true, CanPublish: true}, true},
		{"speaker", workshop.MediaGrant{CanPublish: true}, true},
		{"listener", workshop.MediaGrant{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant := tt.grant
			grant.SessionID, grant.UserID, grant.RoomID = session, user, "ws-room"
			svc, _ := newTestService(t, newStubStore(), &stubCoordinators{grant: grant})

			resp, err := svc.Credential(context.Background(), session, user)
			if err != nil {
				t.Fatalf("credential: %v", err)
			}
			if resp.CanPublish != tt.canPublish || resp.RoomID != "ws-room" || resp.Credential == "" {
				t.Errorf("unexpected credential %+v", resp)
			}
		})
	}
}

func TestCredential_RequiresAdmission(t *testing.T) {
	rej := &workshop.Rejection{Class: workshop.ErrNotFound, Message: "not in session"}
	svc, _ := newTestService(t, newStubStore(), &stubCoordinators{grantErr: rej})
	if _, err := svc.Credential(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, workshop.ErrNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
