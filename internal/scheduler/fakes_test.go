package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore backs the jobs and the coordinator registry in these tests.
type memStore struct {
	mu        sync.Mutex
	workshops map[uuid.UUID]*models.Workshop
	series    []*models.Series
	rsvps     map[uuid.UUID][]uuid.UUID

	rsvpErr     map[uuid.UUID]error
	afterList   func() // runs after ListOverdueScheduled has taken its snapshot
	afterStarts func() // runs after ListInstanceStarts has taken its snapshot
	createCalls int
}

func newMemStore() *memStore {
	return &memStore{
		workshops: make(map[uuid.UUID]*models.Workshop),
		rsvps:     make(map[uuid.UUID][]uuid.UUID),
		rsvpErr:   make(map[uuid.UUID]error),
	}
}

func (s *memStore) add(w *models.Workshop, attendees ...uuid.UUID) *models.Workshop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = models.WorkshopStatusScheduled
	}
	s.workshops[w.ID] = w
	s.rsvps[w.ID] = attendees
	return w
}

func (s *memStore) status(id uuid.UUID) models.WorkshopStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workshops[id].Status
}

func (s *memStore) filter(match func(w *models.Workshop) bool) []*models.Workshop {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Workshop
	for _, w := range s.workshops {
		if match(w) {
			copied := *w
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out
}

func (s *memStore) ListScheduledStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Workshop, error) {
	return s.filter(func(w *models.Workshop) bool {
		return w.Status == models.WorkshopStatusScheduled && !w.ScheduledStart.Before(from) && w.ScheduledStart.Before(to)
	}), nil
}

func (s *memStore) ListOverdueScheduled(ctx context.Context, cutoff time.Time) ([]*models.Workshop, error) {
	out := s.filter(func(w *models.Workshop) bool {
		return w.Status == models.WorkshopStatusScheduled && w.ScheduledStart.Before(cutoff)
	})
	if s.afterList != nil {
		s.afterList()
	}
	return out, nil
}

func (s *memStore) ListRSVPedAttendees(ctx context.Context, workshopID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rsvpErr[workshopID]; err != nil {
		return nil, err
	}
	return append([]uuid.UUID(nil), s.rsvps[workshopID]...), nil
}

func (s *memStore) GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workshops[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (s *memStore) UpdateWorkshopStatus(ctx context.Context, id uuid.UUID, expected, next models.WorkshopStatus, update models.StatusUpdate) error {
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
	return nil
}

func (s *memStore) RecordBan(ctx context.Context, ban models.WorkshopBan) error { return nil }

func (s *memStore) IsBanned(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *memStore) HasRSVP(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	return true, nil
}

func (s *memStore) ListActiveSeries(ctx context.Context) ([]*models.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Series(nil), s.series...), nil
}

func (s *memStore) FindLatestInstance(ctx context.Context, seriesID uuid.UUID) (*models.Workshop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Workshop
	for _, w := range s.workshops {
		if w.SeriesID == nil || *w.SeriesID != seriesID {
			continue
		}
		if latest == nil || w.ScheduledStart.After(latest.ScheduledStart) {
			latest = w
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *memStore) ListInstanceStarts(ctx context.Context, seriesID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	s.mu.Lock()
	var out []time.Time
	for _, w := range s.workshops {
		if w.SeriesID != nil && *w.SeriesID == seriesID && !w.ScheduledStart.Before(from) && w.ScheduledStart.Before(to) {
			out = append(out, w.ScheduledStart)
		}
	}
	s.mu.Unlock()
	if s.afterStarts != nil {
		s.afterStarts()
	}
	return out, nil
}

// CreateWorkshop enforces the (series_id, scheduled_start) uniqueness of the real schema.
func (s *memStore) CreateWorkshop(ctx context.Context, w *models.Workshop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if w.SeriesID != nil {
		for _, existing := range s.workshops {
			if existing.SeriesID != nil && *existing.SeriesID == *w.SeriesID && existing.ScheduledStart.Equal(w.ScheduledStart) {
				return repositories.ErrDuplicate
			}
		}
	}
	copied := *w
	s.workshops[w.ID] = &copied
	return nil
}

func (s *memStore) instances(seriesID uuid.UUID) []*models.Workshop {
	return s.filter(func(w *models.Workshop) bool {
		return w.SeriesID != nil && *w.SeriesID == seriesID
	})
}

// nopTransport satisfies workshop.Transport; the jobs never have sockets.
type nopTransport struct{}

func (nopTransport) JoinRoom(sessionID, connectionID uuid.UUID) error { return nil }
func (nopTransport) LeaveRoom(sessionID, connectionID uuid.UUID) {}
func (nopTransport) Broadcast(sessionID uuid.UUID, ev dtos.Event) {}
func (nopTransport) SendToConnection(connectionID uuid.UUID, ev dtos.Event) error { return nil }
func (nopTransport) Disconnect(connectionID uuid.UUID) {}
