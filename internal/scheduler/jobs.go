package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
)

// Clock is the time source for every job.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Store is the read side of the session store the jobs need.
// repositories.WorkshopRepository satisfies it.
type Store interface {
	ListScheduledStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Workshop, error)
	ListOverdueScheduled(ctx context.Context, cutoff time.Time) ([]*models.Workshop, error)
	ListRSVPedAttendees(ctx context.Context, workshopID uuid.UUID) ([]uuid.UUID, error)
}

// InstanceStore materializes series instances.
type InstanceStore interface {
	FindLatestInstance(ctx context.Context, seriesID uuid.UUID) (*models.Workshop, error)
	ListInstanceStarts(ctx context.Context, seriesID uuid.UUID, from, to time.Time) ([]time.Time, error)
	CreateWorkshop(ctx context.Context, w *models.Workshop) error
}

type SeriesStore interface {
	ListActiveSeries(ctx context.Context) ([]*models.Series, error)
}

// Canceller is the coordinator registry's cancel entry point.
type Canceller interface {
	Cancel(ctx context.Context, sessionID uuid.UUID, actor workshop.Actor, reason string) (bool, error)
}

// Report summarizes one job run.
type Report struct {
	Job       string
	Processed int
	Sent      int
	Created   int
	Cancelled int
	Failed    int
}
