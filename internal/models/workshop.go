package models

import (
	"time"

	"github.com/google/uuid"
)

type WorkshopStatus string

const (
	WorkshopStatusScheduled WorkshopStatus = "scheduled"
	// Lobby is never persisted; the store keeps "scheduled" until the host starts.
	WorkshopStatusLobby     WorkshopStatus = "lobby"
	WorkshopStatusLive      WorkshopStatus = "live"
	WorkshopStatusEnded     WorkshopStatus = "ended"
	WorkshopStatusCancelled WorkshopStatus = "cancelled"
)

// transitions lists every forward move the lifecycle allows.
var transitions = map[WorkshopStatus][]WorkshopStatus{
	WorkshopStatusScheduled: {WorkshopStatusLobby, WorkshopStatusLive, WorkshopStatusCancelled},
	WorkshopStatusLobby:     {WorkshopStatusLive, WorkshopStatusCancelled},
	WorkshopStatusLive:      {WorkshopStatusEnded},
}

// CanTransition reports whether the lifecycle permits moving from one status to another.
func CanTransition(from, to WorkshopStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s WorkshopStatus) IsTerminal() bool {
	return s == WorkshopStatusEnded || s == WorkshopStatusCancelled
}

// IsPreStart is true while the host has not started the workshop yet.
func (s WorkshopStatus) IsPreStart() bool {
	return s == WorkshopStatusScheduled || s == WorkshopStatusLobby
}

func (s WorkshopStatus) Valid() bool {
	switch s {
	case WorkshopStatusScheduled, WorkshopStatusLobby, WorkshopStatusLive,
		WorkshopStatusEnded, WorkshopStatusCancelled:
		return true
	}
	return false
}

type Workshop struct {
	ID          uuid.UUID  `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Category    string     `db:"category"`
	HostID      uuid.UUID  `db:"host_id"`
	SeriesID    *uuid.UUID `db:"series_id"`

	ScheduledStart  time.Time `db:"scheduled_start"`
	DurationMinutes *int      `db:"duration_minutes"`

	Capacity  int    `db:"capacity"` // 0 means unlimited
	IsPrivate bool   `db:"is_private"`
	RoomID    string `db:"room_id"`

	Status       WorkshopStatus `db:"status"`
	StartedAt    *time.Time     `db:"started_at"`
	EndedAt      *time.Time     `db:"ended_at"`
	CancelReason *string        `db:"cancel_reason"`
	RecordingURL *string        `db:"recording_url"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StatusUpdate carries the columns written alongside a lifecycle transition.
type StatusUpdate struct {
	StartedAt    *time.Time
	EndedAt      *time.Time
	CancelReason *string
	RecordingURL *string
}

type WorkshopBan struct {
	WorkshopID uuid.UUID `db:"workshop_id"`
	UserID     uuid.UUID `db:"user_id"`
	BannedBy   uuid.UUID `db:"banned_by"`
	Reason     string    `db:"reason"`
	CreatedAt  time.Time `db:"created_at"`
}
