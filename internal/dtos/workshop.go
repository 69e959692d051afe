package dtos

import (
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
)

// Create workshop request (host is the caller)
type CreateWorkshopRequest struct {
	Title           string    `json:"title" binding:"required,max=200"`
	Description     string    `json:"description" binding:"max=5000"`
	Category        string    `json:"category" binding:"max=80"`
	ScheduledStart  time.Time `json:"scheduled_start" binding:"required"`
	DurationMinutes *int      `json:"duration_minutes" binding:"omitempty,min=5,max=600"`
	Capacity        int       `json:"capacity" binding:"min=0,max=10000"`
	IsPrivate       bool      `json:"is_private"`
}

// Admin creates a workshop on a host's behalf
type AdminCreateWorkshopRequest struct {
	CreateWorkshopRequest
	HostID uuid.UUID `json:"host_id" binding:"required"`
}

// Cancel request (host or admin)
type CancelWorkshopRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// Workshop response
type WorkshopResponse struct {
	ID               uuid.UUID             `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Category         string                `json:"category"`
	HostID           uuid.UUID             `json:"host_id"`
	SeriesID         *uuid.UUID            `json:"series_id,omitempty"`
	ScheduledStart   time.Time             `json:"scheduled_start"`
	DurationMinutes  *int                  `json:"duration_minutes,omitempty"`
	Capacity         int                   `json:"capacity"`
	IsPrivate        bool                  `json:"is_private"`
	Status           models.WorkshopStatus `json:"status"`      // persisted status
	LiveStatus       models.WorkshopStatus `json:"live_status"` // includes "lobby"
	ParticipantCount int                   `json:"participant_count"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	EndedAt          *time.Time            `json:"ended_at,omitempty"`
	RecordingURL     *string               `json:"recording_url,omitempty"`
}

// Media credential for the realtime audio/video service
type CredentialResponse struct {
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
	RoomID     string    `json:"room_id"`
	URL        string    `json:"url"`
	CanPublish bool      `json:"can_publish"`
}

// NewWorkshopResponse shapes a stored workshop for the API.
func NewWorkshopResponse(w *models.Workshop, liveStatus models.WorkshopStatus, participants int) WorkshopResponse {
	if liveStatus == "" {
		liveStatus = w.Status
	}
	return WorkshopResponse{
		ID:               w.ID,
		Title:            w.Title,
		Description:      w.Description,
		Category:         w.Category,
		HostID:           w.HostID,
		SeriesID:         w.SeriesID,
		ScheduledStart:   w.ScheduledStart,
		DurationMinutes:  w.DurationMinutes,
		Capacity:         w.Capacity,
		IsPrivate:        w.IsPrivate,
		Status:           w.Status,
		LiveStatus:       liveStatus,
		ParticipantCount: participants,
		StartedAt:        w.StartedAt,
		EndedAt:          w.EndedAt,
		RecordingURL:     w.RecordingURL,
	}
}
