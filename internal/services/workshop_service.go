package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/media"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/notifications"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
	"github.com/rs/zerolog"
)

var (
	ErrStartInPast = errors.New("scheduled start must be in the future")
	ErrRSVPClosed  = errors.New("workshop is no longer accepting rsvps")
	ErrBanned      = errors.New("you have been removed from this workshop")
)

// WorkshopStore is the persistence the REST surface needs.
type WorkshopStore interface {
	CreateWorkshop(ctx context.Context, w *models.Workshop) error
	GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
	AddRSVP(ctx context.Context, workshopID, userID uuid.UUID) error
	RemoveRSVP(ctx context.Context, workshopID, userID uuid.UUID) error
	IsBanned(ctx context.Context, workshopID, userID uuid.UUID) (bool, error)
	ListRSVPedAttendees(ctx context.Context, workshopID uuid.UUID) ([]uuid.UUID, error)
}

// Coordinators is the slice of the coordinator registry used outside a socket.
type Coordinators interface {
	Cancel(ctx context.Context, sessionID uuid.UUID, actor workshop.Actor, reason string) (bool, error)
	AuthorizeMedia(ctx context.Context, sessionID, userID uuid.UUID) (workshop.MediaGrant, error)
	LiveView(ctx context.Context, sessionID uuid.UUID) (models.WorkshopStatus, int, bool, error)
}

type CredentialIssuer interface {
	IssueCredential(sessionID, userID uuid.UUID, roomID string, role media.Role) (media.Credential, error)
}

type WorkshopService struct {
	store        WorkshopStore
	coordinators Coordinators
	gateway      CredentialIssuer
	notifier     notifications.Notifier
	logger       zerolog.Logger
	now          func() time.Time
}

func NewWorkshopService(
	store WorkshopStore,
	coordinators Coordinators,
	gateway CredentialIssuer,
	notifier notifications.Notifier,
	logger zerolog.Logger,
) *WorkshopService {
	return &WorkshopService{
		store:        store,
		coordinators: coordinators,
		gateway:      gateway,
		notifier:     notifier,
		logger:       logger.With().Str("component", "workshop_service").Logger(),
		now:          time.Now,
	}
}

// Create schedules a workshop hosted by hostID.
func (s *WorkshopService) Create(ctx context.Context, hostID uuid.UUID, req dtos.CreateWorkshopRequest) (*models.Workshop, error) {
	if !req.ScheduledStart.After(s.now()) {
		return nil, ErrStartInPast
	}
	id := uuid.New()
	w := &models.Workshop{
		ID:              id,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		HostID:          hostID,
		ScheduledStart:  req.ScheduledStart.UTC(),
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
		IsPrivate:       req.IsPrivate,
		RoomID:          media.RoomIDFor(id),
		Status:          models.WorkshopStatusScheduled,
	}
	if err := s.store.CreateWorkshop(ctx, w); err != nil {
		return nil, fmt.Errorf("create workshop: %w", err)
	}
	s.logger.Info().
		Str("session_id", id.String()).
		Str("host_id", hostID.String()).
		Time("scheduled_start", w.ScheduledStart).
		Msg("workshop scheduled")
	return w, nil
}

// Get returns the stored record enriched with the coordinator's live view.
func (s *WorkshopService) Get(ctx context.Context, id uuid.UUID) (*dtos.WorkshopResponse, error) {
	w, err := s.store.GetWorkshop(ctx, id)
	if err != nil {
		return nil, err
	}
	status, participants, ok, err := s.coordinators.LiveView(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		status, participants = w.Status, 0
	}
	resp := dtos.NewWorkshopResponse(w, status, participants)
	return &resp, nil
}

func (s *WorkshopService) RSVP(ctx context.Context, id, userID uuid.UUID) error {
	w, err := s.store.GetWorkshop(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != models.WorkshopStatusScheduled {
		return ErrRSVPClosed
	}
	banned, err := s.store.IsBanned(ctx, id, userID)
	if err != nil {
		return err
	}
	if banned {
		return ErrBanned
	}
	return s.store.AddRSVP(ctx, id, userID)
}

func (s *WorkshopService) WithdrawRSVP(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.RemoveRSVP(ctx, id, userID)
}

// Cancel routes a host or admin cancellation through the coordinator and
// notifies RSVP'd attendees when this call performed the transition.
func (s *WorkshopService) Cancel(ctx context.Context, id uuid.UUID, actor workshop.Actor, reason string) error {
	transitioned, err := s.coordinators.Cancel(ctx, id, actor, reason)
	if err != nil || !transitioned {
		return err
	}
	s.NotifyCancelled(ctx, id)
	return nil
}

// NotifyCancelled fans out cancellation notices. Failures are logged only.
func (s *WorkshopService) NotifyCancelled(ctx context.Context, id uuid.UUID) {
	w, err := s.store.GetWorkshop(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to load cancelled workshop")
		return
	}
	attendees, err := s.store.ListRSVPedAttendees(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to list attendees")
		return
	}
	sent := notifications.Fanout(ctx, s.notifier, s.logger, attendees, func(recipient uuid.UUID) notifications.Notification {
		return notifications.CancellationNotice(recipient, id, w.Title)
	})
	s.logger.Info().Str("session_id", id.String()).Int("notified", sent).Msg("cancellation notices sent")
}

// Credential issues a media credential scoped to the caller's live role.
func (s *WorkshopService) Credential(ctx context.Context, id, userID uuid.UUID) (*dtos.CredentialResponse, error) {
	grant, err := s.coordinators.AuthorizeMedia(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	role := media.RoleListener
	switch {
	case grant.IsHost:
		role = media.RoleHost
	case grant.IsCoHost:
		role = media.RoleCoHost
	case grant.CanPublish:
		role = media.RoleSpeaker
	}
	cred, err := s.gateway.IssueCredential(grant.SessionID, grant.UserID, grant.RoomID, role)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	return &dtos.CredentialResponse{
		Credential: cred.Token,
		ExpiresAt:  cred.ExpiresAt,
		RoomID:     cred.RoomID,
		URL:        cred.URL,
		CanPublish: role.CanPublish(),
	}, nil
}
