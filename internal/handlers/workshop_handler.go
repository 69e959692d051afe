package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/dtos"
	"github.com/preetsinghmakkar/workshops/internal/middlewares"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
	"github.com/preetsinghmakkar/workshops/internal/services"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
	"github.com/rs/zerolog"
)

// WorkshopService is implemented by services.WorkshopService.
type WorkshopService interface {
	Create(ctx context.Context, hostID uuid.UUID, req dtos.CreateWorkshopRequest) (*models.Workshop, error)
	Get(ctx context.Context, id uuid.UUID) (*dtos.WorkshopResponse, error)
	RSVP(ctx context.Context, id, userID uuid.UUID) error
	WithdrawRSVP(ctx context.Context, id, userID uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID, actor workshop.Actor, reason string) error
	Credential(ctx context.Context, id, userID uuid.UUID) (*dtos.CredentialResponse, error)
}

type WorkshopHandler struct {
	service WorkshopService
	logger  zerolog.Logger
}

func NewWorkshopHandler(service WorkshopService, logger zerolog.Logger) *WorkshopHandler {
	return &WorkshopHandler{
		service: service,
		logger:  logger.With().Str("component", "workshop_handler").Logger(),
	}
}

func (h *WorkshopHandler) Create(c *gin.Context) {
	userID, _, err := middlewares.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req dtos.CreateWorkshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.create(c, userID, req)
}

// AdminCreate schedules a workshop on a host's behalf.
func (h *WorkshopHandler) AdminCreate(c *gin.Context) {
	var req dtos.AdminCreateWorkshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.create(c, req.HostID, req.CreateWorkshopRequest)
}

func (h *WorkshopHandler) create(c *gin.Context, hostID uuid.UUID, req dtos.CreateWorkshopRequest) {
	w, err := h.service.Create(c.Request.Context(), hostID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dtos.NewWorkshopResponse(w, w.Status, 0))
}

func (h *WorkshopHandler) Get(c *gin.Context) {
	id, ok := workshopID(c)
	if !ok {
		return
	}
	resp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkshopHandler) RSVP(c *gin.Context) {
	id, ok := workshopID(c)
	if !ok {
		return
	}
	userID, _, err := middlewares.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	if err := h.service.RSVP(c.Request.Context(), id, userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WorkshopHandler) WithdrawRSVP(c *gin.Context) {
	id, ok := workshopID(c)
	if !ok {
		return
	}
	userID, _, err := middlewares.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	if err := h.service.WithdrawRSVP(c.Request.Context(), id, userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Cancel serves both the host route and the admin override; the admin flag
// comes from the token, never the body.
func (h *WorkshopHandler) Cancel(c *gin.Context) {
	id, ok := workshopID(c)
	if !ok {
		return
	}
	userID, isAdmin, err := middlewares.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req dtos.CancelWorkshopRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	actor := workshop.Actor{UserID: userID, IsAdmin: isAdmin}
	if err := h.service.Cancel(c.Request.Context(), id, actor, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	h.Get(c)
}

func (h *WorkshopHandler) Credential(c *gin.Context) {
	id, ok := workshopID(c)
	if !ok {
		return
	}
	userID, _, err := middlewares.CurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	resp, err := h.service.Credential(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func workshopID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workshop id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses.
func (h *WorkshopHandler) writeError(c *gin.Context, err error) {
	var rej *workshop.Rejection
	switch {
	case errors.As(err, &rej):
		c.JSON(rejectionStatus(rej), gin.H{"error": rej.Message, "code": rej.Code()})
	case errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workshop not found"})
	case errors.Is(err, services.ErrStartInPast):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRSVPClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func rejectionStatus(rej *workshop.Rejection) int {
	switch {
	case errors.Is(rej, workshop.ErrPermissionDenied), errors.Is(rej, workshop.ErrBanned):
		return http.StatusForbidden
	case errors.Is(rej, workshop.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(rej, workshop.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}
