package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type activeSessions interface {
	ActiveSessions() int
}

type HealthHandler struct {
	sessions activeSessions
}

func NewHealthHandler(sessions activeSessions) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": h.sessions.ActiveSessions(),
	})
}
