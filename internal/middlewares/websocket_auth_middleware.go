package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
	"github.com/preetsinghmakkar/workshops/internal/utils"
	"github.com/rs/zerolog"
)

const contextWebSocketAuth = "ws_auth"

// WebSocketAuthContext holds authenticated WebSocket connection data
type WebSocketAuthContext struct {
	UserID    uuid.UUID
	Username  string
	IsAdmin   bool
	SessionID uuid.UUID
}

// WorkshopFinder loads the session a socket wants to join.
type WorkshopFinder interface {
	GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
}

// WebSocketAuthMiddleware authenticates WebSocket connections before the upgrade.
// Browsers cannot set headers on a websocket handshake, so the token rides in the query.
func WebSocketAuthMiddleware(jwtSecret string, workshops WorkshopFinder, logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "ws_auth").Logger()
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		claims, err := utils.ParseAccessToken(token, jwtSecret)
		if err != nil {
			logger.Debug().Err(err).Msg("jwt validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		sessionID, err := uuid.Parse(c.Query("session_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "valid session_id required",
			})
			return
		}

		_, err = workshops.GetWorkshop(c.Request.Context(), sessionID)
		if errors.Is(err, repositories.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "workshop not found",
			})
			return
		}
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to load workshop")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
			return
		}

		c.Set(contextWebSocketAuth, &WebSocketAuthContext{
			UserID:    claims.UserID,
			Username:  claims.Username,
			IsAdmin:   claims.IsAdmin(),
			SessionID: sessionID,
		})

		logger.Debug().
			Str("user_id", claims.UserID.String()).
			Str("session_id", sessionID.String()).
			Msg("websocket authenticated")
		c.Next()
	}
}

// GetWebSocketAuth retrieves authentication context from request
func GetWebSocketAuth(c *gin.Context) (*WebSocketAuthContext, error) {
	val, ok := c.Get(contextWebSocketAuth)
	if !ok {
		return nil, errors.New("websocket authentication context not found")
	}

	auth, ok := val.(*WebSocketAuthContext)
	if !ok {
		return nil, errors.New("invalid websocket authentication context type")
	}

	return auth, nil
}
