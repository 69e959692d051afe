package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/utils"
	"github.com/rs/zerolog"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// AuthMiddleware validates the bearer access token on REST routes.
func AuthMiddleware(jwtSecret string, logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "auth").Logger()
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := utils.ParseAccessToken(token, jwtSecret)
		if err != nil {
			logger.Debug().Err(err).Str("path", c.FullPath()).Msg("rejected access token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID.String())
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != utils.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity AuthMiddleware stored on the request.
func CurrentUser(c *gin.Context) (userID uuid.UUID, isAdmin bool, err error) {
	raw, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false, ErrNotAuthenticated
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, false, ErrNotAuthenticated
	}
	userID, err = uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false, ErrNotAuthenticated
	}
	return userID, c.GetString(ContextRole) == utils.RoleAdmin, nil
}
