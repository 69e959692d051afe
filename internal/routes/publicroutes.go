package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/workshops/internal/handlers"
	"github.com/preetsinghmakkar/workshops/internal/middlewares"
	"github.com/rs/zerolog"
)

func RegisterPublicEndpoints(
	router *gin.Engine,
	healthHandler *handlers.HealthHandler,
	webSocketHandler *handlers.WebSocketHandler,
	workshops middlewares.WorkshopFinder,
	jwtSecret string,
	logger zerolog.Logger,
) {
	public := router.Group("/api")

	public.GET("/health", healthHandler.Health)

	// Browsers cannot send headers on the upgrade, so the token comes in the query.
	wsAuth := middlewares.WebSocketAuthMiddleware(jwtSecret, workshops, logger)
	public.GET("/ws/workshop", wsAuth, webSocketHandler.HandleWebSocket)
}
