package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/workshops/internal/handlers"
	"github.com/preetsinghmakkar/workshops/internal/middlewares"
	"github.com/rs/zerolog"
)

func RegisterProtectedEndpoints(
	router *gin.Engine,
	workshopHandler *handlers.WorkshopHandler,
	jwtSecret string,
	logger zerolog.Logger,
) {
	protected := router.Group("/api")
	protected.Use(middlewares.AuthMiddleware(jwtSecret, logger))

	protected.POST("/workshops", workshopHandler.Create)
	protected.GET("/workshops/:id", workshopHandler.Get)
	protected.POST("/workshops/:id/rsvp", workshopHandler.RSVP)
	protected.DELETE("/workshops/:id/rsvp", workshopHandler.WithdrawRSVP)
	protected.POST("/workshops/:id/cancel", workshopHandler.Cancel)
	protected.GET("/workshops/:id/credential", workshopHandler.Credential)

	admin := protected.Group("/admin")
	admin.Use(middlewares.AdminOnly())
	admin.POST("/workshops", workshopHandler.AdminCreate)
	admin.POST("/workshops/:id/cancel", workshopHandler.Cancel)
}
