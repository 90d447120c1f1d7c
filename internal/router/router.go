package router

import (
	"net/http"

	"cashbox_backend/internal/handlers"
	"cashbox_backend/internal/middleware"
	"cashbox_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Setup registers every route on the engine. metricsHandler may be nil to leave /metrics out.
func Setup(engine *gin.Engine, svc *services.Services, jwtSecret string, metricsHandler http.Handler) {
	authHandler := handlers.NewAuthHandler(svc.Auth)
	shiftHandler := handlers.NewShiftHandler(svc.Shifts)
	cashboxHandler := handlers.NewCashboxHandler(svc.Cashbox, svc.Reconciliation)
	liquidationHandler := handlers.NewLiquidationHandler(svc.Liquidation)

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}

	apiV1 := engine.Group("/api/v1")
	SetupPublicAuthRoutes(apiV1.Group("/auth"), authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(jwtSecret))
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupStatusRoutes(authenticated, cashboxHandler)
		SetupShiftRoutes(authenticated, shiftHandler)
		SetupCashboxRoutes(authenticated, cashboxHandler)
		SetupLiquidationRoutes(authenticated, liquidationHandler)
	}
}

// SetupPublicAuthRoutes sets up the routes reachable without a token.
func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.Login)
}

// SetupAuthenticatedAuthRoutes sets up the auth routes that need a token.
func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.GET("/me", authHandler.GetCurrentEmployee)
}
