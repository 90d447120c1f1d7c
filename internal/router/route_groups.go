package router

import (
	"cashbox_backend/internal/handlers"
	"cashbox_backend/internal/middleware"
	"cashbox_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupStatusRoutes sets up the terminal status routes.
func SetupStatusRoutes(authenticatedGroup *gin.RouterGroup, cashboxHandler *handlers.CashboxHandler) {
	authenticatedGroup.GET("/terminal/status", cashboxHandler.GetTerminalStatus)
	authenticatedGroup.GET("/employees/:id/status", cashboxHandler.GetEmployeeStatus)
}

// SetupShiftRoutes sets up the shift routes.
// Ownership checks happen in the services; every role may reach these.
func SetupShiftRoutes(authenticatedGroup *gin.RouterGroup, shiftHandler *handlers.ShiftHandler) {
	shiftRoutes := authenticatedGroup.Group("/shifts")
	{
		shiftRoutes.POST("", shiftHandler.StartShift)
		shiftRoutes.GET("", shiftHandler.GetShifts)
		shiftRoutes.GET("/:id", shiftHandler.GetShiftByID)
		shiftRoutes.POST("/:id/end", shiftHandler.EndShift)
	}
}

// SetupCashboxRoutes sets up the cash drawer session routes.
func SetupCashboxRoutes(authenticatedGroup *gin.RouterGroup, cashboxHandler *handlers.CashboxHandler) {
	sessionRoutes := authenticatedGroup.Group("/cashbox/sessions")
	{
		sessionRoutes.POST("", cashboxHandler.OpenSession)
		sessionRoutes.GET("/:id", cashboxHandler.GetSessionByID)
		sessionRoutes.GET("/:id/movements", cashboxHandler.GetMovements)
		sessionRoutes.POST("/:id/movements", cashboxHandler.RecordMovement)
		sessionRoutes.POST("/:id/close", cashboxHandler.CloseSession)
		sessionRoutes.GET("/:id/z-report", cashboxHandler.GetZReport)
	}

	// The live balance and audits are supervisor tools; cashiers count blind.
	supervised := sessionRoutes.Group("")
	supervised.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleManager))
	{
		supervised.GET("/:id/balance", cashboxHandler.GetBalance)
		supervised.POST("/:id/audits", cashboxHandler.PartialAudit)
		supervised.GET("/:id/audits", cashboxHandler.GetAudits)
	}
}

// SetupLiquidationRoutes sets up the payroll liquidation routes.
func SetupLiquidationRoutes(authenticatedGroup *gin.RouterGroup, liquidationHandler *handlers.LiquidationHandler) {
	liquidationRoutes := authenticatedGroup.Group("/liquidations")
	liquidationRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleManager))
	{
		liquidationRoutes.POST("/run", liquidationHandler.RunLiquidation)
		liquidationRoutes.GET("", liquidationHandler.GetLiquidations)
		liquidationRoutes.GET("/:id", liquidationHandler.GetLiquidationByID)
		liquidationRoutes.POST("/:id/pay", liquidationHandler.MarkPaid)
	}
}
