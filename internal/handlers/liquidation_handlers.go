package handlers

import (
	"net/http"

	"cashbox_backend/internal/models"
	"cashbox_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// LiquidationHandler serves payroll liquidation endpoints.
type LiquidationHandler struct {
	liquidationService services.LiquidationService
}

// NewLiquidationHandler creates a new LiquidationHandler.
func NewLiquidationHandler(ls services.LiquidationService) *LiquidationHandler {
	return &LiquidationHandler{liquidationService: ls}
}

// RunLiquidation liquidates the caller's organization on demand. Failed employee
// groups are reported in the body; the run itself still answers 200.
func (h *LiquidationHandler) RunLiquidation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	run, err := h.liquidationService.RunLiquidation(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "run liquidation", true)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetLiquidations lists liquidations, optionally filtered by status.
func (h *LiquidationHandler) GetLiquidations(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var status *models.LiquidationStatus
	if v := c.Query("status"); v != "" {
		s := models.LiquidationStatus(v)
		status = &s
	}
	liquidations, err := h.liquidationService.ListLiquidations(c.Request.Context(), actor.OrganizationID, status)
	if err != nil {
		respondServiceError(c, err, "list liquidations", true)
		return
	}
	c.JSON(http.StatusOK, liquidations)
}

// GetLiquidationByID returns one liquidation with its shift ids.
func (h *LiquidationHandler) GetLiquidationByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	liquidation, err := h.liquidationService.GetLiquidation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "retrieve liquidation", true)
		return
	}
	c.JSON(http.StatusOK, liquidation)
}

// MarkPaid confirms a liquidation was paid out.
func (h *LiquidationHandler) MarkPaid(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	liquidation, err := h.liquidationService.MarkLiquidationPaid(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "mark liquidation paid", true)
		return
	}
	c.JSON(http.StatusOK, liquidation)
}
