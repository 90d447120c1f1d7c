package handlers

import (
	"net/http"

	"cashbox_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// CashboxHandler serves cash-drawer sessions, their movements and reconciliation.
type CashboxHandler struct {
	cashboxService        services.CashboxService
	reconciliationService services.ReconciliationService
}

// NewCashboxHandler creates a new CashboxHandler.
func NewCashboxHandler(cs services.CashboxService, rs services.ReconciliationService) *CashboxHandler {
	return &CashboxHandler{cashboxService: cs, reconciliationService: rs}
}

// GetTerminalStatus reports the caller's active shift and open drawer.
func (h *CashboxHandler) GetTerminalStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	h.respondStatus(c, actor.EmployeeID)
}

// GetEmployeeStatus reports another employee's terminal status.
func (h *CashboxHandler) GetEmployeeStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	h.respondStatus(c, id)
}

func (h *CashboxHandler) respondStatus(c *gin.Context, employeeID int64) {
	status, err := h.cashboxService.GetStatus(c.Request.Context(), employeeID)
	if err != nil {
		respondServiceError(c, err, "retrieve terminal status", true)
		return
	}
	c.JSON(http.StatusOK, status)
}

// OpenSession opens the cash drawer of a shift with its opening float.
func (h *CashboxHandler) OpenSession(c *gin.Context) {
	var req services.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "open cash drawer")
		return
	}
	session, err := h.cashboxService.OpenSession(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "open cash drawer", false)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetSessionByID returns one session.
func (h *CashboxHandler) GetSessionByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	session, err := h.cashboxService.GetSession(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "retrieve cash drawer", true)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetBalance returns the live system balance. Managers only.
func (h *CashboxHandler) GetBalance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	balance, err := h.cashboxService.ComputeBalance(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "compute balance", true)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// RecordMovement appends a cash movement. Resending with the same request_id is safe.
func (h *CashboxHandler) RecordMovement(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.RecordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "record movement")
		return
	}
	movement, err := h.cashboxService.RecordMovement(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "record movement", req.RequestID != nil)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

// GetMovements lists a session's movements in order.
func (h *CashboxHandler) GetMovements(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	movements, err := h.cashboxService.ListMovements(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "list movements", true)
		return
	}
	c.JSON(http.StatusOK, movements)
}

// PartialAudit records a mid-session blind count.
func (h *CashboxHandler) PartialAudit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.CountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "audit cash drawer")
		return
	}
	result, err := h.reconciliationService.PartialAudit(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "audit cash drawer", false)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetAudits lists a session's audit checkpoints.
func (h *CashboxHandler) GetAudits(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	checkpoints, err := h.reconciliationService.ListCheckpoints(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "list audit checkpoints", true)
		return
	}
	c.JSON(http.StatusOK, checkpoints)
}

// CloseSession closes the drawer with the counted amount and returns the Z-report.
func (h *CashboxHandler) CloseSession(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.CountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "close cash drawer")
		return
	}
	report, err := h.reconciliationService.CloseSession(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "close cash drawer", false)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetZReport reprints the Z-report of a closed session.
func (h *CashboxHandler) GetZReport(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	report, err := h.reconciliationService.GetZReport(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "retrieve Z-report", true)
		return
	}
	c.JSON(http.StatusOK, report)
}
