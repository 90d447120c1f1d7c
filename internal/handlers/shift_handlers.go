package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"cashbox_backend/internal/models"
	"cashbox_backend/internal/services"
	"cashbox_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ShiftHandler serves shift lifecycle endpoints.
type ShiftHandler struct {
	shiftService services.ShiftService
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(ss services.ShiftService) *ShiftHandler {
	return &ShiftHandler{shiftService: ss}
}

// StartShift starts a shift for the caller, or for employee_id when a manager starts it.
func (h *ShiftHandler) StartShift(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.StartShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err, "start shift")
		return
	}
	if req.EmployeeID == 0 {
		req.EmployeeID = actor.EmployeeID
	}

	shift, err := h.shiftService.StartShift(c.Request.Context(), req.EmployeeID)
	if err != nil {
		respondServiceError(c, err, "start shift", false)
		return
	}
	c.JSON(http.StatusCreated, shift)
}

// EndShift closes an open shift and computes its pay.
func (h *ShiftHandler) EndShift(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := h.shiftService.EndShift(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "end shift", false)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetShiftByID returns one shift.
func (h *ShiftHandler) GetShiftByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	shift, err := h.shiftService.GetShift(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "retrieve shift", true)
		return
	}
	c.JSON(http.StatusOK, shift)
}

// GetShifts lists shifts of the caller's organization. Cashiers only see their own.
func (h *ShiftHandler) GetShifts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	filter := models.ShiftFilter{OrganizationID: actor.OrganizationID}
	if v := c.Query("employee_id"); v != "" {
		employeeID, err := utils.StrToPositiveID(v)
		if err != nil {
			utils.RespondValidationFailed(c, "invalid employee_id: "+err.Error())
			return
		}
		filter.EmployeeID = &employeeID
	} else if actor.Role == models.RoleCashier {
		filter.EmployeeID = &actor.EmployeeID
	}
	if v := c.Query("status"); v != "" {
		status := models.ShiftStatus(v)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := h.shiftService.ListShifts(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err, "list shifts", true)
		return
	}
	c.JSON(http.StatusOK, resp)
}
