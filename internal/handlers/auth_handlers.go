package handlers

import (
	"net/http"

	"cashbox_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// Login handles employee login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "login")
		return
	}

	authResp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "login", true)
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentEmployee retrieves the profile of the authenticated employee.
func (h *AuthHandler) GetCurrentEmployee(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	employee, err := h.authService.GetProfile(c.Request.Context(), actor.EmployeeID)
	if err != nil {
		respondServiceError(c, err, "retrieve employee profile", true)
		return
	}
	c.JSON(http.StatusOK, employee)
}
