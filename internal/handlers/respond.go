package handlers

import (
	"errors"
	"net/http"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/services"
	"cashbox_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps the service error taxonomy onto HTTP. retryable tells
// the client whether resending the same request is safe on a 503.
func respondServiceError(c *gin.Context, err error, operation string, retryable bool) {
	var apiErr *utils.APIError
	switch {
	case errors.Is(err, services.ErrValidation):
		apiErr = utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Input validation failed", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		apiErr = utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid username or password.", "")
	case errors.Is(err, services.ErrUnauthenticated):
		apiErr = utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "")
	case errors.Is(err, services.ErrForbidden):
		apiErr = utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You do not have permission to perform this action.", "")
	case errors.Is(err, services.ErrNotFound):
		apiErr = utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), "")
	case errors.Is(err, services.ErrConflict):
		apiErr = utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), "")
	case errors.Is(err, services.ErrTransient):
		apiErr = utils.NewAPIError(http.StatusServiceUnavailable, utils.ErrCodeUnavailable,
			"The service is temporarily unavailable. Please try again.", "").WithRetryable(retryable)
	default:
		utils.LogError(err, operation+": unexpected error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to "+operation+".", "Internal error"))
		return
	}
	if apiErr.StatusCode >= http.StatusInternalServerError {
		utils.LogError(err, operation)
	} else {
		utils.LogWarn(err, operation)
	}
	utils.RespondWithError(c, apiErr)
}

func respondBindError(c *gin.Context, err error, operation string) {
	utils.LogWarn(err, operation+": failed to bind JSON")
	utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
}

// idParam parses a positive path identifier, responding 400 when it is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := utils.StrToPositiveID(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid "+name+" format", err.Error()))
		return 0, false
	}
	return id, true
}

// currentActor returns the authenticated caller attached by AuthMiddleware.
func currentActor(c *gin.Context) (authz.Actor, bool) {
	actor, ok := authz.ActorFrom(c.Request.Context())
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "Missing actor in context"))
	}
	return actor, ok
}
