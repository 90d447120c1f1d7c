package middleware

import (
	"net/http"
	"strings"

	"cashbox_backend/internal/authz"
	"cashbox_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	EmployeeIDKey     = "employeeID"
	OrganizationIDKey = "organizationID"
	UsernameKey       = "username"
	RoleKey           = "userRole"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. The authenticated
// employee is also attached to the request context as the authz actor.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", ""))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid authorization header format. Use Bearer <token>", ""))
			return
		}

		claims, err := utils.ValidateToken(jwtSecret, parts[1])
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}

		c.Set(EmployeeIDKey, claims.EmployeeID)
		c.Set(OrganizationIDKey, claims.OrganizationID)
		c.Set(UsernameKey, claims.Username)
		c.Set(RoleKey, claims.Role)

		ctx := authz.WithActor(c.Request.Context(), authz.Actor{
			EmployeeID:     claims.EmployeeID,
			OrganizationID: claims.OrganizationID,
			Role:           claims.Role,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RoleAuthMiddleware creates a Gin middleware for role-based authorization.
// It checks if the user role (from JWT claims) is one of the allowed roles.
// Resource-level checks still happen in the services.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString(RoleKey)
		if roleStr == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "User role not found in token claims", ""))
			return
		}

		for _, r := range allowedRoles {
			if strings.EqualFold(roleStr, r) {
				c.Next()
				return
			}
		}

		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You do not have permission to access this resource. Required roles: "+strings.Join(allowedRoles, ", "), ""))
	}
}
