package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"
	"cashbox_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse DTO
type AuthResponse struct {
	Employee    *models.Employee `json:"employee"`
	AccessToken string           `json:"access_token"`
	ExpiresIn   int64            `json:"expires_in"` // seconds
}

// --- AuthService Interface ---
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GetProfile(ctx context.Context, employeeID int64) (*models.Employee, error)
}

// --- authService Implementation ---
type authService struct {
	employees repositories.EmployeeRepository
	deps      Dependencies
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(employees repositories.EmployeeRepository, deps Dependencies, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		employees: employees,
		deps:      deps,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Login verifies the employee's password and issues an access token.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if utils.IsEmpty(req.Username) || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	username := strings.TrimSpace(req.Username)

	employee, err := withRetry(ctx, s.deps, "login", func() (*models.Employee, error) {
		e, err := s.employees.FindByUsername(ctx, s.deps.DB, username)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return e, storeError(err, "login attempt failed")
	})
	if err != nil {
		return nil, err
	}
	if !employee.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := utils.GenerateAccessToken(s.jwtSecret, s.tokenTTL,
		employee.ID, employee.OrganizationID, employee.Username, employee.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	employee.PasswordHash = ""
	return &AuthResponse{
		Employee:    employee,
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	}, nil
}

// GetProfile retrieves the authenticated employee.
func (s *authService) GetProfile(ctx context.Context, employeeID int64) (*models.Employee, error) {
	employee, err := withRetry(ctx, s.deps, "profile", func() (*models.Employee, error) {
		e, err := s.employees.FindByID(ctx, s.deps.DB, employeeID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return e, storeError(err, "failed to retrieve employee profile")
	})
	if err != nil {
		return nil, err
	}
	employee.PasswordHash = ""
	return employee, nil
}
