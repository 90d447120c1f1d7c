package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee roles as issued by the identity service.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// Employee is the read model of an identity-service employee.
type Employee struct {
	ID             int64            `json:"id" db:"id"`
	OrganizationID int64            `json:"organization_id" db:"organization_id"`
	FullName       string           `json:"full_name" db:"full_name"`
	Username       string           `json:"username" db:"username"`
	PasswordHash   string           `json:"-" db:"password_hash"` // never serialized
	Role           string           `json:"role" db:"role"`
	HourlyRate     *decimal.Decimal `json:"hourly_rate,omitempty" db:"hourly_rate"` // nil means the organization default applies
	IsActive       bool             `json:"is_active" db:"is_active"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
