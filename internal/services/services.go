package services

import (
	"time"

	"cashbox_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

// Settings carries the configuration the services need beyond their dependencies.
type Settings struct {
	JWTSecret         string
	TokenTTL          time.Duration
	ShiftEndPolicy    ShiftEndPolicy
	DefaultHourlyRate decimal.Decimal
}

// Services bundles every service over one set of repositories.
type Services struct {
	Auth           AuthService
	Shifts         ShiftService
	Cashbox        CashboxService
	Reconciliation ReconciliationService
	Liquidation    LiquidationService
}

// New wires the repositories into the services.
func New(deps Dependencies, settings Settings) *Services {
	employees := repositories.NewEmployeeRepository()
	shifts := repositories.NewShiftRepository()
	sessions := repositories.NewCashboxRepository()
	movements := repositories.NewMovementRepository()
	audits := repositories.NewAuditRepository()
	liquidations := repositories.NewLiquidationRepository()

	return &Services{
		Auth:           NewAuthService(employees, deps, settings.JWTSecret, settings.TokenTTL),
		Shifts:         NewShiftService(employees, shifts, sessions, movements, deps, settings.ShiftEndPolicy, settings.DefaultHourlyRate),
		Cashbox:        NewCashboxService(employees, shifts, sessions, movements, deps),
		Reconciliation: NewReconciliationService(sessions, movements, audits, deps),
		Liquidation:    NewLiquidationService(shifts, liquidations, deps),
	}
}
