package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShiftStatus is the lifecycle state of a shift: OPEN -> CLOSED -> PAID.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
	ShiftPaid   ShiftStatus = "PAID"
)

// Valid reports whether s is a known shift status.
func (s ShiftStatus) Valid() bool {
	switch s {
	case ShiftOpen, ShiftClosed, ShiftPaid:
		return true
	}
	return false
}

// Shift represents an employee's tracked work period.
type Shift struct {
	ID             int64            `json:"id" db:"id"`
	EmployeeID     int64            `json:"employee_id" db:"employee_id"`
	OrganizationID int64            `json:"organization_id" db:"organization_id"`
	StartedAt      time.Time        `json:"started_at" db:"started_at"`
	EndedAt        *time.Time       `json:"ended_at,omitempty" db:"ended_at"`
	TotalHours     *decimal.Decimal `json:"total_hours,omitempty" db:"total_hours"`
	TotalPayment   *decimal.Decimal `json:"total_payment,omitempty" db:"total_payment"`
	Status         ShiftStatus      `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// ShiftFilter narrows shift listings. Nil fields are not applied.
type ShiftFilter struct {
	OrganizationID int64
	EmployeeID     *int64
	Status         *ShiftStatus
	Page           int
	PageSize       int
}

// ShiftPay is the outcome of closing a shift.
type ShiftPay struct {
	Hours   decimal.Decimal // rounded to 2 places for storage
	Payment decimal.Decimal // whole minor units
}

// ComputeShiftPay prices a worked interval. Payment is computed from the unrounded
// fractional hours and rounded half away from zero to whole minor units.
func ComputeShiftPay(startedAt, endedAt time.Time, hourlyRate decimal.Decimal) ShiftPay {
	worked := endedAt.Sub(startedAt)
	if worked < 0 {
		worked = 0
	}
	hours := decimal.NewFromInt(worked.Nanoseconds()).Div(decimal.NewFromInt(int64(time.Hour)))
	return ShiftPay{
		Hours:   hours.Round(2),
		Payment: hours.Mul(hourlyRate).Round(0),
	}
}
