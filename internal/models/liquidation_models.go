package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidationStatus is the payroll state of a liquidation.
type LiquidationStatus string

const (
	LiquidationPending LiquidationStatus = "pending"
	LiquidationPaid    LiquidationStatus = "paid"
)

// Liquidation is a payroll record aggregating CLOSED shifts of one employee.
type Liquidation struct {
	ID             int64             `json:"id" db:"id"`
	EmployeeID     int64             `json:"employee_id" db:"employee_id"`
	OrganizationID int64             `json:"organization_id" db:"organization_id"`
	PeriodStart    time.Time         `json:"period_start" db:"period_start"` // date only
	PeriodEnd      time.Time         `json:"period_end" db:"period_end"`     // date only
	TotalAmount    decimal.Decimal   `json:"total_amount" db:"total_amount"`
	ShiftCount     int               `json:"shift_count" db:"shift_count"`
	Status         LiquidationStatus `json:"status" db:"status"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	PaidAt         *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	ShiftIDs       []int64           `json:"shift_ids,omitempty"`
}

// NewLiquidation aggregates claimed shifts of a single employee into a pending liquidation.
// The period spans the dates of the earliest and latest shift start.
func NewLiquidation(employeeID, organizationID int64, shifts []Shift) Liquidation {
	l := Liquidation{
		EmployeeID:     employeeID,
		OrganizationID: organizationID,
		TotalAmount:    decimal.Zero,
		Status:         LiquidationPending,
		ShiftIDs:       make([]int64, 0, len(shifts)),
	}
	for i, s := range shifts {
		if s.TotalPayment != nil {
			l.TotalAmount = l.TotalAmount.Add(*s.TotalPayment)
		}
		if i == 0 || s.StartedAt.Before(l.PeriodStart) {
			l.PeriodStart = s.StartedAt
		}
		if i == 0 || s.StartedAt.After(l.PeriodEnd) {
			l.PeriodEnd = s.StartedAt
		}
		l.ShiftIDs = append(l.ShiftIDs, s.ID)
	}
	l.ShiftCount = len(l.ShiftIDs)
	l.PeriodStart = truncateToDate(l.PeriodStart)
	l.PeriodEnd = truncateToDate(l.PeriodEnd)
	return l
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// LiquidationFailure reports an employee group that could not be liquidated.
type LiquidationFailure struct {
	EmployeeID int64  `json:"employee_id"`
	Error      string `json:"error"`
}

// LiquidationRun summarizes one batch run for an organization.
type LiquidationRun struct {
	OrganizationID int64                `json:"organization_id"`
	Created        []Liquidation        `json:"created"`
	Failed         []LiquidationFailure `json:"failed"`
	Skipped        int                  `json:"skipped"` // groups whose shifts were claimed by a concurrent run
}
