package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus is the state of a cashbox session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// MovementType classifies a cash movement.
type MovementType string

const (
	MovementOpening    MovementType = "OPENING"
	MovementSale       MovementType = "SALE"
	MovementRefund     MovementType = "REFUND"
	MovementDeposit    MovementType = "DEPOSIT"
	MovementWithdrawal MovementType = "WITHDRAWAL"
)

// Recordable reports whether t may be appended by a terminal. OPENING is only
// written when the session is opened.
func (t MovementType) Recordable() bool {
	switch t {
	case MovementSale, MovementRefund, MovementDeposit, MovementWithdrawal:
		return true
	}
	return false
}

// PaymentMethod is how a movement was settled.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
)

// Valid reports whether p is a known payment method.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// CashboxSession is a cash-drawer custody period nested inside a shift.
type CashboxSession struct {
	ID                   int64            `json:"id" db:"id"`
	ShiftID              int64            `json:"shift_id" db:"shift_id"`
	EmployeeID           int64            `json:"employee_id" db:"employee_id"`
	OrganizationID       int64            `json:"organization_id" db:"organization_id"`
	OpeningAmount        decimal.Decimal  `json:"opening_amount" db:"opening_amount"`
	Status               SessionStatus    `json:"status" db:"status"`
	OpenedAt             time.Time        `json:"opened_at" db:"opened_at"`
	ClosedAt             *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
	ClosingCountedAmount *decimal.Decimal `json:"closing_counted_amount,omitempty" db:"closing_counted_amount"`
	ClosingSystemAmount  *decimal.Decimal `json:"closing_system_amount,omitempty" db:"closing_system_amount"`
	ClosingDifference    *decimal.Decimal `json:"closing_difference,omitempty" db:"closing_difference"`
	ClosingNote          *string          `json:"closing_note,omitempty" db:"closing_note"`
	ForceClosed          bool             `json:"force_closed" db:"force_closed"`
}

// SessionClosing carries the closing fields written when a session is closed.
// Counted and Difference are nil when the session is force-closed without a count.
type SessionClosing struct {
	ClosedAt   time.Time
	Counted    *decimal.Decimal
	System     decimal.Decimal
	Difference *decimal.Decimal
	Note       *string
	Forced     bool
}

// CashMovement is a single append-only cash event.
type CashMovement struct {
	ID             int64           `json:"id" db:"id"`
	SessionID      int64           `json:"session_id" db:"session_id"`
	EmployeeID     int64           `json:"employee_id" db:"employee_id"`
	OrganizationID int64           `json:"organization_id" db:"organization_id"`
	MovementType   MovementType    `json:"movement_type" db:"movement_type"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod  *PaymentMethod  `json:"payment_method,omitempty" db:"payment_method"`
	Description    string          `json:"description" db:"description"`
	RequestID      uuid.UUID       `json:"request_id" db:"request_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Balance is the system-computed drawer balance of a session.
//
// Total = Opening + Sales + Incomes - Expenses. Refunds are reported but are not
// part of Total.
type Balance struct {
	Opening  decimal.Decimal `json:"opening"`
	Sales    decimal.Decimal `json:"sales"`
	Refunds  decimal.Decimal `json:"refunds"`
	Incomes  decimal.Decimal `json:"incomes"`  // deposits
	Expenses decimal.Decimal `json:"expenses"` // withdrawals
	Total    decimal.Decimal `json:"total"`
}

// Apply folds one movement into the balance.
func (b Balance) Apply(m CashMovement) Balance {
	switch m.MovementType {
	case MovementOpening:
		b.Opening = b.Opening.Add(m.Amount)
	case MovementSale:
		b.Sales = b.Sales.Add(m.Amount)
	case MovementRefund:
		b.Refunds = b.Refunds.Add(m.Amount)
	case MovementDeposit:
		b.Incomes = b.Incomes.Add(m.Amount)
	case MovementWithdrawal:
		b.Expenses = b.Expenses.Add(m.Amount)
	}
	b.Total = b.Opening.Add(b.Sales).Add(b.Incomes).Sub(b.Expenses)
	return b
}

// BalanceFromTotals builds a balance from per-type sums.
func BalanceFromTotals(totals map[MovementType]decimal.Decimal) Balance {
	b := Balance{
		Opening:  totals[MovementOpening],
		Sales:    totals[MovementSale],
		Refunds:  totals[MovementRefund],
		Incomes:  totals[MovementDeposit],
		Expenses: totals[MovementWithdrawal],
	}
	b.Total = b.Opening.Add(b.Sales).Add(b.Incomes).Sub(b.Expenses)
	return b
}

// TerminalStatus is what a terminal sees before allowing POS actions.
type TerminalStatus struct {
	EmployeeID     int64            `json:"employee_id"`
	HasActiveShift bool             `json:"has_active_shift"`
	ShiftID        *int64           `json:"shift_id,omitempty"`
	ShiftStartedAt *time.Time       `json:"shift_started_at,omitempty"`
	HasOpenSession bool             `json:"has_open_session"`
	SessionID      *int64           `json:"session_id,omitempty"`
	OpeningAmount  *decimal.Decimal `json:"opening_amount,omitempty"`
	OpenedAt       *time.Time       `json:"opened_at,omitempty"`
}

// AuditCheckpoint records a partial (mid-session) blind audit.
type AuditCheckpoint struct {
	ID             int64           `json:"id" db:"id"`
	SessionID      int64           `json:"session_id" db:"session_id"`
	OrganizationID int64           `json:"organization_id" db:"organization_id"`
	EmployeeID     int64           `json:"employee_id" db:"employee_id"` // auditor
	CountedAmount  decimal.Decimal `json:"counted_amount" db:"counted_amount"`
	SystemAmount   decimal.Decimal `json:"system_amount" db:"system_amount"`
	Difference     decimal.Decimal `json:"difference" db:"difference"`
	Note           string          `json:"note" db:"note"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Reconciliation outcome labels.
const (
	ReconciliationClean       = "clean"
	ReconciliationDiscrepancy = "discrepancy"
)

// ReconciliationStatus labels a counted-vs-system difference.
func ReconciliationStatus(difference decimal.Decimal) string {
	if difference.IsZero() {
		return ReconciliationClean
	}
	return ReconciliationDiscrepancy
}

// AuditResult is returned by a partial audit.
type AuditResult struct {
	Checkpoint    AuditCheckpoint `json:"checkpoint"`
	SystemAmount  decimal.Decimal `json:"system_amount"`
	CountedAmount decimal.Decimal `json:"counted_amount"`
	Difference    decimal.Decimal `json:"difference"`
	Status        string          `json:"status"`
}

// ZReport is the closing reconciliation summary of a session.
type ZReport struct {
	SessionID      int64            `json:"session_id"`
	ShiftID        int64            `json:"shift_id"`
	EmployeeID     int64            `json:"employee_id"`
	OrganizationID int64            `json:"organization_id"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       time.Time        `json:"closed_at"`
	Opening        decimal.Decimal  `json:"opening"`
	Sales          decimal.Decimal  `json:"sales"`
	Refunds        decimal.Decimal  `json:"refunds"`
	Incomes        decimal.Decimal  `json:"incomes"`
	Expenses       decimal.Decimal  `json:"expenses"`
	SystemAmount   decimal.Decimal  `json:"system_amount"`
	CountedAmount  *decimal.Decimal `json:"counted_amount,omitempty"` // nil for force-closed sessions
	Difference     *decimal.Decimal `json:"difference,omitempty"`
	Status         string           `json:"status"`
	ForceClosed    bool             `json:"force_closed"`
	Note           *string          `json:"note,omitempty"`
}

// BuildZReport assembles the Z-report of a closed session from its balance.
func BuildZReport(session CashboxSession, balance Balance) ZReport {
	report := ZReport{
		SessionID:      session.ID,
		ShiftID:        session.ShiftID,
		EmployeeID:     session.EmployeeID,
		OrganizationID: session.OrganizationID,
		OpenedAt:       session.OpenedAt,
		Opening:        balance.Opening,
		Sales:          balance.Sales,
		Refunds:        balance.Refunds,
		Incomes:        balance.Incomes,
		Expenses:       balance.Expenses,
		SystemAmount:   balance.Total,
		CountedAmount:  session.ClosingCountedAmount,
		Difference:     session.ClosingDifference,
		ForceClosed:    session.ForceClosed,
		Note:           session.ClosingNote,
	}
	if session.ClosedAt != nil {
		report.ClosedAt = *session.ClosedAt
	}
	if session.ClosingSystemAmount != nil {
		report.SystemAmount = *session.ClosingSystemAmount
	}
	// A forced close has no count to compare, which is itself an anomaly.
	report.Status = ReconciliationDiscrepancy
	if report.Difference != nil {
		report.Status = ReconciliationStatus(*report.Difference)
	}
	return report
}
