package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"cashbox_backend/internal/models"

	"github.com/shopspring/decimal"
)

// CashboxRepository defines database operations on cashbox sessions.
type CashboxRepository interface {
	Create(ctx context.Context, exec SQLExecutor, session *models.CashboxSession) error
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.CashboxSession, error)
	// GetForUpdate takes an exclusive row lock; it waits for in-flight movements holding a share lock.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int64) (*models.CashboxSession, error)
	// GetForShare takes a shared row lock so concurrent appends do not serialize on each other.
	GetForShare(ctx context.Context, exec SQLExecutor, id int64) (*models.CashboxSession, error)
	// GetOpenByShiftForUpdate returns ErrNotFound when the shift has no OPEN session.
	GetOpenByShiftForUpdate(ctx context.Context, exec SQLExecutor, shiftID int64) (*models.CashboxSession, error)
	Close(ctx context.Context, exec SQLExecutor, id int64, closing models.SessionClosing) (*models.CashboxSession, error)
	// GetTerminalStatus only sees shifts and sessions of the given organization.
	GetTerminalStatus(ctx context.Context, exec SQLExecutor, organizationID, employeeID int64) (*models.TerminalStatus, error)
}

type cashboxRepository struct{}

// NewCashboxRepository creates a new instance of CashboxRepository.
func NewCashboxRepository() CashboxRepository {
	return &cashboxRepository{}
}

const sessionColumns = `id, shift_id, employee_id, organization_id, opening_amount, status, opened_at, closed_at,
	closing_counted_amount, closing_system_amount, closing_difference, closing_note, force_closed`

func scanSession(row scanner) (*models.CashboxSession, error) {
	s := &models.CashboxSession{}
	var closedAt sql.NullTime
	var counted, system, difference decimal.NullDecimal
	var note sql.NullString
	if err := row.Scan(
		&s.ID, &s.ShiftID, &s.EmployeeID, &s.OrganizationID, &s.OpeningAmount, &s.Status,
		&s.OpenedAt, &closedAt, &counted, &system, &difference, &note, &s.ForceClosed,
	); err != nil {
		return nil, err
	}
	s.ClosedAt = timePtr(closedAt)
	s.ClosingCountedAmount = decimalPtr(counted)
	s.ClosingSystemAmount = decimalPtr(system)
	s.ClosingDifference = decimalPtr(difference)
	s.ClosingNote = stringPtr(note)
	return s, nil
}

// Create inserts an OPEN session. A second OPEN session for the same shift
// violates the partial unique index and surfaces as ErrDuplicateKey.
func (r *cashboxRepository) Create(ctx context.Context, exec SQLExecutor, session *models.CashboxSession) error {
	query := `INSERT INTO cashbox_sessions (shift_id, employee_id, organization_id, opening_amount, status, opened_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	session.Status = models.SessionOpen
	err := exec.QueryRowContext(ctx, query,
		session.ShiftID, session.EmployeeID, session.OrganizationID,
		session.OpeningAmount, session.Status, session.OpenedAt,
	).Scan(&session.ID)
	if err != nil {
		return classify(err, "creating cashbox session")
	}
	return nil
}

func (r *cashboxRepository) getSession(ctx context.Context, exec SQLExecutor, id int64, lock string) (*models.CashboxSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cashbox_sessions WHERE id = $1` + lock
	s, err := scanSession(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("getting cashbox session %d", id))
	}
	return s, nil
}

func (r *cashboxRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.CashboxSession, error) {
	return r.getSession(ctx, exec, id, "")
}

func (r *cashboxRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int64) (*models.CashboxSession, error) {
	return r.getSession(ctx, exec, id, " FOR UPDATE")
}

func (r *cashboxRepository) GetForShare(ctx context.Context, exec SQLExecutor, id int64) (*models.CashboxSession, error) {
	return r.getSession(ctx, exec, id, " FOR SHARE")
}

func (r *cashboxRepository) GetOpenByShiftForUpdate(ctx context.Context, exec SQLExecutor, shiftID int64) (*models.CashboxSession, error) {
	query := `SELECT ` + sessionColumns + `
	          FROM cashbox_sessions
	          WHERE shift_id = $1 AND status = $2
	          FOR UPDATE`
	s, err := scanSession(exec.QueryRowContext(ctx, query, shiftID, models.SessionOpen))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("getting open session of shift %d", shiftID))
	}
	return s, nil
}

// Close writes the closing fields of an OPEN session. Returns ErrNotFound when
// the session is missing or already CLOSED.
func (r *cashboxRepository) Close(ctx context.Context, exec SQLExecutor, id int64, closing models.SessionClosing) (*models.CashboxSession, error) {
	query := `UPDATE cashbox_sessions
	          SET status = $1, closed_at = $2, closing_counted_amount = $3, closing_system_amount = $4,
	              closing_difference = $5, closing_note = $6, force_closed = $7
	          WHERE id = $8 AND status = $9
	          RETURNING ` + sessionColumns

	var note sql.NullString
	if closing.Note != nil {
		note = sql.NullString{String: *closing.Note, Valid: true}
	}
	s, err := scanSession(exec.QueryRowContext(ctx, query,
		models.SessionClosed, closing.ClosedAt, nullDecimal(closing.Counted), closing.System,
		nullDecimal(closing.Difference), note, closing.Forced, id, models.SessionOpen,
	))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("closing cashbox session %d", id))
	}
	return s, nil
}

// GetTerminalStatus reads the employee's OPEN shift and its OPEN session in one
// statement, so both flags come from the same snapshot.
func (r *cashboxRepository) GetTerminalStatus(ctx context.Context, exec SQLExecutor, organizationID, employeeID int64) (*models.TerminalStatus, error) {
	query := `SELECT sh.id, sh.started_at, cs.id, cs.opening_amount, cs.opened_at
	          FROM (SELECT $1::BIGINT AS employee_id, $2::BIGINT AS organization_id) e
	          LEFT JOIN shifts sh ON sh.employee_id = e.employee_id
	                             AND sh.organization_id = e.organization_id
	                             AND sh.status = 'OPEN'
	          LEFT JOIN cashbox_sessions cs ON cs.shift_id = sh.id AND cs.status = 'OPEN'`

	var shiftID, sessionID sql.NullInt64
	var startedAt, openedAt sql.NullTime
	var opening decimal.NullDecimal
	err := exec.QueryRowContext(ctx, query, employeeID, organizationID).Scan(&shiftID, &startedAt, &sessionID, &opening, &openedAt)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("getting terminal status of employee %d", employeeID))
	}

	return &models.TerminalStatus{
		EmployeeID:     employeeID,
		HasActiveShift: shiftID.Valid,
		ShiftID:        int64Ptr(shiftID),
		ShiftStartedAt: timePtr(startedAt),
		HasOpenSession: sessionID.Valid,
		SessionID:      int64Ptr(sessionID),
		OpeningAmount:  decimalPtr(opening),
		OpenedAt:       timePtr(openedAt),
	}, nil
}
