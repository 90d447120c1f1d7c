package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashbox_backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementRepository is the append-only cash movement ledger. There are no
// update or delete operations; the schema rejects them as well.
type MovementRepository interface {
	// Append inserts the movement, or returns the movement already stored under the
	// same (session, request id) pair.
	Append(ctx context.Context, exec SQLExecutor, movement *models.CashMovement) (*models.CashMovement, error)
	// FindByRequestID returns ErrNotFound when no movement carries the key.
	FindByRequestID(ctx context.Context, exec SQLExecutor, sessionID int64, requestID uuid.UUID) (*models.CashMovement, error)
	Totals(ctx context.Context, exec SQLExecutor, sessionID int64) (models.Balance, error)
	ListBySession(ctx context.Context, exec SQLExecutor, sessionID int64) ([]models.CashMovement, error)
}

type movementRepository struct{}

// NewMovementRepository creates a new instance of MovementRepository.
func NewMovementRepository() MovementRepository {
	return &movementRepository{}
}

const movementColumns = `id, session_id, employee_id, organization_id, movement_type, amount, payment_method, description, request_id, created_at`

func scanMovement(row scanner) (*models.CashMovement, error) {
	m := &models.CashMovement{}
	var method sql.NullString
	if err := row.Scan(
		&m.ID, &m.SessionID, &m.EmployeeID, &m.OrganizationID, &m.MovementType,
		&m.Amount, &method, &m.Description, &m.RequestID, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if method.Valid {
		pm := models.PaymentMethod(method.String)
		m.PaymentMethod = &pm
	}
	return m, nil
}

func (r *movementRepository) Append(ctx context.Context, exec SQLExecutor, movement *models.CashMovement) (*models.CashMovement, error) {
	query := `INSERT INTO cash_movements
	              (session_id, employee_id, organization_id, movement_type, amount, payment_method, description, request_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	          ON CONFLICT (session_id, request_id) DO NOTHING
	          RETURNING ` + movementColumns

	var method sql.NullString
	if movement.PaymentMethod != nil {
		method = sql.NullString{String: string(*movement.PaymentMethod), Valid: true}
	}

	// A zero time falls back to the database clock instead of being stored as year 1.
	createdAt := sql.NullTime{Time: movement.CreatedAt, Valid: !movement.CreatedAt.IsZero()}

	stored, err := scanMovement(exec.QueryRowContext(ctx, query,
		movement.SessionID, movement.EmployeeID, movement.OrganizationID, movement.MovementType,
		movement.Amount, method, movement.Description, movement.RequestID, createdAt,
	))
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "appending cash movement")
	}

	// Conflict on the idempotency key: the movement was already recorded.
	return r.FindByRequestID(ctx, exec, movement.SessionID, movement.RequestID)
}

func (r *movementRepository) FindByRequestID(ctx context.Context, exec SQLExecutor, sessionID int64, requestID uuid.UUID) (*models.CashMovement, error) {
	m, err := scanMovement(exec.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM cash_movements WHERE session_id = $1 AND request_id = $2`,
		sessionID, requestID,
	))
	if err != nil {
		return nil, classify(err, "reading cash movement by request id")
	}
	return m, nil
}

// Totals sums the session's movements per type in a single statement.
func (r *movementRepository) Totals(ctx context.Context, exec SQLExecutor, sessionID int64) (models.Balance, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT movement_type, COALESCE(SUM(amount), 0)
		 FROM cash_movements
		 WHERE session_id = $1
		 GROUP BY movement_type`, sessionID)
	if err != nil {
		return models.Balance{}, classify(err, fmt.Sprintf("summing movements of session %d", sessionID))
	}
	defer rows.Close()

	totals := map[models.MovementType]decimal.Decimal{}
	for rows.Next() {
		var t models.MovementType
		var sum decimal.Decimal
		if err := rows.Scan(&t, &sum); err != nil {
			return models.Balance{}, classify(err, "scanning movement totals")
		}
		totals[t] = sum
	}
	if err := rows.Err(); err != nil {
		return models.Balance{}, classify(err, "iterating movement totals")
	}
	return models.BalanceFromTotals(totals), nil
}

func (r *movementRepository) ListBySession(ctx context.Context, exec SQLExecutor, sessionID int64) ([]models.CashMovement, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM cash_movements WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("querying movements of session %d", sessionID))
	}
	defer rows.Close()

	movements := []models.CashMovement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, classify(err, "scanning cash movement")
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating cash movements")
	}
	return movements, nil
}
