package repositories

import (
	"context"
	"fmt"

	"cashbox_backend/internal/models"
)

// AuditRepository stores partial audit checkpoints.
type AuditRepository interface {
	Create(ctx context.Context, exec SQLExecutor, checkpoint *models.AuditCheckpoint) error
	ListBySession(ctx context.Context, exec SQLExecutor, sessionID int64) ([]models.AuditCheckpoint, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

func (r *auditRepository) Create(ctx context.Context, exec SQLExecutor, c *models.AuditCheckpoint) error {
	query := `INSERT INTO audit_checkpoints
	              (session_id, organization_id, employee_id, counted_amount, system_amount, difference, note, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	err := exec.QueryRowContext(ctx, query,
		c.SessionID, c.OrganizationID, c.EmployeeID, c.CountedAmount,
		c.SystemAmount, c.Difference, c.Note, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return classify(err, "creating audit checkpoint")
	}
	return nil
}

func (r *auditRepository) ListBySession(ctx context.Context, exec SQLExecutor, sessionID int64) ([]models.AuditCheckpoint, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT id, session_id, organization_id, employee_id, counted_amount, system_amount, difference, note, created_at
		 FROM audit_checkpoints
		 WHERE session_id = $1
		 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("querying checkpoints of session %d", sessionID))
	}
	defer rows.Close()

	checkpoints := []models.AuditCheckpoint{}
	for rows.Next() {
		var c models.AuditCheckpoint
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.OrganizationID, &c.EmployeeID, &c.CountedAmount,
			&c.SystemAmount, &c.Difference, &c.Note, &c.CreatedAt,
		); err != nil {
			return nil, classify(err, "scanning audit checkpoint")
		}
		checkpoints = append(checkpoints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating audit checkpoints")
	}
	return checkpoints, nil
}
