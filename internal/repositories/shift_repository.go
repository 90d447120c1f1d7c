package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cashbox_backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ShiftRepository defines database operations on shifts.
type ShiftRepository interface {
	Create(ctx context.Context, exec SQLExecutor, shift *models.Shift) error
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Shift, error)
	// GetForUpdate locks the shift row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int64) (*models.Shift, error)
	Close(ctx context.Context, exec SQLExecutor, id int64, endedAt time.Time, pay models.ShiftPay) (*models.Shift, error)
	List(ctx context.Context, exec SQLExecutor, filter models.ShiftFilter) ([]models.Shift, int, error)
	ListClosedByOrganization(ctx context.Context, exec SQLExecutor, organizationID int64) ([]models.Shift, error)
	// ClaimForPayment moves the given CLOSED shifts to PAID and returns only the rows it changed.
	ClaimForPayment(ctx context.Context, exec SQLExecutor, ids []int64) ([]models.Shift, error)
	OrganizationsWithClosedShifts(ctx context.Context, exec SQLExecutor) ([]int64, error)
}

type shiftRepository struct{}

// NewShiftRepository creates a new instance of ShiftRepository.
func NewShiftRepository() ShiftRepository {
	return &shiftRepository{}
}

const shiftColumns = `id, employee_id, organization_id, started_at, ended_at, total_hours, total_payment, status, created_at, updated_at`

func scanShift(row scanner, extra ...interface{}) (*models.Shift, error) {
	s := &models.Shift{}
	var endedAt sql.NullTime
	var hours, payment decimal.NullDecimal
	dest := []interface{}{
		&s.ID, &s.EmployeeID, &s.OrganizationID, &s.StartedAt, &endedAt,
		&hours, &payment, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.EndedAt = timePtr(endedAt)
	s.TotalHours = decimalPtr(hours)
	s.TotalPayment = decimalPtr(payment)
	return s, nil
}

func collectShifts(rows *sql.Rows, op string) ([]models.Shift, error) {
	defer rows.Close()
	shifts := []models.Shift{}
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, classify(err, "scanning "+op)
		}
		shifts = append(shifts, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating "+op)
	}
	return shifts, nil
}

// Create inserts an OPEN shift. The partial unique index on OPEN shifts turns a
// second concurrent clock-in into ErrDuplicateKey.
func (r *shiftRepository) Create(ctx context.Context, exec SQLExecutor, shift *models.Shift) error {
	query := `INSERT INTO shifts (employee_id, organization_id, started_at, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $3, $3)
	          RETURNING id, created_at, updated_at`

	shift.Status = models.ShiftOpen
	err := exec.QueryRowContext(ctx, query,
		shift.EmployeeID, shift.OrganizationID, shift.StartedAt, shift.Status,
	).Scan(&shift.ID, &shift.CreatedAt, &shift.UpdatedAt)
	if err != nil {
		return classify(err, "creating shift")
	}
	return nil
}

func (r *shiftRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	s, err := scanShift(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("getting shift %d", id))
	}
	return s, nil
}

func (r *shiftRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int64) (*models.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1 FOR UPDATE`
	s, err := scanShift(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("locking shift %d", id))
	}
	return s, nil
}

// Close transitions an OPEN shift to CLOSED. Returns ErrNotFound when the shift
// is missing or no longer OPEN.
func (r *shiftRepository) Close(ctx context.Context, exec SQLExecutor, id int64, endedAt time.Time, pay models.ShiftPay) (*models.Shift, error) {
	query := `UPDATE shifts
	          SET ended_at = $1, total_hours = $2, total_payment = $3, status = $4, updated_at = $1
	          WHERE id = $5 AND status = $6
	          RETURNING ` + shiftColumns
	s, err := scanShift(exec.QueryRowContext(ctx, query,
		endedAt, pay.Hours, pay.Payment, models.ShiftClosed, id, models.ShiftOpen,
	))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("closing shift %d", id))
	}
	return s, nil
}

func (r *shiftRepository) List(ctx context.Context, exec SQLExecutor, filter models.ShiftFilter) ([]models.Shift, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + shiftColumns + `, COUNT(*) OVER() AS total_count FROM shifts`)

	conditions := []string{"organization_id = $1"}
	args := []interface{}{filter.OrganizationID}
	argCount := 2

	if filter.EmployeeID != nil {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", argCount))
		args = append(args, *filter.EmployeeID)
		argCount++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filter.Status)
		argCount++
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	queryBuilder.WriteString(" ORDER BY started_at DESC, id DESC")

	if filter.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCount))
		args = append(args, filter.PageSize)
		argCount++
		if filter.Page > 0 {
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCount))
			args = append(args, (filter.Page-1)*filter.PageSize)
		}
	}

	rows, err := exec.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, classify(err, "querying shifts")
	}
	defer rows.Close()

	shifts := []models.Shift{}
	totalCount := 0
	for rows.Next() {
		var count int
		s, err := scanShift(rows, &count)
		if err != nil {
			return nil, 0, classify(err, "scanning shift")
		}
		totalCount = count
		shifts = append(shifts, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "iterating shift rows")
	}
	return shifts, totalCount, nil
}

func (r *shiftRepository) ListClosedByOrganization(ctx context.Context, exec SQLExecutor, organizationID int64) ([]models.Shift, error) {
	query := `SELECT ` + shiftColumns + `
	          FROM shifts
	          WHERE organization_id = $1 AND status = $2
	          ORDER BY employee_id, started_at`
	rows, err := exec.QueryContext(ctx, query, organizationID, models.ShiftClosed)
	if err != nil {
		return nil, classify(err, "querying closed shifts")
	}
	return collectShifts(rows, "closed shifts")
}

func (r *shiftRepository) ClaimForPayment(ctx context.Context, exec SQLExecutor, ids []int64) ([]models.Shift, error) {
	query := `UPDATE shifts
	          SET status = $1, updated_at = NOW()
	          WHERE id = ANY($2) AND status = $3
	          RETURNING ` + shiftColumns
	rows, err := exec.QueryContext(ctx, query, models.ShiftPaid, pq.Array(ids), models.ShiftClosed)
	if err != nil {
		return nil, classify(err, "claiming shifts for payment")
	}
	return collectShifts(rows, "claimed shifts")
}

func (r *shiftRepository) OrganizationsWithClosedShifts(ctx context.Context, exec SQLExecutor) ([]int64, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT DISTINCT organization_id FROM shifts WHERE status = $1 ORDER BY organization_id`, models.ShiftClosed)
	if err != nil {
		return nil, classify(err, "querying organizations with closed shifts")
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "scanning organization id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating organization ids")
	}
	return ids, nil
}
