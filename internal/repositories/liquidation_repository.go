package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cashbox_backend/internal/models"

	"github.com/lib/pq"
)

// LiquidationRepository defines database operations on payroll liquidations.
type LiquidationRepository interface {
	// Create inserts the liquidation and its shift references.
	Create(ctx context.Context, exec SQLExecutor, liquidation *models.Liquidation) error
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Liquidation, error)
	List(ctx context.Context, exec SQLExecutor, organizationID int64, status *models.LiquidationStatus) ([]models.Liquidation, error)
	MarkPaid(ctx context.Context, exec SQLExecutor, id int64, paidAt time.Time) (*models.Liquidation, error)
}

type liquidationRepository struct{}

// NewLiquidationRepository creates a new instance of LiquidationRepository.
func NewLiquidationRepository() LiquidationRepository {
	return &liquidationRepository{}
}

const liquidationColumns = `l.id, l.employee_id, l.organization_id, l.period_start, l.period_end, l.total_amount,
	l.shift_count, l.status, l.created_at, l.paid_at,
	COALESCE((SELECT array_agg(ls.shift_id ORDER BY ls.shift_id) FROM liquidation_shifts ls WHERE ls.liquidation_id = l.id), '{}')`

func scanLiquidation(row scanner) (*models.Liquidation, error) {
	l := &models.Liquidation{}
	var paidAt sql.NullTime
	var shiftIDs pq.Int64Array
	if err := row.Scan(
		&l.ID, &l.EmployeeID, &l.OrganizationID, &l.PeriodStart, &l.PeriodEnd, &l.TotalAmount,
		&l.ShiftCount, &l.Status, &l.CreatedAt, &paidAt, &shiftIDs,
	); err != nil {
		return nil, err
	}
	l.PaidAt = timePtr(paidAt)
	l.ShiftIDs = []int64(shiftIDs)
	return l, nil
}

func (r *liquidationRepository) Create(ctx context.Context, exec SQLExecutor, l *models.Liquidation) error {
	query := `INSERT INTO liquidations
	              (employee_id, organization_id, period_start, period_end, total_amount, shift_count, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, created_at`
	err := exec.QueryRowContext(ctx, query,
		l.EmployeeID, l.OrganizationID, l.PeriodStart, l.PeriodEnd,
		l.TotalAmount, l.ShiftCount, l.Status,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return classify(err, "creating liquidation")
	}

	_, err = exec.ExecContext(ctx,
		`INSERT INTO liquidation_shifts (liquidation_id, shift_id) SELECT $1, UNNEST($2::BIGINT[])`,
		l.ID, pq.Array(l.ShiftIDs))
	if err != nil {
		return classify(err, fmt.Sprintf("linking shifts to liquidation %d", l.ID))
	}
	return nil
}

func (r *liquidationRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Liquidation, error) {
	l, err := scanLiquidation(exec.QueryRowContext(ctx,
		`SELECT `+liquidationColumns+` FROM liquidations l WHERE l.id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("getting liquidation %d", id))
	}
	return l, nil
}

func (r *liquidationRepository) List(ctx context.Context, exec SQLExecutor, organizationID int64, status *models.LiquidationStatus) ([]models.Liquidation, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + liquidationColumns + ` FROM liquidations l WHERE l.organization_id = $1`)
	args := []interface{}{organizationID}
	if status != nil {
		queryBuilder.WriteString(" AND l.status = $2")
		args = append(args, *status)
	}
	queryBuilder.WriteString(" ORDER BY l.created_at DESC, l.id DESC")

	rows, err := exec.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, classify(err, "querying liquidations")
	}
	defer rows.Close()

	liquidations := []models.Liquidation{}
	for rows.Next() {
		l, err := scanLiquidation(rows)
		if err != nil {
			return nil, classify(err, "scanning liquidation")
		}
		liquidations = append(liquidations, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating liquidations")
	}
	return liquidations, nil
}

// MarkPaid moves a pending liquidation to paid. Returns ErrNotFound when the
// liquidation is missing or not pending.
func (r *liquidationRepository) MarkPaid(ctx context.Context, exec SQLExecutor, id int64, paidAt time.Time) (*models.Liquidation, error) {
	query := `WITH updated AS (
	              UPDATE liquidations SET status = $1, paid_at = $2
	              WHERE id = $3 AND status = $4
	              RETURNING *
	          )
	          SELECT ` + liquidationColumns + ` FROM updated l`
	l, err := scanLiquidation(exec.QueryRowContext(ctx, query,
		models.LiquidationPaid, paidAt, id, models.LiquidationPending))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("marking liquidation %d paid", id))
	}
	return l, nil
}
