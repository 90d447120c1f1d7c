package repositories

import (
	"context"
	"fmt"

	"cashbox_backend/internal/models"

	"github.com/shopspring/decimal"
)

// EmployeeRepository reads the employee directory maintained by the identity service.
type EmployeeRepository interface {
	FindByUsername(ctx context.Context, exec SQLExecutor, username string) (*models.Employee, error)
	FindByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Employee, error)
}

type employeeRepository struct{}

// NewEmployeeRepository creates a new instance of EmployeeRepository.
func NewEmployeeRepository() EmployeeRepository {
	return &employeeRepository{}
}

const employeeColumns = `id, organization_id, full_name, username, password_hash, role, hourly_rate, is_active, created_at, updated_at`

func scanEmployee(row scanner) (*models.Employee, error) {
	e := &models.Employee{}
	var rate decimal.NullDecimal
	if err := row.Scan(
		&e.ID, &e.OrganizationID, &e.FullName, &e.Username, &e.PasswordHash,
		&e.Role, &rate, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.HourlyRate = decimalPtr(rate)
	return e, nil
}

// FindByUsername returns the employee including the password hash, for login.
func (r *employeeRepository) FindByUsername(ctx context.Context, exec SQLExecutor, username string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE username = $1`
	e, err := scanEmployee(exec.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("finding employee by username %s", username))
	}
	return e, nil
}

// FindByID returns the employee with the given id.
func (r *employeeRepository) FindByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	e, err := scanEmployee(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("finding employee by ID %d", id))
	}
	return e, nil
}
