package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

	// ErrTransient is returned when the store was momentarily unreachable or aborted
	// the transaction; the caller may retry idempotent work.
	ErrTransient = errors.New("transient database error")
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx, so repository methods run
// either standalone or inside a caller's transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// Postgres SQLSTATE classes that describe a condition worth retrying.
var transientClasses = map[pq.ErrorClass]bool{
	"08": true, // connection exception
	"40": true, // transaction rollback (serialization failure, deadlock)
	"53": true, // insufficient resources
	"57": true, // operator intervention (admin shutdown, query canceled)
}

// classify maps a driver error onto the repository sentinels.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: %s (constraint: %s)", ErrDuplicateKey, pqErr.Message, pqErr.Constraint)
		}
		if transientClasses[pqErr.Code.Class()] {
			return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}

	if IsTransient(err) {
		return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
}

// IsTransient reports whether err is a connectivity or timeout failure.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
