package repositories

import (
	"context"
	"database/sql"
)

// Transactor runs a unit of work inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error
}

type sqlTransactor struct {
	db *sql.DB
}

// NewTransactor returns a Transactor backed by db at READ COMMITTED isolation.
func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err, "begin transaction")
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit transaction")
	}
	return nil
}
