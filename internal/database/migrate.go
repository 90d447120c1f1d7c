package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationFS holds the SQL migrations compiled into the binary.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// ErrNoChange is returned when the schema is already at the requested version.
var ErrNoChange = migrate.ErrNoChange

// RunMigrations applies the embedded migrations in the given direction ("up" or "down").
func RunMigrations(dsn string, direction string) error {
	if dsn == "" {
		return errors.New("database DSN is empty; set DATABASE_URL or the DB_* variables")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	sourceDriver, err := iofs.New(MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
