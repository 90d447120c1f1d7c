package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cashbox_backend/pkg/utils"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Open opens the connection pool and verifies it with a ping.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	utils.LogInfo("Successfully connected to the database", map[string]interface{}{"max_open_conns": maxOpenConns})
	return db, nil
}
