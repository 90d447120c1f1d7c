// migrate applies the embedded SQL migrations; go run ./cmd/migrate -direction=down rolls them back.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"cashbox_backend/internal/config"
	"cashbox_backend/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(cfg.DSN(), *direction); err != nil {
		if errors.Is(err, database.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
