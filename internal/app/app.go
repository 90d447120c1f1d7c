// Package app assembles the database, policy, event and metrics dependencies
// shared by the server and the worker.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/config"
	"cashbox_backend/internal/database"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/metrics"
	"cashbox_backend/internal/repositories"
	"cashbox_backend/internal/services"
	"cashbox_backend/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the process-wide resources. Call Close on shutdown.
type App struct {
	DB       *sql.DB
	Services *services.Services
	Registry *prometheus.Registry
	events   events.Publisher
}

// New opens the database, applies pending migrations and wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := database.RunMigrations(cfg.DSN(), "up"); err != nil && !errors.Is(err, database.ErrNoChange) {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	db, err := database.Open(ctx, cfg.DSN(), cfg.DBMaxOpenConns)
	if err != nil {
		return nil, err
	}

	authorizer, err := authz.NewPolicyAuthorizer(ctx, cfg.AuthzPolicyFile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, "cashbox"))

	var publisher events.Publisher
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.EventsTopic)
		utils.LogInfo("Publishing events to Kafka", map[string]interface{}{"brokers": brokers, "topic": cfg.EventsTopic})
	} else {
		publisher = events.NewLogPublisher()
		utils.LogInfo("KAFKA_BROKERS not set; events are written to the log")
	}

	deps := services.Dependencies{
		DB:      db,
		Tx:      repositories.NewTransactor(db),
		Authz:   authorizer,
		Events:  publisher,
		Metrics: metrics.New(registry),
		Retry:   services.RetryPolicy{MaxTries: cfg.RetryMaxTries, InitialInterval: 50 * time.Millisecond},
	}
	svc := services.New(deps, services.Settings{
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.AccessTTL(),
		ShiftEndPolicy:    services.ShiftEndPolicy(cfg.ShiftEndPolicy),
		DefaultHourlyRate: cfg.HourlyRate(),
	})

	return &App{DB: db, Services: svc, Registry: registry, events: publisher}, nil
}

// Close flushes pending events and closes the pool.
func (a *App) Close() error {
	return errors.Join(a.events.Close(), a.DB.Close())
}
