// Package worker runs the scheduled payroll liquidation batch.
package worker

import (
	"context"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/services"

	"github.com/rs/zerolog/log"
)

// LiquidationWorker liquidates every organization with closed shifts on a fixed interval.
type LiquidationWorker struct {
	service  services.LiquidationService
	interval time.Duration
}

// NewLiquidationWorker creates a worker that runs every interval.
func NewLiquidationWorker(service services.LiquidationService, interval time.Duration) *LiquidationWorker {
	return &LiquidationWorker{service: service, interval: interval}
}

// Run performs one pass immediately and then one per tick until ctx is cancelled.
func (w *LiquidationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("worker: liquidation pass failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("worker: stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce liquidates each pending organization as the system actor and returns
// the number of liquidations created. One organization failing does not stop the pass.
func (w *LiquidationWorker) RunOnce(ctx context.Context) (int, error) {
	orgIDs, err := w.service.OrganizationsPending(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		run, err := w.service.RunLiquidation(authz.WithActor(ctx, authz.SystemActor(orgID)), orgID)
		if err != nil {
			log.Error().Err(err).Int64("organization_id", orgID).Msg("worker: liquidation run failed")
			continue
		}
		created += len(run.Created)
		log.Info().
			Int64("organization_id", orgID).
			Int("created", len(run.Created)).
			Int("failed", len(run.Failed)).
			Int("skipped", run.Skipped).
			Msg("worker: organization liquidated")
	}
	return created, nil
}
