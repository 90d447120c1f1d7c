// Worker runs the payroll liquidation batch on LIQUIDATION_INTERVAL for every
// organization that has closed shifts. Pass -once to run a single pass and exit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cashbox_backend/internal/app"
	"cashbox_backend/internal/config"
	"cashbox_backend/internal/worker"
	"cashbox_backend/pkg/utils"

	"github.com/rs/zerolog/log"
)

func main() {
	once := flag.Bool("once", false, "run a single liquidation pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("worker: config")
	}
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: init")
	}
	defer func() {
		if err := application.Close(); err != nil {
			utils.LogError(err, "worker: close")
		}
	}()

	w := worker.NewLiquidationWorker(application.Services.Liquidation, cfg.LiquidationEvery())
	if *once {
		created, err := w.RunOnce(ctx)
		if err != nil {
			utils.LogError(err, "worker: liquidation pass failed")
			return
		}
		utils.LogInfo("worker: liquidation pass done", map[string]interface{}{"created": created})
		return
	}

	utils.LogInfo("worker: started", map[string]interface{}{"interval": cfg.LiquidationEvery().String()})
	w.Run(ctx)
}
