package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashbox_backend/internal/app"
	"cashbox_backend/internal/config"
	"cashbox_backend/internal/middleware"
	"cashbox_backend/internal/router"
	"cashbox_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Logger
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() {
		if err := application.Close(); err != nil {
			utils.LogError(err, "Failed to release resources")
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	// Add GinLogger middleware for request logging
	engine.Use(utils.GinLogger())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{})
	}
	router.Setup(engine, application.Services, cfg.JWTSecret, metricsHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError(err, "Failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	utils.LogInfo("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Server forced to shut down")
	}
	utils.LogInfo("Server stopped")
}
