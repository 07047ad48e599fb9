// Package main is the entry point for the trading analyzer service. It keeps
// the analytics dashboard's state in sync with the remote analytics API and
// exposes that state, normalized to the user's display currency, over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/config"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/di"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/server"
	"github.com/lakjdfalken/trading-analyzer-sub001/pkg/logger"
)

const (
	startupRateTimeout = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// main orchestrates the startup sequence:
// 1. Loads configuration and initializes logging
// 2. Wires all dependencies via the DI container
// 3. Loads exchange rates (remote, cached, or built-in)
// 4. Mounts the analytics store and loads preferences in the background;
//    the first fetch cycle starts once preferences are known
// 5. Starts the job scheduler and the HTTP server
// 6. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("api", cfg.APIBaseURL).
		Str("view", cfg.View).
		Msg("Starting trading analyzer")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Rates first so the first cycle converts with a real table
	rateCtx, rateCancel := context.WithTimeout(context.Background(), startupRateTimeout)
	source := container.RateService.Refresh(rateCtx)
	rateCancel()
	log.Info().Str("source", string(source)).Msg("Exchange rates loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container.Store.Mount()
	go func() {
		prefs := container.PreferencesService.Load(ctx)
		log.Info().
			Str("currency", prefs.DefaultCurrency).
			Bool("show_converted", prefs.ShowConverted).
			Str("source", container.PreferencesService.Source()).
			Msg("Preferences loaded")
	}()

	jobs.Scheduler.Start()

	srv := server.New(server.Config{
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
		Log:       log,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	jobs.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Close()

	log.Info().Msg("Server stopped")
}
