package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/app/bootstrap"
	"github.com/hackgods/praxis-scheduling/internal/config"
	"github.com/hackgods/praxis-scheduling/internal/logging"
	"github.com/hackgods/praxis-scheduling/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "reminder-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the worker only sees appointments booked elsewhere through Postgres
	rt, err := bootstrap.Build(rootCtx, cfg, bootstrap.Options{RequirePostgres: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer rt.Close()

	// Run once at startup
	runOnce(rootCtx, rt.Reminders, cfg.WorkerInterval, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, rt.Reminders, cfg.WorkerInterval, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *reminder.Service, budget time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	res, err := svc.Sweep(runCtx, start)
	if err != nil {
		logger.Error().Err(err).Msg("reminder run error")
		return
	}
	logger.Info().
		Dur("took", time.Since(start)).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Msg("reminder run complete")
}
