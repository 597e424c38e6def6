package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/api"
	"github.com/hackgods/praxis-scheduling/internal/app/bootstrap"
	"github.com/hackgods/praxis-scheduling/internal/config"
	"github.com/hackgods/praxis-scheduling/internal/logging"
	"github.com/hackgods/praxis-scheduling/internal/patient"
	"github.com/hackgods/praxis-scheduling/internal/reminder"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(rootCtx, cfg, bootstrap.Options{Registerer: prometheus.DefaultRegisterer}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer rt.Close()

	var pgPing, redisPing api.Pinger
	if rt.Postgres != nil {
		pgPing = rt.Postgres
	}
	if rt.Redis != nil {
		rdb := rt.Redis
		redisPing = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	router := api.NewRouter(api.RouterConfig{
		Patients:     patient.NewResolver(rt.Directory, nil),
		Appointments: rt.Booking,
		Notifier:     rt.Dispatcher,
		Reminders:    rt.Reminders,
		Directory:    rt.Directory,
		Health:       api.NewHealthHandler(pgPing, redisPing, cfg.Env, version),
		Metrics:      promhttp.Handler(),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.SweepInterval > 0 {
		go runSweeps(rootCtx, rt.Reminders, cfg.SweepInterval, logger)
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// runSweeps sends due reminders from inside the api-server, for deployments
// without a separate reminder-worker.
func runSweeps(ctx context.Context, svc *reminder.Service, every time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, every)
			if _, err := svc.Sweep(runCtx, now); err != nil {
				logger.Error().Err(err).Msg("reminder sweep failed")
			}
			cancel()
		}
	}
}
