// Package bootstrap wires configuration into the services shared by the
// api-server and the reminder-worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/appointment"
	"github.com/hackgods/praxis-scheduling/internal/calendar"
	"github.com/hackgods/praxis-scheduling/internal/config"
	"github.com/hackgods/praxis-scheduling/internal/db"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/notify"
	"github.com/hackgods/praxis-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/praxis-scheduling/internal/redis"
	"github.com/hackgods/praxis-scheduling/internal/reminder"
)

var ErrPostgresRequired = errors.New("bootstrap: POSTGRES_DSN is required")

type Options struct {
	// RequirePostgres refuses the in-memory store. Processes that share
	// appointments with another process need it.
	RequirePostgres bool
	// Registerer receives the service metrics; nil disables them.
	Registerer prometheus.Registerer
	// Now anchors the synthetic directory; zero means time.Now.
	Now time.Time
}

type Runtime struct {
	Directory    *directory.Directory
	Store        appointment.Repository
	Postgres     *pgxpool.Pool
	Redis        *redis.Client
	Booking      *appointment.Service
	Dispatcher   *notify.Dispatcher
	Reminders    *reminder.Service
	EmailEnabled bool
	SMSEnabled   bool

	closers []func()
}

// Build connects the optional stores and constructs the services. Without
// POSTGRES_DSN appointments and enrolled patients live in memory; without
// Redis reminder locks and history are process-local.
func Build(ctx context.Context, cfg config.Config, opts Options, logger zerolog.Logger) (*Runtime, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	rt := &Runtime{Directory: directory.Synthetic(cfg.DirectorySeed, now)}

	if err := rt.connectStore(ctx, cfg, opts, logger); err != nil {
		return nil, err
	}

	locker, logs, err := rt.connectRedis(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var bookingMetrics *metrics.BookingMetrics
	var notifyMetrics *metrics.NotificationMetrics
	if opts.Registerer != nil {
		bookingMetrics = metrics.NewBookingMetrics(opts.Registerer)
		notifyMetrics = metrics.NewNotificationMetrics(opts.Registerer)
	}

	notifyCfg := notify.Config{
		PublicURL: cfg.PublicURL,
		Metrics:   notifyMetrics,
	}
	// the senders return nil when unconfigured; keep the interfaces nil too
	if email := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); email != nil {
		notifyCfg.Email = email
		rt.EmailEnabled = true
	}
	if sms := notify.NewTwilioSender(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFromNumber,
		BaseURL:    cfg.TwilioBaseURL,
	}, logger); sms != nil {
		notifyCfg.SMS = sms
		rt.SMSEnabled = true
	}

	rt.Booking = appointment.NewService(
		rt.Store,
		rt.Directory,
		calendar.NewMockGateway(cfg.CalendarMockLatency, logger),
		nil,
		bookingMetrics,
		logger,
	)
	rt.Dispatcher = notify.NewDispatcher(rt.Directory, rt.Store, notifyCfg, logger)
	rt.Reminders = reminder.NewService(rt.Dispatcher, rt.Store, logs, locker, cfg.Location(), logger)

	logger.Info().
		Bool("postgres", rt.Postgres != nil).
		Bool("redis", rt.Redis != nil).
		Bool("email", rt.EmailEnabled).
		Bool("sms", rt.SMSEnabled).
		Int("patients", rt.Directory.PatientCount()).
		Msg("runtime ready")

	return rt, nil
}

func (rt *Runtime) connectStore(ctx context.Context, cfg config.Config, opts Options, logger zerolog.Logger) error {
	if cfg.PostgresDSN == "" {
		if opts.RequirePostgres {
			return ErrPostgresRequired
		}
		logger.Warn().Msg("POSTGRES_DSN not set; appointments are kept in memory")
		rt.Store = appointment.NewMemoryRepository()
		return nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	rt.Postgres = pool
	rt.Store = appointment.NewPgRepository(pool)
	rt.Directory.WithStore(directory.NewPgPatientStore(pool))
	rt.closers = append(rt.closers, pool.Close)
	logger.Info().Msg("connected to Postgres")
	return nil
}

func (rt *Runtime) connectRedis(ctx context.Context, cfg config.Config, logger zerolog.Logger) (redisclient.Locker, reminder.LogStore, error) {
	if cfg.RedisAddr == "" {
		logger.Warn().Msg("Redis not configured; reminder locks and history are process-local")
		return redisclient.NewLocalLocker(), reminder.NewMemoryLogStore(), nil
	}

	rdb, err := redisclient.Connect(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	rt.Redis = rdb
	rt.closers = append(rt.closers, func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	})
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	return redisclient.NewRedisLocker(rdb, cfg.LockTTL), reminder.NewRedisLogStore(rdb), nil
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
