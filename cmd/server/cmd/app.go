package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eventviewer/server/internal/api"
	"github.com/eventviewer/server/internal/api/handlers"
	"github.com/eventviewer/server/internal/audit"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/config"
	"github.com/eventviewer/server/internal/domain/events"
	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/domain/sessions"
	"github.com/eventviewer/server/internal/domain/users"
	"github.com/eventviewer/server/internal/email"
	"github.com/eventviewer/server/internal/jobs"
	"github.com/eventviewer/server/internal/metrics"
	"github.com/eventviewer/server/internal/realtime"
	"github.com/eventviewer/server/internal/storage/assets"
	"github.com/eventviewer/server/internal/storage/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// application owns every long-lived component of a serve run.
type application struct {
	cfg    config.Config
	logger zerolog.Logger

	pool        *pgxpool.Pool
	repo        *postgres.Repository
	users       *users.Service
	hub         *realtime.Hub
	bus         *realtime.RedisBus
	river       *river.Client[pgx.Tx]
	dbCollector *metrics.DBCollector
	router      *api.Router

	cancel context.CancelFunc
}

func newApplication(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	pool, err := postgres.Connect(connectCtx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return nil, err
	}
	app := &application{cfg: cfg, logger: logger, pool: pool}

	if err := app.wire(loc); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (a *application) wire(loc *time.Location) error {
	cfg, logger := a.cfg, a.logger

	repo, err := postgres.NewRepository(a.pool)
	if err != nil {
		return fmt.Errorf("repository init: %w", err)
	}
	a.repo = repo

	tokens, err := auth.NewTokenIssuer(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	mailer, err := email.NewService(cfg.Email, sessions.OTPTTL, logger)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	images, err := assets.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("asset store: %w", err)
	}

	hasher := auth.NewHasher(auth.DefaultHashCost)
	auditLogger := audit.NewLogger(logger)

	a.hub = realtime.NewHub(logger)
	var publisher notifications.Publisher = a.hub
	var redisPinger handlers.Pinger
	if cfg.Redis.URL != "" {
		client, err := realtime.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.bus = realtime.NewRedisBus(client, a.hub, logger)
		publisher = a.bus
		redisPinger = a.bus
	}

	a.users = users.NewService(repo.Users(), hasher, auditLogger, logger)
	manager := sessions.NewManager(repo.Sessions(), a.users, tokens, hasher, mailer, auditLogger, logger)
	engine := events.NewEngine(repo.Events(), images, publisher, auditLogger, logger,
		events.WithLocation(loc),
		events.WithUploadTimeout(cfg.Storage.UploadTimeout),
	)

	var uploadsDir string
	if local, ok := images.(*assets.LocalStore); ok {
		uploadsDir = local.Root()
	}

	a.router = api.NewRouter(api.Deps{
		Config: cfg,
		Logger: logger,
		Services: api.Services{
			Users:         a.users,
			Sessions:      manager,
			Passwords:     manager,
			Authenticator: manager,
			Events:        engine,
			Notifications: notifications.NewService(repo.Notifications(), logger),
		},
		Hub:        a.hub,
		Health:     handlers.NewHealthChecker(a.pool, redisPinger, Version, GitCommit),
		UploadsDir: uploadsDir,
		Build:      api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})

	var periodic []*river.PeriodicJob
	if cfg.Jobs.CleanupEnabled {
		periodic = jobs.NewPeriodicJobs(loc)
	}
	riverLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	a.river, err = jobs.NewClient(a.pool, jobs.NewWorkers(repo.Cleanup(), logger), riverLogger, logger,
		[]rivertype.Hook{metrics.NewRiverMetricsHook()}, periodic)
	if err != nil {
		return fmt.Errorf("river client: %w", err)
	}

	a.dbCollector = metrics.NewDBCollector(a.pool)
	return nil
}

// start launches background work. Everything stops when ctx ends or close runs.
func (a *application) start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.bootstrapSuperAdmin(bootstrapCtx); err != nil {
		a.logger.Error().Err(err).Msg("super admin bootstrap failed")
	}

	go a.dbCollector.Start(ctx, 15*time.Second)

	if a.bus != nil {
		ready := make(chan struct{})
		go func() {
			if err := a.bus.Run(ctx, ready); err != nil && ctx.Err() == nil {
				a.logger.Error().Err(err).Msg("redis bus stopped")
			}
		}()
		select {
		case <-ready:
			a.logger.Info().Msg("redis fan-out subscribed")
		case <-time.After(10 * time.Second):
			a.logger.Warn().Msg("redis subscription not confirmed; continuing with local delivery")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if applied, err := jobs.MigrateSchema(ctx, a.pool); err != nil {
		return err
	} else if len(applied) > 0 {
		a.logger.Info().Ints("versions", applied).Msg("river schema migrated")
	}
	if err := a.river.Start(ctx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	a.logger.Info().Bool("cleanup_enabled", a.cfg.Jobs.CleanupEnabled).Msg("river workers started")
	return nil
}

func (a *application) bootstrapSuperAdmin(ctx context.Context) error {
	b := a.cfg.AdminBootstrap
	if b.Email == "" || b.Password == "" {
		a.logger.Debug().Msg("ADMIN_EMAIL/ADMIN_PASSWORD not set; skipping super admin bootstrap")
		return nil
	}
	created, err := a.users.EnsureSuperAdmin(ctx, b.Email, b.Password, b.FirstName)
	if err != nil {
		return err
	}
	if created {
		event := a.logger.Info()
		if a.cfg.Environment != "production" {
			event = event.Str("email", b.Email)
		}
		event.Msg("bootstrapped super admin")
	}
	return nil
}

func (a *application) close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.river != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.river.Stop(stopCtx); err != nil {
			a.logger.Error().Err(err).Msg("river workers shutdown error")
		}
		cancel()
	}
	if a.dbCollector != nil {
		a.dbCollector.Stop()
	}
	if a.router != nil {
		a.router.Close()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis close error")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
