package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventviewer/server/internal/config"
	"github.com/eventviewer/server/internal/metrics"
	"github.com/eventviewer/server/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

type serveFlags struct {
	host string
	port int
}

func (f serveFlags) apply(cfg *config.Config) {
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var sf serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start the HTTP and WebSocket server.

On startup the server:
- loads configuration from env vars (over --config when given)
- creates the super admin from ADMIN_EMAIL/ADMIN_PASSWORD if missing
- starts the nightly cleanup job
- shuts down gracefully on SIGINT/SIGTERM

Examples:
  server serve --port 9090
  server serve --config /etc/eventviewer/config.yaml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			sf.apply(&cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&sf.host, "host", "", "server host address (default 0.0.0.0)")
	cmd.Flags().IntVar(&sf.port, "port", 0, "server port (default 8080)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting eventviewer server")
	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// WriteTimeout stays unset so WebSocket connections are not cut.
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
