package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Togather-Foundation/attendance/internal/api"
	"github.com/Togather-Foundation/attendance/internal/api/handlers"
	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/Togather-Foundation/attendance/internal/domain/certificates"
	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/Togather-Foundation/attendance/internal/email"
	"github.com/Togather-Foundation/attendance/internal/metrics"
	"github.com/Togather-Foundation/attendance/internal/pdf"
	"github.com/Togather-Foundation/attendance/internal/storage/memory"
	"github.com/Togather-Foundation/attendance/internal/storage/sqlite"
	"github.com/Togather-Foundation/attendance/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout      = 10 * time.Second
	dispatchDrainTimeout = 30 * time.Second
	dbStatsInterval      = 15 * time.Second
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

func newServeCommand() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the attendance HTTP server",
		Long: `Start the attendance HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Open the participant store and apply pending migrations (sqlite driver)
- Serve the registration, attendance, evaluation and certificate endpoints
- On SIGINT/SIGTERM, stop accepting requests and wait for queued certificate emails

Examples:
  # Start with default configuration (from env vars)
  attendance serve

  # Start on a specific host and port
  attendance serve --host 127.0.0.1 --port 9090

  # Keep participants in memory only
  DATABASE_DRIVER=memory attendance serve --log-format console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	serve.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serve.Flags().IntVar(&serverPort, "port", 0, "server port (default: 10000)")
	return serve
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("environment", cfg.Environment).
		Str("database_driver", cfg.Database.Driver).
		Msg("starting attendance server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	store, err := openBackend(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("store close error")
		}
	}()

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if !cfg.Email.Enabled {
		logger.Warn().Msg("email disabled; certificates will not be mailed")
	}

	participantService := participants.NewService(store.repo, logger, participants.WithNameCheck(pdf.CheckPrintable))
	certificateService := certificates.NewService(
		store.repo,
		pdf.NewCertificateRenderer(),
		mailer,
		certificates.EventMetadata{
			Name:      cfg.Event.Name,
			Hours:     cfg.Event.Hours,
			Signatory: cfg.Event.Signatory,
		},
		logger,
	)

	server := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: api.NewRouter(cfg, logger, api.Dependencies{
			Participants: participantService,
			Certificates: certificateService,
			Store:        store.repo,
			Migrations:   store.migrations,
			Build:        api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
		}),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if store.stats != nil {
		collector := metrics.NewDBCollector(store.stats)
		g.Go(func() error {
			collector.Start(gctx, dbStatsInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		return shutdown(server, certificateService.Wait, logger, shutdownTimeout, dispatchDrainTimeout)
	})

	return g.Wait()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the HTTP server, then waits for in-flight certificate emails.
// The drain runs even when the server did not stop cleanly; the server error
// is returned afterwards.
func shutdown(server shutdowner, drain func(), logger zerolog.Logger, serverTimeout, drainTimeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverTimeout)
	defer cancel()
	serverErr := server.Shutdown(shutdownCtx)
	if serverErr != nil {
		logger.Error().Err(serverErr).Msg("shutdown error")
	}

	if !waitWithTimeout(drain, drainTimeout) {
		logger.Warn().Dur("timeout", drainTimeout).Msg("certificate emails still in flight at exit")
	}
	if serverErr != nil {
		return serverErr
	}
	logger.Info().Msg("server stopped")
	return nil
}

// backend is the opened participant store plus the optional capabilities the
// server wires into health checks and metrics.
type backend struct {
	repo       participants.Repository
	migrations handlers.SchemaVersioner
	stats      metrics.StatsSource
	close      func() error
}

func (b *backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

func openBackend(cfg config.DatabaseConfig) (*backend, error) {
	switch cfg.Driver {
	case "memory":
		return &backend{repo: memory.NewParticipantRepository()}, nil
	case "sqlite", "":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &backend{
			repo:       store.Participants(),
			migrations: store,
			stats:      store,
			close:      store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// waitWithTimeout reports whether wait returned before d elapsed.
func waitWithTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

