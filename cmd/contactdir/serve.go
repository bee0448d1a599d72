// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/contactdir/contactdir/internal/api"
	"github.com/contactdir/contactdir/internal/audit"
	"github.com/contactdir/contactdir/internal/auth"
	authpg "github.com/contactdir/contactdir/internal/auth/postgres"
	"github.com/contactdir/contactdir/internal/business"
	businesspg "github.com/contactdir/contactdir/internal/business/postgres"
	"github.com/contactdir/contactdir/internal/config"
	"github.com/contactdir/contactdir/internal/contact"
	contactpg "github.com/contactdir/contactdir/internal/contact/postgres"
	"github.com/contactdir/contactdir/internal/directory"
	"github.com/contactdir/contactdir/internal/email"
	emailpg "github.com/contactdir/contactdir/internal/email/postgres"
	"github.com/contactdir/contactdir/internal/logging"
	"github.com/contactdir/contactdir/internal/observability"
	"github.com/contactdir/contactdir/internal/store"
	"github.com/contactdir/contactdir/internal/xdg"
	"github.com/contactdir/contactdir/pkg/errutil"
)

const (
	serviceName     = "contactdir"
	shutdownTimeout = 5 * time.Second
	fallbackFile    = "audit-fallback.jsonl"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the contactdir HTTP API together with the metrics and health
endpoints. Configuration comes from flags, CONTACTDIR_* environment
variables, a .env file and the config file, in that order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = func(ctx context.Context, opts store.Options) (Pool, error) {
			pool, err := store.Open(ctx, opts)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(c api.Config) (APIServer, error) {
			server, err := api.NewServer(c)
			if err != nil {
				return nil, err
			}
			return server, nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.StateDirGetter == nil {
		deps.StateDirGetter = xdg.StateDir
	}

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database url is required: set --database-url, %s or DATABASE_URL", config.EnvName("database.url"))
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, logging.WithLevel(level))

	logger.Info("starting contactdir",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := deps.PoolFactory(ctx, store.Options{
		URL:            cfg.Database.URL,
		ConnectRetries: uint64(cfg.Database.ConnectRetries), //nolint:gosec // validated non-negative
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	fallbackPath, err := auditFallbackPath(cfg, deps.StateDirGetter)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(audit.NewPostgresWriter(pool),
		audit.WithFallbackPath(fallbackPath),
		audit.WithLogger(logger),
	)
	defer func() {
		if closeErr := recorder.Close(); closeErr != nil {
			logger.Warn("error closing audit recorder", "error", closeErr)
		}
	}()
	if _, replayErr := recorder.ReplayFallback(ctx); replayErr != nil {
		errutil.LogErrorContext(ctx, logger, "audit fallback replay failed", replayErr)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping)
		auth.RegisterMetrics(obsServer.Registry())
		audit.RegisterMetrics(obsServer.Registry())
		metrics = obsServer.Metrics()
	}

	svc, err := newServices(pool, recorder, cfg, logger)
	if err != nil {
		return err
	}

	apiServer, err := deps.APIServerFactory(api.Config{
		Auth:         svc.auth,
		Businesses:   svc.businesses,
		Directory:    svc.directory,
		Contacts:     svc.contacts,
		Emails:       svc.emails,
		Metrics:      metrics,
		Logger:       logger,
		LoginPath:    cfg.Auth.LoginPath,
		CookieSecure: cfg.Session.CookieSecure,
	})
	if err != nil {
		return err
	}

	if obsServer != nil {
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	apiErrChan, err := apiServer.Start(cfg.HTTP.Addr)
	if err != nil {
		stopServers(logger, nil, obsServer)
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		svc.auth.RunSweeper(ctx, cfg.Session.SweepInterval)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("contactdir started")
	logger.Info("contactdir ready", "http_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	cancel()
	stopServers(logger, apiServer, obsServer)
	<-sweepDone

	logger.Info("shutdown complete")
	return nil
}

// services holds the wired application services.
type services struct {
	auth       *auth.Service
	businesses *business.Service
	contacts   *contact.Service
	emails     *email.Service
	directory  *directory.Service
}

func newServices(pool store.Pool, recorder *audit.Recorder, cfg *config.Config, logger *slog.Logger) (*services, error) {
	authSvc, err := auth.NewService(
		authpg.NewUserRepository(pool),
		authpg.NewSessionRepository(pool),
		recorder,
		auth.WithSessionLifetime(cfg.Session.Lifetime),
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	businesses, err := business.NewService(businesspg.NewRepository(pool), recorder)
	if err != nil {
		return nil, err
	}
	contacts, err := contact.NewService(contactpg.NewRepository(pool), recorder)
	if err != nil {
		return nil, err
	}
	emails, err := email.NewService(emailpg.NewRepository(pool), recorder)
	if err != nil {
		return nil, err
	}
	dir, err := directory.NewService(directory.ServiceConfig{
		Businesses: businesses,
		Contacts:   contacts,
		Emails:     emails,
		Transactor: store.NewTransactor(pool),
		Audit:      recorder,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return &services{
		auth:       authSvc,
		businesses: businesses,
		contacts:   contacts,
		emails:     emails,
		directory:  dir,
	}, nil
}

// auditFallbackPath returns the configured fallback file, or one in the
// state directory, making sure its directory exists.
func auditFallbackPath(cfg *config.Config, stateDir func() (string, error)) (string, error) {
	path := cfg.Audit.FallbackPath
	if path == "" {
		dir, err := stateDir()
		if err != nil {
			return "", oops.Code("AUDIT_FALLBACK_PATH_FAILED").Wrap(err)
		}
		path = filepath.Join(dir, fallbackFile)
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return path, nil
}

func stopServers(logger *slog.Logger, apiServer APIServer, obsServer ObservabilityServer) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping api server", "error", err)
		}
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
