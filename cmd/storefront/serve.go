// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/auth/memstore"
	"github.com/fashionhall/storefront/internal/auth/postgres"
	"github.com/fashionhall/storefront/internal/config"
	"github.com/fashionhall/storefront/internal/httpapi"
	"github.com/fashionhall/storefront/internal/logging"
	"github.com/fashionhall/storefront/internal/observability"
	"github.com/fashionhall/storefront/internal/store"
)

const serviceName = "storefront"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP API serving registration, login, logout and
session lookup. Secrets are read from STOREFRONT_JWT_SECRET and DATABASE_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().Bool("migrate", false, "apply pending migrations before serving (postgres store)")

	return cmd
}

// userStore is the selected user repository and its lifecycle hooks.
type userStore struct {
	repo    auth.UserRepository
	healthy func() bool
	close   func()
}

func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	configPath, err := resolveConfigPath(cmd, deps.Getenv)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath, cmd.Flags(), deps.Getenv)
	if err != nil {
		return err //nolint:wrapcheck // config errors carry their own codes
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err //nolint:wrapcheck // already validated
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, deps.LogOutput)
	slog.SetDefault(logger)

	cmd.Println(figure.NewFigure(serviceName, "cybermedium", true).String())

	if cfg.UsesDevSecret() {
		logger.Warn("signing sessions with the development secret", "env_var", config.EnvJWTSecret)
	}

	migrate, err := cmd.Flags().GetBool("migrate")
	if err != nil {
		return oops.With("flag", "migrate").Wrap(err)
	}
	users, err := openUserStore(ctx, cfg, migrate, deps, logger)
	if err != nil {
		return err
	}
	defer users.close()

	hasher, err := auth.NewHasher(auth.HashAlgorithm(cfg.Auth.HashAlgorithm), cfg.Auth.BcryptCost)
	if err != nil {
		return oops.With("operation", "create password hasher").Wrap(err)
	}
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret))
	if err != nil {
		return oops.With("operation", "create token service").Wrap(err)
	}
	svc, err := auth.NewService(users.repo, hasher, tokens, auth.WithLogger(logger))
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			return ready.Load() && users.healthy()
		})
		metrics = obsServer.Metrics()
	}

	handler, err := httpapi.NewHandler(httpapi.Config{
		Auth:           svc,
		Cookie:         auth.NewSessionCookie(cfg.Env == config.EnvProduction),
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: cfg.HTTP.CORS.AllowedOrigins,
	})
	if err != nil {
		return oops.With("operation", "build api handler").Wrap(err)
	}
	api := httpapi.NewServer(cfg.HTTP.Addr, handler, httpapi.ServerOptions{
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
		Logger:       logger,
	})

	shutdownTimeout := cfg.HTTP.ShutdownTimeout.Std()

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	apiErrCh, err := api.Start()
	if err != nil {
		if obsServer != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop observability server during cleanup", "error", stopErr)
			}
		}
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	ready.Store(true)
	logger.Info("storefront started",
		"addr", api.Addr(),
		"env", cfg.Env,
		"store", cfg.Store.Driver,
	)
	deps.Started(api.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	ready.Store(false)
	logger.Info("shutting down", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := api.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return oops.With("operation", "serve").Wrap(cause)
	}
	return nil
}

// openUserStore selects the repository named by cfg.Store.Driver. The
// postgres store connects with retries and optionally migrates first.
func openUserStore(ctx context.Context, cfg *config.Config, migrate bool, deps *ServeDeps, logger *slog.Logger) (*userStore, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("using the in-memory user store; accounts are lost on restart")
		return &userStore{
			repo:    memstore.NewUserRepository(),
			healthy: func() bool { return true },
			close:   func() {},
		}, nil
	}

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL, store.ConnectOptions{
		MaxRetries: uint64(cfg.Store.ConnectRetries), //nolint:gosec // validated non-negative
		Logger:     logger,
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	if migrate {
		if err := runMigrationsUp(deps.MigratorFactory, cfg.DatabaseURL, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &userStore{
		repo: postgres.NewUserRepository(pool),
		healthy: func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		},
		close: pool.Close,
	}, nil
}

func runMigrationsUp(factory func(string) (Migrator, error), databaseURL string, logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.With("operation", "apply migrations").Wrap(err)
	}
	v, dirty, err := m.Version()
	if err != nil {
		return oops.With("operation", "read schema version").Wrap(err)
	}
	logger.Info("schema migrated", "version", v, "dirty", dirty)
	return nil
}

// monitorServerErrors cancels ctx with the server's error if it fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
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
			cancel(oops.With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}
