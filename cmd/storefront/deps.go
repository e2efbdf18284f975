// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package main

import (
	"context"
	"io"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/fashionhall/storefront/internal/config"
	"github.com/fashionhall/storefront/internal/observability"
	"github.com/fashionhall/storefront/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Getenv reads secrets from the environment.
	// Default: os.Getenv
	Getenv func(string) string

	// PoolFactory opens the PostgreSQL pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string, opts store.ConnectOptions) (Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// LogOutput receives structured logs.
	// Default: os.Stderr
	LogOutput io.Writer

	// Started is called with the API address once it accepts connections.
	// Default: no-op
	Started func(addr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string, opts store.ConnectOptions) (Pool, error) {
			pool, err := store.Connect(ctx, url, opts)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigratorFactory
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	if out.Started == nil {
		out.Started = func(string) {}
	}
	return &out
}

// MigrateDeps contains injectable dependencies for the migrate command.
// All fields with nil values will use their default implementations.
type MigrateDeps struct {
	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// DatabaseURLGetter returns the database URL.
	// Default: reads from DATABASE_URL environment variable
	DatabaseURLGetter func() string
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigratorFactory
	}
	if out.DatabaseURLGetter == nil {
		out.DatabaseURLGetter = func() string { return os.Getenv(config.EnvDatabaseURL) }
	}
	return &out
}

func defaultMigratorFactory(url string) (Migrator, error) {
	m, err := store.NewMigrator(url)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Pool wraps the methods used from pgxpool.Pool.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
