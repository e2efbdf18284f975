// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package store manages the PostgreSQL connection and schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection retry parameters.
const (
	DefaultConnectRetries = 5
	defaultBaseDelay      = 200 * time.Millisecond
	defaultMaxDelay       = 5 * time.Second
)

// ConnectOptions controls how Connect retries.
type ConnectOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     *slog.Logger
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Connect opens a pool for databaseURL and pings it, retrying with capped
// exponential backoff while the database is unreachable.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	return withRetry(ctx, opts, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by withRetry
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err //nolint:wrapcheck // wrapped by withRetry
		}
		return pool, nil
	})
}

// withRetry calls attempt until it succeeds, ctx ends, or retries run out.
func withRetry[T any](ctx context.Context, opts ConnectOptions, attempt func(context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	backoff := retry.NewExponential(opts.BaseDelay)
	backoff = retry.WithCappedDuration(opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(opts.MaxRetries, backoff)

	var (
		result   T
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		v, err := attempt(ctx)
		if err != nil {
			opts.Logger.WarnContext(ctx, "database connection attempt failed",
				"attempt", attempts,
				"error", err)
			return retry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			With("attempts", attempts).
			Wrap(err)
	}
	return result, nil
}
