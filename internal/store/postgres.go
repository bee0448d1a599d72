// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

// Package store provides the PostgreSQL connection pool, schema migrations
// and transaction plumbing shared by the directory repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Pool is the query surface repositories depend on. *pgxpool.Pool, pgx.Tx
// and pgxmock.PgxPoolIface all satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Default connection settings.
const (
	DefaultConnectRetries = 5
	DefaultRetryBase      = 500 * time.Millisecond
)

// Options configures Open.
type Options struct {
	URL            string
	ConnectRetries uint64
	RetryBase      time.Duration
	MaxConns       int32
}

// Open creates a pgx pool and waits until the database answers a ping,
// retrying with exponential backoff.
func Open(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	if opts.URL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	retries := opts.ConnectRetries
	if retries == 0 {
		retries = DefaultConnectRetries
	}
	base := opts.RetryBase
	if base <= 0 {
		base = DefaultRetryBase
	}

	backoff := retry.WithMaxRetries(retries, retry.NewExponential(base))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.WarnContext(ctx, "database not reachable yet", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}

	return pool, nil
}
