// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactdir Contributors

package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/contactdir/contactdir/internal/api"
	"github.com/contactdir/contactdir/internal/observability"
	"github.com/contactdir/contactdir/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory connects to the database.
	// Default: store.Open
	PoolFactory func(ctx context.Context, opts store.Options) (Pool, error)

	// APIServerFactory creates the HTTP API server.
	// Default: api.NewServer
	APIServerFactory func(cfg api.Config) (APIServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// StateDirGetter returns the directory holding the audit fallback file.
	// Default: xdg.StateDir
	StateDirGetter func() (string, error)
}

// Pool is the database handle serve needs: queries for the repositories,
// Ping for readiness and Close on shutdown.
type Pool interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// APIServer interface wraps the methods used from api.Server.
type APIServer interface {
	Start(addr string) (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
	Metrics() *observability.Metrics
}
