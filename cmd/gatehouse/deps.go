// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"os"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/observability"
	roompg "github.com/gatehouse/gatehouse/internal/rooms/postgres"
	"github.com/gatehouse/gatehouse/internal/sso"
	"github.com/gatehouse/gatehouse/internal/store"
)

// Deps contains injectable dependencies for the gatehouse commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory connects to PostgreSQL.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string) (Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, registrars ...observability.MetricsRegistrar) ObservabilityServer

	// ProviderFactory builds one external login provider.
	// Default: sso.New
	ProviderFactory func(ctx context.Context, name auth.Provider, cfg sso.Config) (sso.Provider, error)

	// Getenv reads the environment.
	// Default: os.Getenv
	Getenv func(string) string

	// Listening, when set, is called with the bound HTTP address once serve
	// accepts connections.
	Listening func(addr string)
}

// withDefaults returns a copy of d with every nil field filled in.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string) (Pool, error) {
			pool, err := store.Open(ctx, url)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.MetricsRegistrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	if out.ProviderFactory == nil {
		out.ProviderFactory = sso.New
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return &out
}

// Pool is the database handle the repositories share.
type Pool interface {
	authpg.DB
	roompg.DB
	Ping(ctx context.Context) error
	Close()
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
