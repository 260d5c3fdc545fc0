// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/access"
	"github.com/gatehouse/gatehouse/internal/auth"
	authmem "github.com/gatehouse/gatehouse/internal/auth/memory"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/rooms"
	roommem "github.com/gatehouse/gatehouse/internal/rooms/memory"
	roompg "github.com/gatehouse/gatehouse/internal/rooms/postgres"
	"github.com/gatehouse/gatehouse/internal/sso"
	"github.com/gatehouse/gatehouse/internal/web"
)

// stores holds the repositories for the configured driver.
type stores struct {
	users    auth.UserRepository
	sessions auth.WebSessionRepository
	rooms    rooms.Repository
	ping     func(ctx context.Context) error
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, deps *Deps) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; all data is lost on exit")
		return &stores{
			users:    authmem.NewUserRepository(),
			sessions: authmem.NewWebSessionRepository(),
			rooms:    roommem.NewRepository(),
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	case config.DriverPostgres:
		pool, err := deps.PoolFactory(ctx, cfg.Database.URL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		return &stores{
			users:    authpg.NewUserRepository(pool),
			sessions: authpg.NewWebSessionRepository(pool),
			rooms:    roompg.NewRepository(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "store.driver").Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// gateway is the assembled application.
type gateway struct {
	sessions *auth.SessionStore
	server   *web.Server
}

// readiness reports the gateway ready once the HTTP listener is up and the
// store answers.
func readiness(listening *atomic.Bool, st *stores) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		if !listening.Load() {
			return oops.Code("NOT_LISTENING").Public("http listener not started").Errorf("http listener not started")
		}
		if err := st.ping(ctx); err != nil {
			return oops.Code("STORE_UNAVAILABLE").Public("store unreachable").Wrap(err)
		}
		return nil
	}
}

func buildGateway(ctx context.Context, cfg *config.Config, deps *Deps, st *stores, logger *slog.Logger) (*gateway, error) {
	hasher := auth.NewBcryptHasher()

	sessions, err := auth.NewSessionStoreWithLogger(st.users, st.sessions, cfg.Server.SessionTTL, logger)
	if err != nil {
		return nil, err
	}
	registrar, err := auth.NewRegistrarWithLogger(st.users, hasher, logger)
	if err != nil {
		return nil, err
	}

	opts := []auth.ResolverOption{auth.WithResolverLogger(logger)}
	for _, p := range auth.Providers() {
		opts = append(opts, auth.WithNameRefresh(p, cfg.Providers.Provider(p).RefreshName))
	}
	resolver, err := auth.NewIdentityResolver(st.users, opts...)
	if err != nil {
		return nil, err
	}

	strategies := auth.Strategies{auth.StrategyLocal: auth.LocalStrategy(st.users, hasher)}
	var providers []sso.Provider
	for _, p := range cfg.Providers.Enabled() {
		provider, err := buildProvider(ctx, cfg, deps, p)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
		strategies[string(p)] = auth.ExternalStrategy(p, resolver)
		logger.Info("provider enabled",
			"provider", string(p),
			"refresh_name", resolver.RefreshesName(p))
	}

	authn, err := auth.NewAuthenticatorWithLogger(strategies, sessions, logger)
	if err != nil {
		return nil, err
	}
	gate, err := access.NewGateWithLogger(logger)
	if err != nil {
		return nil, err
	}
	roomSvc, err := rooms.NewServiceWithLogger(st.rooms, logger)
	if err != nil {
		return nil, err
	}

	srv, err := web.NewServer(web.Options{
		Authenticator:   authn,
		Registrar:       registrar,
		Sessions:        sessions,
		Gate:            gate,
		Rooms:           roomSvc,
		Providers:       sso.NewRegistry(providers...),
		CookieName:      cfg.Server.CookieName,
		CookieSecure:    cfg.Server.CookieSecure,
		ProviderTimeout: cfg.Providers.Timeout,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	return &gateway{sessions: sessions, server: srv}, nil
}

// buildProvider layers the configured settings over the provider's preset.
// OIDC discovery is bounded by the provider timeout.
func buildProvider(ctx context.Context, cfg *config.Config, deps *Deps, p auth.Provider) (sso.Provider, error) {
	preset, ok := sso.Preset(p)
	if !ok {
		return nil, oops.Code("CONFIG_INVALID").With("provider", string(p)).Errorf("no preset for provider")
	}
	pc := cfg.Providers.Provider(p)
	sc := sso.Config{
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  cfg.CallbackURL(p),
		Scopes:       pc.Scopes,
		IssuerURL:    pc.IssuerURL,
		AuthURL:      pc.AuthURL,
		TokenURL:     pc.TokenURL,
		UserInfoURL:  pc.UserInfoURL,
	}.WithDefaults(preset)

	ctx, cancel := context.WithTimeout(ctx, cfg.Providers.Timeout)
	defer cancel()
	provider, err := deps.ProviderFactory(ctx, p, sc)
	if err != nil {
		return nil, oops.Code("PROVIDER_INIT_FAILED").With("provider", string(p)).Wrap(err)
	}
	return provider, nil
}
