// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/access"
	"github.com/gatehouse/gatehouse/internal/auth"
	authmem "github.com/gatehouse/gatehouse/internal/auth/memory"
	"github.com/gatehouse/gatehouse/internal/rooms"
	roommem "github.com/gatehouse/gatehouse/internal/rooms/memory"
	"github.com/gatehouse/gatehouse/internal/sso"
	"github.com/gatehouse/gatehouse/internal/web"
)

func validOptions(t *testing.T) web.Options {
	t.Helper()
	users := authmem.NewUserRepository()
	hasher := auth.NewBcryptHasher()
	store, err := auth.NewSessionStore(users, authmem.NewWebSessionRepository(), 0)
	require.NoError(t, err)
	registrar, err := auth.NewRegistrar(users, hasher)
	require.NoError(t, err)
	authn, err := auth.NewAuthenticator(auth.Strategies{
		auth.StrategyLocal: auth.LocalStrategy(users, hasher),
	}, store)
	require.NoError(t, err)
	roomSvc, err := rooms.NewService(roommem.NewRepository())
	require.NoError(t, err)

	return web.Options{
		Authenticator: authn,
		Registrar:     registrar,
		Sessions:      store,
		Gate:          access.NewGate(),
		Rooms:         roomSvc,
		CookieName:    "gatehouse_session",
	}
}

func TestNewServer(t *testing.T) {
	t.Run("accepts a nil provider registry", func(t *testing.T) {
		srv, err := web.NewServer(validOptions(t))
		require.NoError(t, err)
		assert.NotNil(t, srv.Handler())
	})

	missing := map[string]func(*web.Options){
		"authenticator": func(o *web.Options) { o.Authenticator = nil },
		"registrar":     func(o *web.Options) { o.Registrar = nil },
		"sessions":      func(o *web.Options) { o.Sessions = nil },
		"gate":          func(o *web.Options) { o.Gate = nil },
		"rooms":         func(o *web.Options) { o.Rooms = nil },
		"cookie name":   func(o *web.Options) { o.CookieName = "" },
	}
	for name, mutate := range missing {
		t.Run("rejects missing "+name, func(t *testing.T) {
			opts := validOptions(t)
			mutate(&opts)
			_, err := web.NewServer(opts)
			assert.Error(t, err)
		})
	}

	t.Run("rejects a provider without a strategy", func(t *testing.T) {
		opts := validOptions(t)
		opts.Providers = sso.NewRegistry(&fakeProvider{name: auth.ProviderGoogle})
		_, err := web.NewServer(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no authentication strategy")
	})
}
