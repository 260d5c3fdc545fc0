// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LoginAttempts counts Authenticator.Login calls by strategy and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_login_attempts_total",
		Help: "Total number of login attempts by strategy and outcome",
	},
	[]string{"strategy", "outcome"},
)

// ResolverConflicts counts find-or-create races lost on user creation.
var ResolverConflicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_identity_resolver_conflicts_total",
		Help: "Total number of external identities created concurrently by another request",
	},
	[]string{"provider"},
)

// UsersCreated counts new user records by origin ("local" or a provider name).
var UsersCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_users_created_total",
		Help: "Total number of users created by origin",
	},
	[]string{"origin"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(ResolverConflicts)
	reg.MustRegister(UsersCreated)
}

// RecordLoginAttempt increments the login counter.
func RecordLoginAttempt(strategy string, kind OutcomeKind) {
	LoginAttempts.WithLabelValues(strategy, kind.String()).Inc()
}

// RecordResolverConflict increments the resolver conflict counter.
func RecordResolverConflict(provider Provider) {
	ResolverConflicts.WithLabelValues(string(provider)).Inc()
}

// RecordUserCreated increments the user creation counter.
func RecordUserCreated(origin string) {
	UsersCreated.WithLabelValues(origin).Inc()
}
