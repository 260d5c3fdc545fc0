// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gatehouse/auth")

// Conflict re-fetch defaults.
const (
	DefaultConflictRetries = 3
	DefaultConflictBackoff = 10 * time.Millisecond
)

// Assertion is an identity a provider has already verified.
type Assertion struct {
	Provider   Provider
	ExternalID string
	Name       string
}

// IdentityResolver maps provider assertions to exactly one User.
type IdentityResolver struct {
	users   UserRepository
	refresh map[Provider]bool
	backoff func() retry.Backoff
	logger  *slog.Logger
}

// ResolverOption configures an IdentityResolver during construction.
type ResolverOption func(*IdentityResolver)

// WithNameRefresh makes repeat logins through provider overwrite the stored
// display name with the asserted one.
func WithNameRefresh(provider Provider, enabled bool) ResolverOption {
	return func(r *IdentityResolver) {
		r.refresh[provider] = enabled
	}
}

// WithConflictRetry sets how often, and how far apart, the resolver re-reads
// an identity after losing a creation race.
func WithConflictRetry(retries uint64, interval time.Duration) ResolverOption {
	return func(r *IdentityResolver) {
		r.backoff = func() retry.Backoff {
			return retry.WithMaxRetries(retries, retry.NewConstant(interval))
		}
	}
}

// WithResolverLogger sets the logger. A nil logger is ignored.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *IdentityResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewIdentityResolver creates an IdentityResolver. Name refresh is off for
// every provider unless enabled with WithNameRefresh.
func NewIdentityResolver(users UserRepository, opts ...ResolverOption) (*IdentityResolver, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	r := &IdentityResolver{
		users:   users,
		refresh: make(map[Provider]bool),
		logger:  slog.New(slog.DiscardHandler),
	}
	WithConflictRetry(DefaultConflictRetries, DefaultConflictBackoff)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RefreshesName reports whether repeat logins through p update the name.
func (r *IdentityResolver) RefreshesName(p Provider) bool {
	return r.refresh[p]
}

// Resolve finds the user linked to the assertion, creating a GUEST user on
// first sight. Concurrent first-time calls for the same identity all return
// the same record.
func (r *IdentityResolver) Resolve(ctx context.Context, a Assertion) (user *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.resolve_identity",
		trace.WithAttributes(attribute.String("auth.provider", string(a.Provider))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !a.Provider.Valid() {
		return nil, oops.Code("IDENTITY_INVALID_ASSERTION").
			With("provider", string(a.Provider)).
			Errorf("unsupported provider")
	}
	if strings.TrimSpace(a.ExternalID) == "" {
		return nil, oops.Code("IDENTITY_INVALID_ASSERTION").
			With("provider", string(a.Provider)).
			Errorf("external ID cannot be empty")
	}

	existing, err := r.users.GetByExternalID(ctx, a.Provider, a.ExternalID)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("auth.user_created", false))
		return r.refreshName(ctx, existing, a)
	case !errors.Is(err, ErrNotFound):
		return nil, r.resolveFailed(err, a, "get user by external id")
	}

	candidate, err := NewExternalUser(a.Provider, a.ExternalID)
	if err != nil {
		return nil, r.resolveFailed(err, a, "build user")
	}

	err = r.users.Create(ctx, candidate)
	if err == nil {
		span.SetAttributes(attribute.Bool("auth.user_created", true))
		RecordUserCreated(string(a.Provider))
		r.logger.InfoContext(ctx, "created user from external identity",
			"user_id", candidate.ID.String(),
			"provider", string(a.Provider))
		return candidate, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, r.resolveFailed(err, a, "create user")
	}

	// Another request created the identity between our lookup and insert.
	RecordResolverConflict(a.Provider)
	span.SetAttributes(attribute.Bool("auth.create_conflict", true))

	winner, err := r.refetch(ctx, a)
	if err != nil {
		return nil, r.resolveFailed(err, a, "re-fetch after conflict")
	}
	return winner, nil
}

func (r *IdentityResolver) refetch(ctx context.Context, a Assertion) (*User, error) {
	var winner *User
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		u, err := r.users.GetByExternalID(ctx, a.Provider, a.ExternalID)
		if errors.Is(err, ErrNotFound) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		winner = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return winner, nil
}

func (r *IdentityResolver) refreshName(ctx context.Context, user *User, a Assertion) (*User, error) {
	name := strings.TrimSpace(a.Name)
	if !r.refresh[a.Provider] || name == "" || name == user.Name {
		return user, nil
	}
	if err := r.users.UpdateName(ctx, user.ID, name); err != nil {
		return nil, r.resolveFailed(err, a, "refresh name")
	}
	user.Name = name
	return user, nil
}

func (r *IdentityResolver) resolveFailed(err error, a Assertion, operation string) error {
	return oops.Code("IDENTITY_RESOLVE_FAILED").
		With("operation", operation).
		With("provider", string(a.Provider)).
		Wrap(err)
}
