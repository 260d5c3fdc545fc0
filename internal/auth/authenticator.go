// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

// InvalidCredentialsReason is the only failure reason the local strategy
// reports, whichever half of the credential was wrong.
const InvalidCredentialsReason = "Invalid username or password"

// StrategyLocal is the conventional strategy name for username/password login.
const StrategyLocal = "local"

// Credential is what a client presents to a Strategy. Local strategies read
// Username and Password; external strategies read Assertion.
type Credential struct {
	Username  string
	Password  string
	Assertion *Assertion
}

// Strategy verifies one kind of credential.
type Strategy func(ctx context.Context, cred Credential) Outcome

// Strategies maps a strategy name to its verification function.
type Strategies map[string]Strategy

// Names returns the registered strategy names, sorted.
func (s Strategies) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver maps a verified provider assertion to a user.
type Resolver interface {
	Resolve(ctx context.Context, a Assertion) (*User, error)
}

// dummyPasswordHash returns a real bcrypt hash of a random secret. Unknown
// usernames are verified against it so they cost the same as a wrong password.
var dummyPasswordHash = sync.OnceValue(func() string {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret) //nolint:errcheck // crypto/rand.Read never returns an error
	hash, err := bcrypt.GenerateFromPassword(secret, BcryptCost)
	if err != nil {
		return ""
	}
	return string(hash)
})

// LocalStrategy verifies a username and password.
//
// Unknown users and wrong passwords both fail with InvalidCredentialsReason.
// Repository or hash failures are reported as errors.
func LocalStrategy(users UserRepository, hasher PasswordHasher) Strategy {
	return func(ctx context.Context, cred Credential) Outcome {
		if cred.Username == "" || cred.Password == "" {
			return OutcomeFailure(InvalidCredentialsReason)
		}

		user, err := users.GetByUsername(ctx, cred.Username)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return OutcomeError(oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by username").
				Wrap(err))
		}

		if user == nil || !user.HasPassword() {
			// Keep the timing of a wrong password.
			_, _ = hasher.Verify(cred.Password, dummyPasswordHash()) //nolint:errcheck // result is irrelevant
			return OutcomeFailure(InvalidCredentialsReason)
		}

		ok, err := hasher.Verify(cred.Password, user.PasswordHash)
		if err != nil {
			return OutcomeError(oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "verify password").
				With("user_id", user.ID.String()).
				Wrap(err))
		}
		if !ok {
			return OutcomeFailure(InvalidCredentialsReason)
		}
		return OutcomeSuccess(user)
	}
}

// ExternalStrategy accepts assertions from provider and resolves them to a
// user. Once the provider has vouched for the identity there is no failure
// path: the result is either a user or an error.
func ExternalStrategy(provider Provider, resolver Resolver) Strategy {
	return func(ctx context.Context, cred Credential) Outcome {
		if cred.Assertion == nil {
			return OutcomeError(oops.Code("AUTH_MISSING_ASSERTION").
				With("provider", string(provider)).
				Errorf("no identity assertion presented"))
		}
		if cred.Assertion.Provider != provider {
			return OutcomeError(oops.Code("AUTH_PROVIDER_MISMATCH").
				With("provider", string(provider)).
				With("asserted_provider", string(cred.Assertion.Provider)).
				Errorf("assertion issued for a different provider"))
		}

		user, err := resolver.Resolve(ctx, *cred.Assertion)
		if err != nil {
			return OutcomeError(err)
		}
		return OutcomeSuccess(user)
	}
}

// LoginResult describes a completed Login. When Reason is set the credential
// was rejected and no session exists.
type LoginResult struct {
	User    *User
	Session *WebSession
	Token   string
	Reason  string
}

// Succeeded reports whether a session was established.
func (r *LoginResult) Succeeded() bool {
	return r != nil && r.Session != nil
}

// Authenticator runs strategies and establishes a session on success.
type Authenticator struct {
	strategies Strategies
	sessions   *SessionStore
	logger     *slog.Logger
}

// NewAuthenticator creates an Authenticator with a no-op logger. The
// strategies map is copied.
func NewAuthenticator(strategies Strategies, sessions *SessionStore) (*Authenticator, error) {
	return NewAuthenticatorWithLogger(strategies, sessions, slog.New(slog.DiscardHandler))
}

// NewAuthenticatorWithLogger creates an Authenticator with the provided logger.
func NewAuthenticatorWithLogger(strategies Strategies, sessions *SessionStore, logger *slog.Logger) (*Authenticator, error) {
	if len(strategies) == 0 {
		return nil, oops.Errorf("at least one strategy is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	copied := make(Strategies, len(strategies))
	for name, s := range strategies {
		if s == nil {
			return nil, oops.With("strategy", name).Errorf("strategy is nil")
		}
		copied[name] = s
	}
	return &Authenticator{strategies: copied, sessions: sessions, logger: logger}, nil
}

// Has reports whether a strategy is registered under name.
func (a *Authenticator) Has(name string) bool {
	_, ok := a.strategies[name]
	return ok
}

// Login runs the named strategy against cred.
//
// A rejected credential returns a result with Reason set and a nil error.
// An unknown strategy, a strategy error, or a session failure returns an error.
func (a *Authenticator) Login(ctx context.Context, strategy string, cred Credential, meta SessionMeta) (result *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login",
		trace.WithAttributes(attribute.String("auth.strategy", strategy)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	verify, ok := a.strategies[strategy]
	if !ok {
		RecordLoginAttempt(strategy, KindError)
		return nil, oops.Code("AUTH_UNKNOWN_STRATEGY").
			With("strategy", strategy).
			Errorf("unknown authentication strategy")
	}

	outcome := verify(ctx, cred)
	RecordLoginAttempt(strategy, outcome.Kind)
	span.SetAttributes(attribute.String("auth.outcome", outcome.Kind.String()))

	switch outcome.Kind {
	case KindSuccess:
		if outcome.User == nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("strategy", strategy).
				Errorf("strategy succeeded without a user")
		}
	case KindFailure:
		a.logger.InfoContext(ctx, "login rejected", "strategy", strategy)
		return &LoginResult{Reason: outcome.Reason}, nil
	case KindError:
		if outcome.Err == nil {
			outcome.Err = errors.New("strategy reported an error without a cause")
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("strategy", strategy).
			Wrap(outcome.Err)
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("strategy", strategy).
			With("kind", int(outcome.Kind)).
			Errorf("strategy returned an invalid outcome")
	}

	token, session, err := a.sessions.Establish(ctx, outcome.User, meta)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "login succeeded",
		"strategy", strategy,
		"user_id", outcome.User.ID.String(),
		"session_id", session.ID.String())

	return &LoginResult{User: outcome.User, Session: session, Token: token}, nil
}

// Logout destroys the session behind token.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	return a.sessions.Destroy(ctx, token)
}
