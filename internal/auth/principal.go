// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Principal is the authenticated identity restored for one request.
type Principal struct {
	UserID    ulid.ULID
	SessionID ulid.ULID
	Username  string
	Name      string
	Role      Role
}

// DisplayName picks the friendliest label available for the principal.
func (p *Principal) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Username != "":
		return p.Username
	default:
		return p.UserID.String()
	}
}

// SessionMeta is request metadata recorded alongside a new session.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// SessionStore binds authenticated users to server-side sessions.
//
// A session records only the user ID. Restoring a session re-reads the user
// but never re-verifies a password or provider assertion.
type SessionStore struct {
	users    UserRepository
	sessions WebSessionRepository
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionStore creates a SessionStore with a no-op logger.
// A non-positive ttl selects DefaultSessionTTL.
func NewSessionStore(users UserRepository, sessions WebSessionRepository, ttl time.Duration) (*SessionStore, error) {
	return NewSessionStoreWithLogger(users, sessions, ttl, slog.New(slog.DiscardHandler))
}

// NewSessionStoreWithLogger creates a SessionStore with the provided logger.
func NewSessionStoreWithLogger(users UserRepository, sessions WebSessionRepository, ttl time.Duration, logger *slog.Logger) (*SessionStore, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{users: users, sessions: sessions, ttl: ttl, logger: logger}, nil
}

// TTL returns the lifetime given to new sessions.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Establish creates a session for user and returns the plaintext token for
// the cookie.
func (s *SessionStore) Establish(ctx context.Context, user *User, meta SessionMeta) (string, *WebSession, error) {
	if user == nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").Errorf("user is required")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewWebSession(user.ID, tokenHash, meta.UserAgent, meta.IPAddress, time.Now().UTC().Add(s.ttl))
	if err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "create web session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return token, session, nil
}

// Restore resolves a cookie token to its Principal.
//
// Returns (nil, nil) when the request is simply not authenticated: no token,
// unknown token, expired session, or a session whose user no longer exists.
// An error is returned only when storage fails.
func (s *SessionStore) Restore(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_RESTORE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := time.Now().UTC()
	if session.IsExpiredAt(now) {
		s.discard(ctx, session, "expired")
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, ErrNotFound) {
		s.discard(ctx, session, "user missing")
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_RESTORE_FAILED").
			With("operation", "get user by id").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update session last seen",
			"session_id", session.ID.String(),
			"error", err)
	}

	return &Principal{
		UserID:    user.ID,
		SessionID: session.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
	}, nil
}

// Destroy deletes the session behind token. Unknown tokens are not an error.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// Sweep deletes every expired session and returns how many were removed.
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}

func (s *SessionStore) discard(ctx context.Context, session *WebSession, reason string) {
	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to discard stale session",
			"session_id", session.ID.String(),
			"reason", reason,
			"error", err)
	}
}
