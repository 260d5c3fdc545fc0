// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at`

// WebSessionRepository implements auth.WebSessionRepository using PostgreSQL.
type WebSessionRepository struct {
	db DB
}

// NewWebSessionRepository creates a new WebSessionRepository.
func NewWebSessionRepository(db DB) *WebSessionRepository {
	return &WebSessionRepository{db: db}
}

// Create stores a new web session.
func (r *WebSessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO web_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		session.ID.String(),
		session.UserID.String(),
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastSeenAt,
	)
	if err != nil {
		return oops.Code("WEB_SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *WebSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM web_sessions WHERE token_hash = $1`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("WEB_SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("WEB_SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *WebSessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE web_sessions SET last_seen_at = $2
		WHERE id = $1
	`, id.String(), lastSeen)
	if err != nil {
		return oops.Code("WEB_SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "update last_seen_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("WEB_SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (r *WebSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("WEB_SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("WEB_SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all sessions for a user.
func (r *WebSessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("WEB_SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete web_sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	// No rows deleted is a valid state.
	return nil
}

// DeleteExpired removes all sessions expired at now and returns the count.
func (r *WebSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("WEB_SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a WebSession.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.WebSession, error) {
	var (
		idStr     string
		userIDStr string
		s         auth.WebSession
	)

	err := row.Scan(&idStr, &userIDStr, &s.TokenHash, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt, &s.LastSeenAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	if s.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("WEB_SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if s.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("WEB_SESSION_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	return &s, nil
}

var _ auth.WebSessionRepository = (*WebSessionRepository)(nil)
