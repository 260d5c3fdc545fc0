// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32             // 32 bytes = 64 hex chars
	DefaultSessionTTL = 24 * time.Hour // used when no TTL is configured
)

// WebSession is the server-held half of a browser session. The cookie holds
// the plaintext token; only its hash is stored here.
type WebSession struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	TokenHash  string
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewWebSession creates a validated WebSession instance.
// UserAgent and IPAddress are optional and may be empty.
func NewWebSession(userID ulid.ULID, tokenHash, userAgent, ipAddress string, expiresAt time.Time) (*WebSession, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now().UTC()
	return &WebSession{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *WebSession) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// WebSessionRepository manages web session persistence.
type WebSessionRepository interface {
	// Create stores a new web session.
	Create(ctx context.Context, session *WebSession) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*WebSession, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
