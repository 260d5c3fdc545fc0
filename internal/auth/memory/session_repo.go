// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// WebSessionRepository implements auth.WebSessionRepository in memory.
type WebSessionRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.WebSession
	byToken map[string]ulid.ULID
}

// NewWebSessionRepository creates an empty WebSessionRepository.
func NewWebSessionRepository() *WebSessionRepository {
	return &WebSessionRepository{
		byID:    make(map[ulid.ULID]*auth.WebSession),
		byToken: make(map[string]ulid.ULID),
	}
}

// Create stores a new web session.
func (r *WebSessionRepository) Create(_ context.Context, session *auth.WebSession) error {
	if session == nil {
		return oops.Code("WEB_SESSION_CREATE_FAILED").Errorf("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[session.TokenHash]; ok {
		return oops.Code("WEB_SESSION_CREATE_FAILED").Wrap(auth.ErrDuplicate)
	}
	stored := *session
	r.byID[stored.ID] = &stored
	r.byToken[stored.TokenHash] = stored.ID
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *WebSessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[tokenHash]
	if !ok {
		return nil, oops.Code("WEB_SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	s := *r.byID[id]
	return &s, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *WebSessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return oops.Code("WEB_SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	s.LastSeenAt = lastSeen
	return nil
}

// Delete removes a session by ID.
func (r *WebSessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return oops.Code("WEB_SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byToken, s.TokenHash)
	delete(r.byID, id)
	return nil
}

// DeleteByUser removes all sessions for a user.
func (r *WebSessionRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.byID {
		if s.UserID == userID {
			delete(r.byToken, s.TokenHash)
			delete(r.byID, id)
		}
	}
	return nil
}

// DeleteExpired removes all sessions expired at now.
func (r *WebSessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.byID {
		if s.IsExpiredAt(now) {
			delete(r.byToken, s.TokenHash)
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions.
func (r *WebSessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ auth.WebSessionRepository = (*WebSessionRepository)(nil)
