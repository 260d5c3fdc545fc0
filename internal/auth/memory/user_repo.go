// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package memory provides in-process implementations of the auth
// repositories. They enforce the same uniqueness rules as the PostgreSQL
// schema and are safe for concurrent use.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

type externalKey struct {
	provider auth.Provider
	id       string
}

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.User
	byUsername map[string]ulid.ULID
	byExternal map[externalKey]ulid.ULID
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[ulid.ULID]*auth.User),
		byUsername: make(map[string]ulid.ULID),
		byExternal: make(map[externalKey]ulid.ULID),
	}
}

// Create stores a new user. The check of every unique key and the insert
// happen under one lock.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	if user == nil {
		return oops.Code("USER_CREATE_FAILED").Errorf("user cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; ok {
		return oops.Code("USER_DUPLICATE").With("id", user.ID.String()).Wrap(auth.ErrDuplicate)
	}
	if user.Username != "" {
		if _, ok := r.byUsername[strings.ToLower(user.Username)]; ok {
			return oops.Code("USER_DUPLICATE").With("username", user.Username).Wrap(auth.ErrDuplicate)
		}
	}
	for p, id := range user.ExternalIDs {
		if id == "" {
			continue
		}
		if _, ok := r.byExternal[externalKey{p, id}]; ok {
			return oops.Code("USER_DUPLICATE").With("provider", string(p)).Wrap(auth.ErrDuplicate)
		}
	}

	stored := user.Clone()
	r.byID[stored.ID] = stored
	if stored.Username != "" {
		r.byUsername[strings.ToLower(stored.Username)] = stored.ID
	}
	for p, id := range stored.ExternalIDs {
		if id != "" {
			r.byExternal[externalKey{p, id}] = stored.ID
		}
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return u.Clone(), nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	return r.byID[id].Clone(), nil
}

// GetByExternalID retrieves the user linked to a provider identity.
func (r *UserRepository) GetByExternalID(_ context.Context, provider auth.Provider, externalID string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalKey{provider, externalID}]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("provider", string(provider)).Wrap(auth.ErrNotFound)
	}
	return r.byID[id].Clone(), nil
}

// UpdateName sets the display name of a user.
func (r *UserRepository) UpdateName(_ context.Context, id ulid.ULID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	u.Name = name
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a user. It is not part of auth.UserRepository; the core
// never deletes users, but operators and tests do.
func (r *UserRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byID, id)
	if u.Username != "" {
		delete(r.byUsername, strings.ToLower(u.Username))
	}
	for p, ext := range u.ExternalIDs {
		delete(r.byExternal, externalKey{p, ext})
	}
	return nil
}

// Count returns the number of stored users.
func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ auth.UserRepository = (*UserRepository)(nil)
