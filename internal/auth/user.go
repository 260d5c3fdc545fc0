// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxUsernameLength bounds the username column.
const MaxUsernameLength = 64

// Role is the coarse authorization level of a user.
type Role string

// Supported roles.
const (
	RoleGuest Role = "GUEST"
	RoleAdmin Role = "ADMIN"
)

// ParseRole converts a stored role string. Unknown values are rejected rather
// than silently mapped to a default.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGuest, RoleAdmin:
		return Role(s), nil
	default:
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
}

// Provider names an external identity provider.
type Provider string

// Supported providers.
const (
	ProviderSlack   Provider = "slack"
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// Providers lists every supported provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderSlack, ProviderGoogle, ProviderOutlook}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderSlack, ProviderGoogle, ProviderOutlook:
		return true
	default:
		return false
	}
}

// User is the single identity record shared by every strategy.
type User struct {
	ID           ulid.ULID
	Name         string
	Username     string
	PasswordHash string
	ExternalIDs  map[Provider]string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExternalID returns the user's external ID for p, or "" when unlinked.
func (u *User) ExternalID(p Provider) string {
	if u.ExternalIDs == nil {
		return ""
	}
	return u.ExternalIDs[p]
}

// HasPassword reports whether the user can sign in with the local strategy.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Clone returns a deep copy so callers can't mutate repository state.
func (u *User) Clone() *User {
	c := *u
	if u.ExternalIDs != nil {
		c.ExternalIDs = make(map[Provider]string, len(u.ExternalIDs))
		for k, v := range u.ExternalIDs {
			c.ExternalIDs[k] = v
		}
	}
	return &c
}

// NewLocalUser creates a password account. passwordHash must already be hashed.
func NewLocalUser(username, passwordHash string, role Role) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").Wrapf(ErrInvalidInput, "password hash cannot be empty")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewExternalUser creates a GUEST account linked only to the given provider
// identity. No username or password is set.
func NewExternalUser(provider Provider, externalID string) (*User, error) {
	if !provider.Valid() {
		return nil, oops.Code("AUTH_INVALID_PROVIDER").With("provider", string(provider)).Errorf("unsupported provider")
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").With("provider", string(provider)).Wrapf(ErrInvalidInput, "external ID cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:          ulid.Make(),
		ExternalIDs: map[Provider]string{provider: externalID},
		Role:        RoleGuest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateUsername rejects empty, whitespace-only and oversized usernames.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return oops.Code("AUTH_INVALID_INPUT").
			Public("Indicate username and password").
			Wrapf(ErrInvalidInput, "username cannot be empty")
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("max", MaxUsernameLength).
			Public(fmt.Sprintf("Username must be at most %d characters", MaxUsernameLength)).
			Wrapf(ErrInvalidInput, "username too long")
	}
	return nil
}

// UserRepository manages user persistence.
//
// Implementations must enforce uniqueness of Username and of every provider
// external ID, returning an error wrapping ErrDuplicate on conflict.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByExternalID retrieves the user linked to the provider identity.
	GetByExternalID(ctx context.Context, provider Provider, externalID string) (*User, error)

	// UpdateName sets the display name and bumps UpdatedAt.
	UpdateName(ctx context.Context, id ulid.ULID, name string) error
}
