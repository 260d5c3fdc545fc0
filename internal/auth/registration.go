// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Registrar creates local password accounts.
type Registrar struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewRegistrar creates a Registrar with a no-op logger.
func NewRegistrar(users UserRepository, hasher PasswordHasher) (*Registrar, error) {
	return NewRegistrarWithLogger(users, hasher, slog.New(slog.DiscardHandler))
}

// NewRegistrarWithLogger creates a Registrar with the provided logger.
func NewRegistrarWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*Registrar, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Registrar{users: users, hasher: hasher, logger: logger}, nil
}

// Signup creates a GUEST account. The username is trimmed of surrounding
// whitespace; the password is used exactly as given.
//
// Errors wrap ErrInvalidInput for a missing username or password and
// ErrUsernameTaken when the username is already registered.
func (r *Registrar) Signup(ctx context.Context, username, password string) (*User, error) {
	return r.SignupWithRole(ctx, username, password, RoleGuest)
}

// SignupWithRole is Signup with an explicit role. It backs operator tooling
// that seeds the first ADMIN.
func (r *Registrar) SignupWithRole(ctx context.Context, username, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").
			Public("Indicate username and password").
			Wrapf(ErrInvalidInput, "username and password are required")
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(password) > MaxPasswordLength {
		return nil, passwordTooLong()
	}

	_, err := r.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, usernameTaken(username)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	hash, err := r.hasher.Hash(password)
	if errors.Is(err, ErrInvalidInput) {
		return nil, err
	}
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewLocalUser(username, hash, role)
	if err != nil {
		return nil, err
	}

	if err := r.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same name.
		if errors.Is(err, ErrDuplicate) {
			return nil, usernameTaken(username)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	RecordUserCreated("local")
	r.logger.InfoContext(ctx, "user signed up",
		"user_id", user.ID.String(),
		"role", string(user.Role))
	return user, nil
}

func usernameTaken(username string) error {
	return oops.Code("AUTH_USERNAME_TAKEN").
		With("username", username).
		Public("The username already exists").
		Wrap(ErrUsernameTaken)
}
