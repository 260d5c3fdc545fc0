// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a write would violate a
// uniqueness constraint (username or a provider external ID).
var ErrDuplicate = errors.New("duplicate")

// ErrInvalidInput is wrapped by validation failures on user-supplied input.
var ErrInvalidInput = errors.New("invalid input")

// ErrUsernameTaken is returned by Registrar.Signup for an existing username.
var ErrUsernameTaken = errors.New("username already exists")
