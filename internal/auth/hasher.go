// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the fixed bcrypt work factor used for every new hash.
// It is never derived from input.
const BcryptCost = 12

// MaxPasswordLength is the longest password bcrypt accepts, in bytes.
const MaxPasswordLength = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implements PasswordHasher using bcrypt. Every call to Hash
// draws a fresh random salt; bcrypt embeds it in the encoded hash.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher using BcryptCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: BcryptCost}
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", passwordTooLong()
	}
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

func passwordTooLong() error {
	return oops.Code("AUTH_INVALID_INPUT").
		With("max", MaxPasswordLength).
		Public(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength)).
		Wrapf(ErrInvalidInput, "password too long")
}

// Verify compares password against a bcrypt hash in constant time.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}
