// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// externalColumns whitelists the column holding each provider's external ID.
var externalColumns = map[auth.Provider]string{
	auth.ProviderSlack:   "slack_id",
	auth.ProviderGoogle:  "google_id",
	auth.ProviderOutlook: "outlook_id",
}

const userColumns = `id, name, username, password_hash, slack_id, google_id, outlook_id, role, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. Unique index violations are reported as
// auth.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID.String(),
		user.Name,
		nullable(user.Username),
		nullable(user.PasswordHash),
		nullable(user.ExternalID(auth.ProviderSlack)),
		nullable(user.ExternalID(auth.ProviderGoogle)),
		nullable(user.ExternalID(auth.ProviderOutlook)),
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("USER_DUPLICATE").
			With("id", user.ID.String()).
			Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByExternalID retrieves the user linked to a provider identity.
func (r *UserRepository) GetByExternalID(ctx context.Context, provider auth.Provider, externalID string) (*auth.User, error) {
	column, ok := externalColumns[provider]
	if !ok {
		return nil, oops.Code("AUTH_INVALID_PROVIDER").
			With("provider", string(provider)).
			Errorf("unsupported provider")
	}

	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column), externalID)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("provider", string(provider)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EXTERNAL_ID_FAILED").
			With("operation", "get user by external id").
			With("provider", string(provider)).
			Wrap(err)
	}
	return user, nil
}

// UpdateName sets the display name of a user.
func (r *UserRepository) UpdateName(ctx context.Context, id ulid.ULID, name string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET name = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), name, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_NAME_FAILED").
			With("operation", "update name").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr        string
		name         string
		username     *string
		passwordHash *string
		slackID      *string
		googleID     *string
		outlookID    *string
		roleStr      string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&idStr,
		&name,
		&username,
		&passwordHash,
		&slackID,
		&googleID,
		&outlookID,
		&roleStr,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT").With("id", idStr).Wrap(err)
	}
	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT").With("id", idStr).Wrap(err)
	}

	external := make(map[auth.Provider]string, len(externalColumns))
	for p, v := range map[auth.Provider]*string{
		auth.ProviderSlack:   slackID,
		auth.ProviderGoogle:  googleID,
		auth.ProviderOutlook: outlookID,
	} {
		if v != nil && *v != "" {
			external[p] = *v
		}
	}

	return &auth.User{
		ID:           id,
		Name:         name,
		Username:     deref(username),
		PasswordHash: deref(passwordHash),
		ExternalIDs:  external,
		Role:         role,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
