// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres implements rooms.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const roomColumns = `id, name, description, owner_id, created_at`

// Repository implements rooms.Repository using PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository creates a new Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Create stores a room.
func (r *Repository) Create(ctx context.Context, room *rooms.Room) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, room.ID.String(), room.Name, room.Description, room.OwnerID.String(), room.CreatedAt)
	if err != nil {
		return oops.Code("ROOM_CREATE_FAILED").
			With("operation", "insert room").
			With("id", room.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a room by ID.
func (r *Repository) Get(ctx context.Context, id ulid.ULID) (*rooms.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id.String())
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROOM_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROOM_GET_FAILED").
			With("operation", "get room").
			With("id", id.String()).
			Wrap(err)
	}
	return room, nil
}

// ListByOwner returns the rooms owned by ownerID.
func (r *Repository) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*rooms.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE owner_id = $1 ORDER BY id`, ownerID.String())
	if err != nil {
		return nil, oops.Code("ROOM_LIST_FAILED").
			With("operation", "list rooms by owner").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return collectRooms(rows)
}

// ListAll returns every room.
func (r *Repository) ListAll(ctx context.Context) ([]*rooms.Room, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id`)
	if err != nil {
		return nil, oops.Code("ROOM_LIST_FAILED").
			With("operation", "list all rooms").
			Wrap(err)
	}
	return collectRooms(rows)
}

// Delete removes a room.
func (r *Repository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ROOM_DELETE_FAILED").
			With("operation", "delete room").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ROOM_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func collectRooms(rows pgx.Rows) ([]*rooms.Room, error) {
	defer rows.Close()
	var out []*rooms.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, oops.Code("ROOM_LIST_FAILED").With("operation", "scan room").Wrap(err)
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROOM_LIST_FAILED").With("operation", "iterate rooms").Wrap(err)
	}
	return out, nil
}

func scanRoom(row pgx.Row) (*rooms.Room, error) {
	var (
		idStr, ownerStr string
		room            rooms.Room
		createdAt       time.Time
	)
	if err := row.Scan(&idStr, &room.Name, &room.Description, &ownerStr, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if room.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("ROOM_CORRUPT").With("id", idStr).Wrap(err)
	}
	if room.OwnerID, err = ulid.Parse(ownerStr); err != nil {
		return nil, oops.Code("ROOM_CORRUPT").With("owner_id", ownerStr).Wrap(err)
	}
	room.CreatedAt = createdAt
	return &room, nil
}
