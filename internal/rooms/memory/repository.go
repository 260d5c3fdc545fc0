// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package memory provides an in-process rooms.Repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
)

// Repository implements rooms.Repository in memory.
type Repository struct {
	mu    sync.RWMutex
	rooms map[ulid.ULID]rooms.Room
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{rooms: make(map[ulid.ULID]rooms.Room)}
}

// Create stores a room.
func (r *Repository) Create(_ context.Context, room *rooms.Room) error {
	if room == nil {
		return oops.Code("ROOM_CREATE_FAILED").Errorf("room cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return oops.Code("ROOM_DUPLICATE").With("id", room.ID.String()).Wrap(auth.ErrDuplicate)
	}
	r.rooms[room.ID] = *room
	return nil
}

// Get retrieves a room by ID.
func (r *Repository) Get(_ context.Context, id ulid.ULID) (*rooms.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, oops.Code("ROOM_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &room, nil
}

// ListByOwner returns the rooms owned by ownerID.
func (r *Repository) ListByOwner(_ context.Context, ownerID ulid.ULID) ([]*rooms.Room, error) {
	return r.list(func(room rooms.Room) bool { return room.OwnerID == ownerID }), nil
}

// ListAll returns every room.
func (r *Repository) ListAll(_ context.Context) ([]*rooms.Room, error) {
	return r.list(func(rooms.Room) bool { return true }), nil
}

// Delete removes a room.
func (r *Repository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return oops.Code("ROOM_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.rooms, id)
	return nil
}

func (r *Repository) list(keep func(rooms.Room) bool) []*rooms.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*rooms.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if keep(room) {
			out = append(out, &room)
		}
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}
