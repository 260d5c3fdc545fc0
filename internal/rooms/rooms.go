// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package rooms manages the user-owned records behind the /rooms routes.
//
// Rooms exist to give the access gate something to protect: the only field
// it reads is OwnerID.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Field limits.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1000
)

// Room is a resource owned by one user.
type Room struct {
	ID          ulid.ULID
	Name        string
	Description string
	OwnerID     ulid.ULID
	CreatedAt   time.Time
}

// NewRoom creates a room owned by ownerID. Name and description are trimmed.
func NewRoom(ownerID ulid.ULID, name, description string) (*Room, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if ownerID.IsZero() {
		return nil, oops.Code("ROOM_INVALID_INPUT").Wrapf(auth.ErrInvalidInput, "owner ID cannot be empty")
	}
	if name == "" {
		return nil, oops.Code("ROOM_INVALID_INPUT").
			Public("Indicate a room name").
			Wrapf(auth.ErrInvalidInput, "room name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return nil, oops.Code("ROOM_INVALID_INPUT").
			Public(fmt.Sprintf("Room name must be at most %d characters", MaxNameLength)).
			Wrapf(auth.ErrInvalidInput, "room name too long")
	}
	if len(description) > MaxDescriptionLength {
		return nil, oops.Code("ROOM_INVALID_INPUT").
			Public(fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength)).
			Wrapf(auth.ErrInvalidInput, "room description too long")
	}
	return &Room{
		ID:          ulid.Make(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Repository manages room persistence.
//
// Get and Delete return an error wrapping auth.ErrNotFound for an unknown ID.
type Repository interface {
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, id ulid.ULID) (*Room, error)
	ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*Room, error)
	ListAll(ctx context.Context) ([]*Room, error)
	Delete(ctx context.Context, id ulid.ULID) error
}

// Service wraps a Repository with validation and logging.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a Service with a no-op logger.
func NewService(repo Repository) (*Service, error) {
	return NewServiceWithLogger(repo, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a Service with the provided logger.
func NewServiceWithLogger(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("room repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Create validates and stores a new room.
func (s *Service) Create(ctx context.Context, ownerID ulid.ULID, name, description string) (*Room, error) {
	room, err := NewRoom(ownerID, name, description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, oops.Code("ROOM_CREATE_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "room created",
		"room_id", room.ID.String(),
		"owner_id", ownerID.String())
	return room, nil
}

// ListByOwner returns the rooms owned by ownerID, oldest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*Room, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListAll returns every room, oldest first.
func (s *Service) ListAll(ctx context.Context) ([]*Room, error) {
	return s.repo.ListAll(ctx)
}

// Delete removes a room. Authorization is the caller's job.
func (s *Service) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "room deleted", "room_id", id.String())
	return nil
}

// OwnerOf returns the owner of a room. Its signature matches
// access.OwnerLookup.
func (s *Service) OwnerOf(ctx context.Context, id ulid.ULID) (ulid.ULID, error) {
	room, err := s.repo.Get(ctx, id)
	if err != nil {
		return ulid.ULID{}, err
	}
	return room.OwnerID, nil
}

// IsNotFound reports whether err means the room does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, auth.ErrNotFound)
}
