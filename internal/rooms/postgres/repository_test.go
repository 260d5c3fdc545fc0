// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

var roomCols = []string{"id", "name", "description", "owner_id", "created_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func TestRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	room, err := rooms.NewRoom(ulid.Make(), "Lobby", "")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO rooms`).
		WithArgs(room.ID.String(), "Lobby", "", room.OwnerID.String(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewRepository(mock).Create(context.Background(), room))
}

func TestRepository_Get(t *testing.T) {
	ctx := context.Background()
	id, owner := ulid.Make(), ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM rooms WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(roomCols).
				AddRow(id.String(), "Lobby", "hi", owner.String(), time.Now()))

		room, err := NewRepository(mock).Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, owner, room.OwnerID)
		assert.Equal(t, "hi", room.Description)
	})

	t.Run("not found wraps ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM rooms WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(roomCols))

		_, err := NewRepository(mock).Get(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.True(t, rooms.IsNotFound(err))
	})

	t.Run("corrupt owner id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM rooms WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(roomCols).
				AddRow(id.String(), "Lobby", "", "not-a-ulid", time.Now()))

		_, err := NewRepository(mock).Get(ctx, id)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ROOM_CORRUPT")
	})
}

func TestRepository_ListByOwner(t *testing.T) {
	mock := newMockPool(t)
	owner := ulid.Make()
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM rooms WHERE owner_id = \$1 ORDER BY id`).
		WithArgs(owner.String()).
		WillReturnRows(pgxmock.NewRows(roomCols).
			AddRow(ulid.Make().String(), "A", "", owner.String(), now).
			AddRow(ulid.Make().String(), "B", "", owner.String(), now))

	list, err := NewRepository(mock).ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
}

func TestRepository_ListAllQueryFailure(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT .+ FROM rooms ORDER BY id`).WillReturnError(errors.New("timeout"))

	_, err := NewRepository(mock).ListAll(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ROOM_LIST_FAILED")
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("deletes", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM rooms WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		require.NoError(t, NewRepository(mock).Delete(ctx, id))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM rooms WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err := NewRepository(mock).Delete(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
