package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type RoomFixture struct {
	*BaseFixture
	roomStore RoomStore
}

func NewRoomFixture(t *testing.T) *RoomFixture {
	base := NewBaseFixture(t)
	return &RoomFixture{
		BaseFixture: base,
		roomStore:   NewSQLiteRoomStore(base.db),
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateRoomCode()
		require.Len(t, code, RoomCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(roomCodeAlphabet, c), "unexpected character %q", c)
		}
		assert.Equal(t, strings.ToUpper(code), code)
	}
}

type codeCheckStub struct {
	RoomStore
	collisions int
	checked    []string
}

func (s *codeCheckStub) CodeExists(_ context.Context, code string) (bool, error) {
	s.checked = append(s.checked, code)
	if s.collisions > 0 {
		s.collisions--
		return true, nil
	}
	return false, nil
}

func TestUniqueRoomCode(t *testing.T) {
	t.Run("retries until the existence check misses", func(t *testing.T) {
		stub := &codeCheckStub{collisions: 3}

		code, err := UniqueRoomCode(context.Background(), stub)
		require.Nil(t, err)
		require.NotEmpty(t, code)
		// Three collisions, then the returned code's own check.
		require.Len(t, stub.checked, 4)
		assert.Equal(t, code, stub.checked[len(stub.checked)-1])
	})
}

func TestInsertRoom(t *testing.T) {
	t.Run("insert and fetch by id and code", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

		byID, err := f.roomStore.GetRoomByID(f.ctx, room.ID)
		require.Nil(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, room.ID, byID.ID)
		assert.Equal(t, room.Name, byID.Name)
		assert.Equal(t, room.Code, byID.Code)
		assert.True(t, byID.Active)
		assert.False(t, byID.Private())

		byCode, err := f.roomStore.GetRoomByCode(f.ctx, room.Code)
		require.Nil(t, err)
		require.NotNil(t, byCode)
		assert.Equal(t, room.ID, byCode.ID)
	})

	t.Run("private room keeps its password", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "Secret", "abc123")

		got, err := f.roomStore.GetRoomByID(f.ctx, room.ID)
		require.Nil(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Private())
		assert.True(t, got.PasswordMatches("abc123"))
		assert.False(t, got.PasswordMatches("wrong"))
	})

	t.Run("duplicate code is rejected by the unique index", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

		dup := room
		dup.ID = "another-id"
		err := f.roomStore.InsertRoom(f.ctx, dup)
		require.NotNil(t, err)
		assert.True(t, isUniqueViolation(err))
	})
}

func TestCodeExists(t *testing.T) {
	f := NewRoomFixture(t)
	defer f.tearDown()

	room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

	exists, err := f.roomStore.CodeExists(f.ctx, room.Code)
	require.Nil(t, err)
	assert.True(t, exists)

	exists, err = f.roomStore.CodeExists(f.ctx, "ZZZZZ0")
	require.Nil(t, err)
	assert.False(t, exists)
}

func TestInsertMembership(t *testing.T) {
	t.Run("creates a membership", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

		membership, err := f.roomStore.InsertMembership(f.ctx, "user-2", room.ID)
		require.Nil(t, err)
		require.NotNil(t, membership)
		assert.Equal(t, "user-2", membership.UserID)
		assert.Equal(t, room.ID, membership.RoomID)
		assert.False(t, membership.JoinedAt.IsZero())

		isMember, err := f.roomStore.IsMember(f.ctx, "user-2", room.ID)
		require.Nil(t, err)
		assert.True(t, isMember)
	})

	t.Run("duplicate insert surfaces as ErrAlreadyMember", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

		_, err := f.roomStore.InsertMembership(f.ctx, "user-2", room.ID)
		require.Nil(t, err)

		_, err = f.roomStore.InsertMembership(f.ctx, "user-2", room.ID)
		require.ErrorIs(t, err, ErrAlreadyMember)
	})
}

func TestDeleteRoom(t *testing.T) {
	t.Run("creator can delete", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

		removed, err := f.roomStore.DeleteRoom(f.ctx, room.ID, "user-1")
		require.Nil(t, err)
		assert.True(t, removed)

		got, err := f.roomStore.GetRoomByID(f.ctx, room.ID)
		require.Nil(t, err)
		assert.Nil(t, got)
	})

	t.Run("non-creator delete removes nothing", func(t *testing.T) {
		f := NewRoomFixture(t)
		defer f.tearDown()

		room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")

		removed, err := f.roomStore.DeleteRoom(f.ctx, room.ID, "user-2")
		require.Nil(t, err)
		assert.False(t, removed)

		got, err := f.roomStore.GetRoomByID(f.ctx, room.ID)
		require.Nil(t, err)
		require.NotNil(t, got)
	})
}

func TestRoomsCreatedByAndJoinedBy(t *testing.T) {
	f := NewRoomFixture(t)
	defer f.tearDown()

	created := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "Mine", "")
	joined := seedRoom(f.ctx, f.t, f.roomStore, "user-2", "Theirs", "")

	_, err := f.roomStore.InsertMembership(f.ctx, "user-1", joined.ID)
	require.Nil(t, err)

	createdRooms, err := f.roomStore.RoomsCreatedBy(f.ctx, "user-1")
	require.Nil(t, err)
	require.Len(t, createdRooms, 1)
	assert.Equal(t, created.ID, createdRooms[0].ID)

	joinedRooms, err := f.roomStore.RoomsJoinedBy(f.ctx, "user-1")
	require.Nil(t, err)
	require.Len(t, joinedRooms, 1)
	// The joined query projects the identifier as room_id; the scan boundary
	// normalizes it back into Room.ID.
	assert.Equal(t, joined.ID, joinedRooms[0].ID)
	assert.Equal(t, joined.Name, joinedRooms[0].Name)
}

func TestDeleteRoomMemberships(t *testing.T) {
	f := NewRoomFixture(t)
	defer f.tearDown()

	room := seedRoom(f.ctx, f.t, f.roomStore, "user-1", "General", "")
	for _, u := range []string{"user-1", "user-2", "user-3"} {
		_, err := f.roomStore.InsertMembership(f.ctx, u, room.ID)
		require.Nil(t, err)
	}

	require.Nil(t, f.roomStore.DeleteRoomMemberships(f.ctx, room.ID))

	for _, u := range []string{"user-1", "user-2", "user-3"} {
		isMember, err := f.roomStore.IsMember(f.ctx, u, room.ID)
		require.Nil(t, err)
		assert.False(t, isMember)
	}
}
