package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// RoomCodeLength is the length of the human-shareable room code.
	RoomCodeLength = 6
)

// Room represents a chat room. A room with a non-empty password is private:
// joining it requires the password in addition to the code.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"room_code"`
	Password  string    `json:"-"`
	CreatedBy string    `json:"created_by"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Private reports whether joining the room requires a password.
func (r *Room) Private() bool {
	return r.Password != ""
}

// PasswordMatches is the only place room passwords are compared.
// Rooms store the password verbatim, so this is an exact compare; swapping
// in a salted-hash comparison here upgrades every call site at once.
func (r *Room) PasswordMatches(password string) bool {
	return r.Password == password
}

// Membership grants a user access to a room they did not create.
// At most one membership exists per (user, room) pair.
type Membership struct {
	UserID   string    `json:"user_id"`
	RoomID   string    `json:"room_id"`
	JoinedAt time.Time `json:"joined_at"`
}

var (
	// ErrRoomNotFound is returned when no active room matches the given code or ID.
	ErrRoomNotFound = errors.New("room not found")
	// ErrIncorrectPassword is returned when the supplied password does not match
	// a private room's password.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrAlreadyMember is returned when the user already holds a membership for
	// the room. It is an informational outcome, not a failure: callers should
	// treat it as success-adjacent.
	ErrAlreadyMember = errors.New("already a member of this room")
	// ErrNotRoomCreator is returned when a destructive room operation is
	// attempted by someone other than the room's creator.
	ErrNotRoomCreator = errors.New("not the room creator")
	// ErrBackendUnavailable is returned when the storage or realtime backend
	// cannot be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

type RoomStore interface {
	// InsertRoom inserts the room row as given. It does not create any
	// membership; creator membership is the caller's responsibility.
	InsertRoom(ctx context.Context, room Room) error

	// DeleteRoom deletes the room only if createdBy matches the room's
	// creator. It reports whether a row was removed.
	DeleteRoom(ctx context.Context, roomID, createdBy string) (bool, error)

	// GetRoomByID returns the active room with the given ID, or nil if absent.
	GetRoomByID(ctx context.Context, roomID string) (*Room, error)

	// GetRoomByCode returns the active room with the given code, or nil if
	// absent. The code is matched case-sensitively; callers normalize to
	// uppercase first.
	GetRoomByCode(ctx context.Context, code string) (*Room, error)

	// CodeExists reports whether any room, active or not, holds the code.
	CodeExists(ctx context.Context, code string) (bool, error)

	// InsertMembership inserts a membership row. If one already exists for
	// (userID, roomID) it returns ErrAlreadyMember.
	InsertMembership(ctx context.Context, userID, roomID string) (*Membership, error)

	DeleteMembership(ctx context.Context, userID, roomID string) error

	// DeleteRoomMemberships removes every membership row referencing the room.
	DeleteRoomMemberships(ctx context.Context, roomID string) error

	IsMember(ctx context.Context, userID, roomID string) (bool, error)

	// RoomsCreatedBy returns the active rooms created by the user.
	RoomsCreatedBy(ctx context.Context, userID string) ([]Room, error)

	// RoomsJoinedBy returns the active rooms the user holds a membership for.
	RoomsJoinedBy(ctx context.Context, userID string) ([]Room, error)
}

// GenerateRoomCode returns a 6-character code drawn uniformly from [A-Z0-9].
// The source is non-cryptographic: codes are human-shareable handles, not
// secrets.
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}

// UniqueRoomCode generates codes until the existence check misses. The check
// is not atomic with the later insert; the unique index on room_code turns a
// lost race into a constraint error rather than a duplicate code.
func UniqueRoomCode(ctx context.Context, store RoomStore) (string, error) {
	for {
		code := GenerateRoomCode()
		exists, err := store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("CodeExists: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}
