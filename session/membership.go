package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warasin/roomsync/core"
)

var validate = validator.New()

// Manager owns the membership semantics: joining by code or ID with the
// password gate, creation with a compensating delete, and creator-only
// deletion.
type Manager struct {
	rooms  core.RoomStore
	logger *slog.Logger
}

func NewManager(rooms core.RoomStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{rooms: rooms, logger: logger}
}

// JoinRef identifies the room to join: a shareable code or a raw room ID.
// When both are set the code wins.
type JoinRef struct {
	Code   string
	RoomID string
}

// CreateRoomInput carries a new room's fields. An empty password makes the
// room public.
type CreateRoomInput struct {
	Name     string `json:"name" validate:"required,max=30"`
	Password string `json:"password" validate:"max=40"`
}

func (in *CreateRoomInput) Validate() error {
	return validate.Struct(in)
}

func (m *Manager) resolveRoom(ctx context.Context, ref JoinRef) (*core.Room, error) {
	if ref.Code != "" {
		return m.rooms.GetRoomByCode(ctx, strings.ToUpper(ref.Code))
	}
	if ref.RoomID != "" {
		return m.rooms.GetRoomByID(ctx, ref.RoomID)
	}
	return nil, nil
}

// Join adds the user to the room identified by ref. Private rooms require
// the matching password. If the user is already a member, whether found by
// the pre-check or surfaced as a uniqueness violation by a racing insert,
// Join returns the membership alongside core.ErrAlreadyMember; callers
// should present that as information, not as a failure.
func (m *Manager) Join(ctx context.Context, userID string, ref JoinRef, password string) (*core.Membership, error) {
	room, err := m.resolveRoom(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving room: %w", err)
	}
	if room == nil {
		return nil, core.ErrRoomNotFound
	}

	if room.Private() && !room.PasswordMatches(password) {
		return nil, core.ErrIncorrectPassword
	}

	isMember, err := m.rooms.IsMember(ctx, userID, room.ID)
	if err != nil {
		return nil, fmt.Errorf("IsMember: %w", err)
	}
	if isMember {
		return &core.Membership{UserID: userID, RoomID: room.ID}, core.ErrAlreadyMember
	}

	membership, err := m.rooms.InsertMembership(ctx, userID, room.ID)
	if err != nil {
		if errors.Is(err, core.ErrAlreadyMember) {
			return &core.Membership{UserID: userID, RoomID: room.ID}, core.ErrAlreadyMember
		}
		return nil, fmt.Errorf("InsertMembership: %w", err)
	}
	return membership, nil
}

// Create inserts a new room and the creator's membership. Room and
// membership are two separate writes; when the membership insert fails the
// room row is removed again with a compensating delete so no room exists
// without its creator-membership, and the membership error is surfaced.
func (m *Manager) Create(ctx context.Context, userID string, input CreateRoomInput) (*core.Room, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	code, err := core.UniqueRoomCode(ctx, m.rooms)
	if err != nil {
		return nil, fmt.Errorf("UniqueRoomCode: %w", err)
	}

	room := core.Room{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Code:      code,
		Password:  input.Password,
		CreatedBy: userID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.rooms.InsertRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("InsertRoom: %w", err)
	}

	if _, err := m.rooms.InsertMembership(ctx, userID, room.ID); err != nil {
		if _, delErr := m.rooms.DeleteRoom(ctx, room.ID, userID); delErr != nil {
			m.logger.Error("compensating room delete failed",
				slog.String("room_id", room.ID),
				slog.String("error", delErr.Error()))
		}
		return nil, fmt.Errorf("InsertMembership: %w", err)
	}

	return &room, nil
}

// Delete removes a room and its memberships. Only the creator may delete;
// memberships are removed first, and a cleanup failure aborts before the
// room row is touched.
func (m *Manager) Delete(ctx context.Context, userID, roomID string) error {
	room, err := m.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("GetRoomByID: %w", err)
	}
	if room == nil {
		return core.ErrRoomNotFound
	}
	if room.CreatedBy != userID {
		return core.ErrNotRoomCreator
	}

	if err := m.rooms.DeleteRoomMemberships(ctx, roomID); err != nil {
		return fmt.Errorf("DeleteRoomMemberships: %w", err)
	}

	removed, err := m.rooms.DeleteRoom(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("DeleteRoom: %w", err)
	}
	if !removed {
		return core.ErrNotRoomCreator
	}
	return nil
}

// Leave removes the user's membership. The creator keeps implicit access to
// their own rooms, so leaving one is a no-op for visibility.
func (m *Manager) Leave(ctx context.Context, userID, roomID string) error {
	if err := m.rooms.DeleteMembership(ctx, userID, roomID); err != nil {
		return fmt.Errorf("DeleteMembership: %w", err)
	}
	return nil
}
