package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/warasin/roomsync/core"
)

// Resolver computes which rooms a user may see: the union of rooms they
// created and rooms they joined.
type Resolver struct {
	rooms core.RoomStore
}

func NewResolver(rooms core.RoomStore) *Resolver {
	return &Resolver{rooms: rooms}
}

// AccessibleRooms returns created ∪ joined, deduplicated by room ID with
// the first occurrence winning. The two source queries fail independently:
// if one fails the other's rooms are still returned, paired with the error,
// so callers stay degraded-but-available. Only when both fail is the result
// a hard failure, surfaced as core.ErrBackendUnavailable.
func (r *Resolver) AccessibleRooms(ctx context.Context, userID string) ([]core.Room, error) {
	created, createdErr := r.rooms.RoomsCreatedBy(ctx, userID)
	joined, joinedErr := r.rooms.RoomsJoinedBy(ctx, userID)

	if createdErr != nil && joinedErr != nil {
		return nil, fmt.Errorf("listing rooms: %w: %w",
			core.ErrBackendUnavailable, errors.Join(createdErr, joinedErr))
	}

	seen := make(map[string]struct{}, len(created)+len(joined))
	rooms := make([]core.Room, 0, len(created)+len(joined))
	for _, room := range append(created, joined...) {
		if _, ok := seen[room.ID]; ok {
			continue
		}
		seen[room.ID] = struct{}{}
		rooms = append(rooms, room)
	}

	return rooms, errors.Join(createdErr, joinedErr)
}
