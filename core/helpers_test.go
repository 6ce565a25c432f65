package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedAccounts(ctx context.Context, t *testing.T, profiles ProfileStore, accounts ...Account) []Profile {
	seeded := make([]Profile, 0, len(accounts))
	for _, a := range accounts {
		profile, err := profiles.CreateAccount(ctx, a)
		if err != nil {
			t.Fatal(err)
		}
		seeded = append(seeded, *profile)
	}
	return seeded
}

func seedRoom(ctx context.Context, t *testing.T, rooms RoomStore, createdBy, name, password string) Room {
	room := Room{
		ID:        uuid.New().String(),
		Name:      name,
		Code:      GenerateRoomCode(),
		Password:  password,
		CreatedBy: createdBy,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := rooms.InsertRoom(ctx, room); err != nil {
		t.Fatal(err)
	}
	return room
}
