package session

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warasin/roomsync/core"
)

type BaseFixture struct {
	ctx      context.Context
	db       *sql.DB
	t        *testing.T
	tearDown func()

	hub          *core.Hub
	roomStore    core.RoomStore
	profileStore core.ProfileStore
	messageStore core.MessageStore
}

func NewBaseFixture(t *testing.T) *BaseFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	migrationfs := os.DirFS("../migrations")
	goose.SetBaseFS(migrationfs)

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}

	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	hub := core.NewHub()

	return &BaseFixture{
		ctx:          ctx,
		db:           db,
		t:            t,
		hub:          hub,
		roomStore:    core.NewSQLiteRoomStore(db),
		profileStore: core.NewSQLiteProfileStore(db),
		messageStore: core.NewSQLiteMessageStore(db, hub),
		tearDown: func() {
			cancel()
			hub.Close()
			db.Close()
		},
	}
}

func (f *BaseFixture) seedAccount(email, username string) core.Profile {
	profile, err := f.profileStore.CreateAccount(f.ctx, core.Account{
		Email:    email,
		Username: username,
		Password: "password123",
	})
	if err != nil {
		f.t.Fatal(err)
	}
	return *profile
}

func (f *BaseFixture) seedRoom(createdBy, name, password string) core.Room {
	room := core.Room{
		ID:        uuid.New().String(),
		Name:      name,
		Code:      core.GenerateRoomCode(),
		Password:  password,
		CreatedBy: createdBy,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.roomStore.InsertRoom(f.ctx, room); err != nil {
		f.t.Fatal(err)
	}
	return room
}

func (f *BaseFixture) seedMembership(userID, roomID string) {
	if _, err := f.roomStore.InsertMembership(f.ctx, userID, roomID); err != nil {
		f.t.Fatal(err)
	}
}
