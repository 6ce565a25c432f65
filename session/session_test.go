package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warasin/roomsync/core"
)

func newChatFixture(t *testing.T) (*BaseFixture, *ChatSession, *core.SessionState) {
	f := NewBaseFixture(t)
	sessions := core.NewSessionState()
	chat := NewChatSession(f.ctx, f.messageStore, f.profileStore, f.hub, sessions, nil)
	return f, chat, sessions
}

func signIn(sessions *core.SessionState, profile core.Profile) {
	sessions.Set(&core.Session{UserID: profile.UserID, Email: profile.Email})
}

func waitForMessage(t *testing.T, ch <-chan core.Message) core.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message echo")
		return core.Message{}
	}
}

func TestChatSessionOpen(t *testing.T) {
	t.Run("loads history and becomes ready", func(t *testing.T) {
		f, chat, sessions := newChatFixture(t)
		defer f.tearDown()
		defer chat.Close()

		alice := f.seedAccount("alice@example.com", "alice")
		room := f.seedRoom(alice.UserID, "General", "")
		signIn(sessions, alice)

		for _, content := range []string{"first", "second"} {
			_, err := f.messageStore.SendMessage(f.ctx, core.MessageCreateInput{
				RoomID:  room.ID,
				UserID:  alice.UserID,
				Content: content,
			})
			require.Nil(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		require.Nil(t, chat.Open(f.ctx, room.ID))
		assert.Equal(t, StateReady, chat.State())
		assert.Equal(t, room.ID, chat.RoomID())

		messages := chat.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "second", messages[1].Content)

		// History authors were primed in bulk.
		assert.Equal(t, "alice", chat.AuthorLabel(alice.UserID))
	})

	t.Run("opening a second room discards the first room's state", func(t *testing.T) {
		f, chat, sessions := newChatFixture(t)
		defer f.tearDown()
		defer chat.Close()

		alice := f.seedAccount("alice@example.com", "alice")
		first := f.seedRoom(alice.UserID, "First", "")
		second := f.seedRoom(alice.UserID, "Second", "")
		signIn(sessions, alice)

		require.Nil(t, chat.Open(f.ctx, first.ID))
		require.Nil(t, chat.Send(f.ctx, "in the first room"))

		require.Nil(t, chat.Open(f.ctx, second.ID))
		assert.Equal(t, second.ID, chat.RoomID())
		assert.Empty(t, chat.Messages())

		// A message in the abandoned room never reaches the new timeline.
		_, err := f.messageStore.SendMessage(f.ctx, core.MessageCreateInput{
			RoomID:  first.ID,
			UserID:  alice.UserID,
			Content: "late arrival",
		})
		require.Nil(t, err)

		echoes := make(chan core.Message, 1)
		chat.OnMessage(func(m core.Message) { echoes <- m })
		require.Nil(t, chat.Send(f.ctx, "in the second room"))

		echoed := waitForMessage(t, echoes)
		assert.Equal(t, second.ID, echoed.RoomID)
		require.Len(t, chat.Messages(), 1)
		assert.Equal(t, "in the second room", chat.Messages()[0].Content)
	})

	t.Run("closed session cannot be reopened", func(t *testing.T) {
		f, chat, _ := newChatFixture(t)
		defer f.tearDown()

		chat.Close()
		assert.Equal(t, StateClosed, chat.State())
		require.NotNil(t, chat.Open(f.ctx, "room-1"))
	})
}

func TestChatSessionSend(t *testing.T) {
	t.Run("messages arrive through the subscription echo", func(t *testing.T) {
		f, chat, sessions := newChatFixture(t)
		defer f.tearDown()
		defer chat.Close()

		alice := f.seedAccount("alice@example.com", "alice")
		room := f.seedRoom(alice.UserID, "General", "")
		signIn(sessions, alice)

		echoes := make(chan core.Message, 1)
		chat.OnMessage(func(m core.Message) { echoes <- m })

		require.Nil(t, chat.Open(f.ctx, room.ID))
		require.Nil(t, chat.Send(f.ctx, "hello"))

		echoed := waitForMessage(t, echoes)
		assert.Equal(t, "hello", echoed.Content)
		assert.Equal(t, alice.UserID, echoed.UserID)

		require.Len(t, chat.Messages(), 1)
		assert.Equal(t, echoed.ID, chat.Messages()[0].ID)
		assert.Equal(t, "alice", chat.AuthorLabel(echoed.UserID))
	})

	t.Run("requires a signed-in session", func(t *testing.T) {
		f, chat, _ := newChatFixture(t)
		defer f.tearDown()
		defer chat.Close()

		err := chat.Send(f.ctx, "hello")
		require.ErrorIs(t, err, core.ErrNotAuthenticated)
	})

	t.Run("rejects blank content", func(t *testing.T) {
		f, chat, sessions := newChatFixture(t)
		defer f.tearDown()
		defer chat.Close()

		alice := f.seedAccount("alice@example.com", "alice")
		room := f.seedRoom(alice.UserID, "General", "")
		signIn(sessions, alice)
		require.Nil(t, chat.Open(f.ctx, room.ID))

		err := chat.Send(f.ctx, "   \n\t")
		require.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, chat.Messages())
	})

	t.Run("requires an open room", func(t *testing.T) {
		f, chat, sessions := newChatFixture(t)
		defer f.tearDown()
		defer chat.Close()

		alice := f.seedAccount("alice@example.com", "alice")
		signIn(sessions, alice)

		err := chat.Send(f.ctx, "hello")
		require.ErrorIs(t, err, ErrNoRoomSelected)
	})
}

// slowMessageStore holds RoomMessages until released.
type slowMessageStore struct {
	core.MessageStore
	release chan struct{}
}

func (s *slowMessageStore) RoomMessages(ctx context.Context, roomID string) ([]core.Message, error) {
	<-s.release
	return s.MessageStore.RoomMessages(ctx, roomID)
}

func TestChatSessionStaleFetch(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()

	alice := f.seedAccount("alice@example.com", "alice")
	first := f.seedRoom(alice.UserID, "First", "")
	second := f.seedRoom(alice.UserID, "Second", "")

	_, err := f.messageStore.SendMessage(f.ctx, core.MessageCreateInput{
		RoomID:  first.ID,
		UserID:  alice.UserID,
		Content: "stale history",
	})
	require.Nil(t, err)

	slow := &slowMessageStore{MessageStore: f.messageStore, release: make(chan struct{})}
	sessions := core.NewSessionState()
	chat := NewChatSession(f.ctx, slow, f.profileStore, f.hub, sessions, nil)
	defer chat.Close()
	signIn(sessions, alice)

	done := make(chan error, 1)
	go func() {
		done <- chat.Open(f.ctx, first.ID)
	}()

	// Switch rooms while the first fetch is still in flight, then let it
	// resolve; the stale result must not leak into the new room's timeline.
	for chat.RoomID() != first.ID {
		time.Sleep(time.Millisecond)
	}
	go func() {
		done <- chat.Open(f.ctx, second.ID)
	}()
	for chat.RoomID() != second.ID {
		time.Sleep(time.Millisecond)
	}
	close(slow.release)

	require.Nil(t, <-done)
	require.Nil(t, <-done)

	assert.Equal(t, second.ID, chat.RoomID())
	assert.Equal(t, StateReady, chat.State())
	assert.Empty(t, chat.Messages())
}
