package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/warasin/roomsync/core"
)

// State is the lifecycle state of a ChatSession for its selected room.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyMessage is returned when Send is called with blank content.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNoRoomSelected is returned when Send is called with no room open.
	ErrNoRoomSelected = errors.New("no room selected")
)

// ChatSession orchestrates the per-room state for one signed-in user: the
// message timeline, the profile cache, and the realtime subscription whose
// lifecycle is tied to room selection. Switching rooms discards and
// rebuilds all three.
type ChatSession struct {
	ctx      context.Context
	messages core.MessageStore
	profiles core.ProfileStore
	realtime core.Realtime
	sessions core.SessionProvider
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	roomID   string
	timeline *Timeline
	cache    *ProfileCache
	sub      *core.Subscription

	onMessage func(core.Message)

	wg sync.WaitGroup
}

func NewChatSession(
	ctx context.Context,
	messages core.MessageStore,
	profiles core.ProfileStore,
	realtime core.Realtime,
	sessions core.SessionProvider,
	logger *slog.Logger,
) *ChatSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSession{
		ctx:      ctx,
		messages: messages,
		profiles: profiles,
		realtime: realtime,
		sessions: sessions,
		logger:   logger,
		state:    StateIdle,
	}
}

// OnMessage registers a callback invoked for every message appended to the
// timeline, history excluded. It must be set before Open.
func (s *ChatSession) OnMessage(fn func(core.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

func (s *ChatSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatSession) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Open selects a room: any previous subscription is torn down first, the
// timeline and profile cache are rebuilt from scratch, the room's insert
// stream is subscribed, and the full history is fetched and merged. Events
// arriving while the fetch is in flight land in the timeline and the merge
// dedupes them by ID, so no interleaving loses or reorders messages.
func (s *ChatSession) Open(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	s.teardownLocked()

	s.state = StateLoading
	s.roomID = roomID
	s.timeline = NewTimeline()
	s.cache = NewProfileCache(s.profiles, s.logger)

	sub, err := s.realtime.Subscribe(roomID)
	if err != nil {
		s.state = StateIdle
		s.roomID = ""
		s.mu.Unlock()
		return fmt.Errorf("Subscribe: %w", err)
	}
	s.sub = sub
	timeline := s.timeline
	cache := s.cache
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(sub, timeline, cache)

	history, err := s.messages.RoomMessages(ctx, roomID)
	if err == nil {
		if primeErr := cache.Prime(ctx, distinctAuthors(history)...); primeErr != nil {
			s.logger.Warn("priming profile cache",
				slog.String("room_id", roomID),
				slog.String("error", primeErr.Error()))
		}
	}

	s.mu.Lock()
	// A fetch that resolves after the room switched (or the session closed)
	// belongs to a stale selection and is discarded.
	if s.roomID != roomID || s.timeline != timeline {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.teardownLocked()
		s.state = StateIdle
		s.mu.Unlock()
		return fmt.Errorf("RoomMessages: %w", err)
	}
	timeline.LoadHistory(history)
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

func distinctAuthors(messages []core.Message) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range messages {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}

func (s *ChatSession) readLoop(sub *core.Subscription, timeline *Timeline, cache *ProfileCache) {
	defer s.wg.Done()
	for event := range sub.Events() {
		if event.Table != core.MessagesTable || event.RoomID != sub.RoomID() {
			continue
		}
		// Resolve the author before the message becomes visible.
		cache.Ensure(s.ctx, event.Message.UserID)
		if !timeline.Append(event.Message) {
			continue
		}

		s.mu.Lock()
		fn := s.onMessage
		s.mu.Unlock()
		if fn != nil {
			fn(event.Message)
		}
	}
}

// Send persists a message to the currently open room. The write is
// acknowledged, not optimistic: on success the caller clears its input, and
// the message reaches the timeline only through the subscription echo, the
// same path remote messages take. On failure the caller keeps the input and
// shows the error.
func (s *ChatSession) Send(ctx context.Context, content string) error {
	current := s.sessions.Current()
	if current == nil {
		return core.ErrNotAuthenticated
	}

	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	roomID := s.roomID
	state := s.state
	s.mu.Unlock()

	if state != StateReady || roomID == "" {
		return ErrNoRoomSelected
	}

	_, err := s.messages.SendMessage(ctx, core.MessageCreateInput{
		RoomID:  roomID,
		UserID:  current.UserID,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("SendMessage: %w", err)
	}
	return nil
}

// Messages returns the current timeline snapshot in display order.
func (s *ChatSession) Messages() []core.Message {
	s.mu.Lock()
	timeline := s.timeline
	s.mu.Unlock()
	if timeline == nil {
		return nil
	}
	return timeline.Messages()
}

// AuthorLabel returns the display label for a message author.
func (s *ChatSession) AuthorLabel(userID string) string {
	s.mu.Lock()
	cache := s.cache
	s.mu.Unlock()
	if cache == nil {
		return core.UnknownUserLabel
	}
	return cache.Label(userID)
}

// teardownLocked closes the current subscription and discards the per-room
// state. Callers hold s.mu.
func (s *ChatSession) teardownLocked() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.roomID = ""
	s.timeline = nil
	s.cache = nil
	s.state = StateIdle
}

// Close deselects the room, tears down the subscription, and waits for the
// read loop to drain. The session cannot be reopened.
func (s *ChatSession) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.state = StateClosed
	s.mu.Unlock()
	s.wg.Wait()
}
