package core

import (
	"fmt"
	"sync"

	"github.com/warasin/roomsync/metrics"
)

// MessagesTable is the only table the realtime layer carries insert events
// for.
const MessagesTable = "messages"

// InsertEvent notifies subscribers that a row was inserted. Events are
// scoped to a room: a subscription only ever yields events for the room it
// was opened for.
type InsertEvent struct {
	Table   string  `json:"table"`
	RoomID  string  `json:"room_id"`
	Message Message `json:"message"`
}

func (e InsertEvent) String() string {
	return fmt.Sprintf("InsertEvent{Table: %s, RoomID: %s, Message.ID: %s}", e.Table, e.RoomID, e.Message.ID)
}

// Realtime is the push primitive: a standing request to be notified of new
// rows as they are inserted.
type Realtime interface {
	Publish(event InsertEvent)

	// Subscribe opens a subscription for insert events scoped to the room.
	// The caller owns the subscription and must Close it when done.
	Subscribe(roomID string) (*Subscription, error)
}

// Subscription is an owned handle on a room's insert stream. Events() is
// closed by Close; cancellation is closing the subscription, not dropping
// the reference.
type Subscription struct {
	roomID   string
	events   chan InsertEvent
	mu       sync.Mutex
	closed   bool
	teardown func()
}

func newSubscription(roomID string, buffer int, teardown func()) *Subscription {
	metrics.RealtimeSubscriptionsActive.Inc()
	return &Subscription{
		roomID:   roomID,
		events:   make(chan InsertEvent, buffer),
		teardown: teardown,
	}
}

func (s *Subscription) RoomID() string {
	return s.roomID
}

// Events yields insert events for the subscribed room. The channel is
// closed when the subscription is closed.
func (s *Subscription) Events() <-chan InsertEvent {
	return s.events
}

// deliver enqueues the event without blocking. It reports false when the
// event was dropped because the subscriber is slow or the subscription is
// closed.
func (s *Subscription) deliver(event InsertEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- event:
		return true
	default:
		metrics.RealtimeEventsDropped.Inc()
		return false
	}
}

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	if s.teardown != nil {
		s.teardown()
	}
	metrics.RealtimeSubscriptionsActive.Dec()
}
