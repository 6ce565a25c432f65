package core

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/warasin/roomsync/metrics"
)

const defaultSubscriptionBuffer = 64

// Hub is the in-process Realtime implementation: it fans each published
// insert event out to every subscription open on the event's room.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	logger *slog.Logger
	buffer int
}

type HubOption func(*Hub)

func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

func WithSubscriptionBuffer(n int) HubOption {
	return func(h *Hub) {
		h.buffer = n
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[string][]*Subscription),
		logger: slog.Default(),
		buffer: defaultSubscriptionBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Publish(event InsertEvent) {
	metrics.RealtimeEventsPublished.Inc()

	// Copy before unlocking: remove compacts the registered slice in place,
	// so iterating the shared backing array outside the lock races with a
	// concurrent Close.
	h.mu.RLock()
	subs := slices.Clone(h.subs[event.RoomID])
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.deliver(event) {
			h.logger.Warn("dropped realtime event",
				slog.String("room_id", event.RoomID),
				slog.String("message_id", event.Message.ID))
		}
	}
}

func (h *Hub) Subscribe(roomID string) (*Subscription, error) {
	var sub *Subscription
	sub = newSubscription(roomID, h.buffer, func() {
		h.remove(roomID, sub)
	})

	h.mu.Lock()
	h.subs[roomID] = append(h.subs[roomID], sub)
	h.mu.Unlock()

	return sub, nil
}

func (h *Hub) remove(roomID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[roomID]
	for i, s := range subs {
		if s == sub {
			h.subs[roomID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[roomID]) == 0 {
		delete(h.subs, roomID)
	}
}

// Close closes every open subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Subscription
	for _, subs := range h.subs {
		all = append(all, subs...)
	}
	h.subs = make(map[string][]*Subscription)
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}
