package session

import (
	"slices"
	"sync"

	"github.com/warasin/roomsync/core"
)

// Timeline holds the ordered message list for one open room. It merges the
// initial history fetch with push-delivered inserts: messages are keyed by
// ID so a re-delivered event for a known message is ignored, and display
// order is non-decreasing by creation time for any interleaving of the two
// sources.
type Timeline struct {
	mu    sync.Mutex
	order []core.Message
	seen  map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

// LoadHistory merges the fetched history into the timeline and re-sorts.
// Push events that raced ahead of the fetch are already present and stay;
// history rows duplicating them are dropped by ID.
func (t *Timeline) LoadHistory(messages []core.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range messages {
		if _, ok := t.seen[m.ID]; ok {
			continue
		}
		t.seen[m.ID] = struct{}{}
		t.order = append(t.order, m)
	}

	slices.SortStableFunc(t.order, func(a, b core.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Append adds a pushed message to the end of the timeline. Appended events
// are assumed newer than the last known message, which holds because the
// backend assigns timestamps at insert time. It reports whether the message
// was actually added; a known ID is ignored.
func (t *Timeline) Append(message core.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[message.ID]; ok {
		return false
	}
	t.seen[message.ID] = struct{}{}
	t.order = append(t.order, message)
	return true
}

// Messages returns a copy of the ordered message list.
func (t *Timeline) Messages() []core.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.order)
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// AuthorIDs returns the distinct author IDs present, in first-seen order.
func (t *Timeline) AuthorIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, m := range t.order {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}
