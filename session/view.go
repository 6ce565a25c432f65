package session

import "github.com/warasin/roomsync/core"

// ShowAuthor reports whether the author label is rendered for the message
// at index i: consecutive messages from the same author are grouped, so the
// label appears only for the first message and whenever the author changes.
func ShowAuthor(messages []core.Message, i int) bool {
	if i < 0 || i >= len(messages) {
		return false
	}
	if i == 0 {
		return true
	}
	return messages[i].UserID != messages[i-1].UserID
}

// FollowThreshold is how close to the bottom, in pixels, the viewport must
// be for new arrivals to keep auto-scrolling it.
const FollowThreshold = 12.0

// Follower tracks whether the view should auto-follow newly arriving
// messages. It follows only while the viewport was at (or within the
// threshold of) the bottom when the message arrived; a reader who scrolled
// up into history is never force-scrolled.
type Follower struct {
	threshold float64
	atBottom  bool
}

func NewFollower() *Follower {
	// A fresh view starts pinned to the bottom.
	return &Follower{threshold: FollowThreshold, atBottom: true}
}

// Observe records the current scroll position: scrollTop is the hidden
// height above the viewport, viewportHeight the visible height, and
// contentHeight the total scrollable height.
func (f *Follower) Observe(scrollTop, viewportHeight, contentHeight float64) {
	distance := contentHeight - (scrollTop + viewportHeight)
	f.atBottom = distance <= f.threshold
}

// ShouldFollow reports whether a message arriving now auto-scrolls the view,
// based on the position observed before arrival.
func (f *Follower) ShouldFollow() bool {
	return f.atBottom
}
