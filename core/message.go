package core

import (
	"context"
	"time"
)

// Message is a chat message sent by a user to a room. CreatedAt is assigned
// by the store at insert time, so later inserts always carry later
// timestamps.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageCreateInput represents the input for sending a message.
type MessageCreateInput struct {
	RoomID  string `json:"room_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// Validate validates the message input.
func (m *MessageCreateInput) Validate() error {
	return validate.Struct(m)
}

type MessageStore interface {
	// SendMessage validates the input, assigns the message an ID and a
	// timestamp, persists it, and publishes an insert event for the room's
	// subscribers. Senders see their own message only through that echo.
	SendMessage(ctx context.Context, input MessageCreateInput) (*Message, error)

	// RoomMessages returns every message in the room ordered ascending by
	// creation time.
	RoomMessages(ctx context.Context, roomID string) ([]Message, error)
}
