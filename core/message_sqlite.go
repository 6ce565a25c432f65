package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warasin/roomsync/metrics"
)

type SQLiteMessageStore struct {
	db       *sql.DB
	realtime Realtime
}

func NewSQLiteMessageStore(db *sql.DB, realtime Realtime) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db, realtime: realtime}
}

func (s *SQLiteMessageStore) SendMessage(ctx context.Context, input MessageCreateInput) (*Message, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	message := Message{
		ID:        uuid.New().String(),
		RoomID:    input.RoomID,
		UserID:    input.UserID,
		Content:   input.Content,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO messages (id, room_id, user_id, content, created_at)
	          VALUES (@id, @room_id, @user_id, @content, @created_at)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("id", message.ID), sql.Named("room_id", message.RoomID),
		sql.Named("user_id", message.UserID), sql.Named("content", message.Content),
		sql.Named("created_at", message.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert message): %w", err)
	}

	metrics.MessagesSent.Inc()

	if s.realtime != nil {
		s.realtime.Publish(InsertEvent{
			Table:   MessagesTable,
			RoomID:  message.RoomID,
			Message: message,
		})
	}

	return &message, nil
}

func (s *SQLiteMessageStore) RoomMessages(ctx context.Context, roomID string) ([]Message, error) {
	query := `SELECT id, room_id, user_id, content, created_at
	          FROM messages WHERE room_id = ?
	          ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return messages, nil
}
