package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

type SQLiteRoomStore struct {
	db *sql.DB
}

func NewSQLiteRoomStore(db *sql.DB) *SQLiteRoomStore {
	return &SQLiteRoomStore{db: db}
}

// roomRow mirrors the two shapes room rows come back in: plain table queries
// carry the identifier as id, membership-joined queries project it as
// room_id. roomIdentity resolves the pair once at the scan boundary so
// Room.ID is the only identifier the rest of the system sees.
type roomRow struct {
	RoomID    sql.NullString
	ID        sql.NullString
	Name      string
	Code      string
	Password  sql.NullString
	CreatedBy string
	Active    bool
	CreatedAt time.Time
}

func roomIdentity(row roomRow) string {
	if row.RoomID.Valid && row.RoomID.String != "" {
		return row.RoomID.String
	}
	return row.ID.String
}

func (row roomRow) room() Room {
	return Room{
		ID:        roomIdentity(row),
		Name:      row.Name,
		Code:      row.Code,
		Password:  row.Password.String,
		CreatedBy: row.CreatedBy,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (s *SQLiteRoomStore) InsertRoom(ctx context.Context, room Room) error {
	var password sql.NullString
	if room.Password != "" {
		password = sql.NullString{String: room.Password, Valid: true}
	}

	query := `INSERT INTO rooms (id, name, room_code, password, created_by, is_active, created_at)
	          VALUES (@id, @name, @room_code, @password, @created_by, @is_active, @created_at)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("id", room.ID), sql.Named("name", room.Name),
		sql.Named("room_code", room.Code), sql.Named("password", password),
		sql.Named("created_by", room.CreatedBy),
		sql.Named("is_active", room.Active),
		sql.Named("created_at", room.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("ExecContext(insert room): %w", err)
	}
	return nil
}

func (s *SQLiteRoomStore) DeleteRoom(ctx context.Context, roomID, createdBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM rooms WHERE id = @id AND created_by = @created_by",
		sql.Named("id", roomID), sql.Named("created_by", createdBy))
	if err != nil {
		return false, fmt.Errorf("ExecContext(delete room): %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("RowsAffected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteRoomStore) getRoom(ctx context.Context, where string, arg any) (*Room, error) {
	query := `SELECT id, name, room_code, password, created_by, is_active, created_at
	          FROM rooms WHERE ` + where + ` AND is_active = 1 LIMIT 1`
	var row roomRow
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&row.ID, &row.Name, &row.Code, &row.Password,
		&row.CreatedBy, &row.Active, &row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	room := row.room()
	return &room, nil
}

func (s *SQLiteRoomStore) GetRoomByID(ctx context.Context, roomID string) (*Room, error) {
	return s.getRoom(ctx, "id = ?", roomID)
}

func (s *SQLiteRoomStore) GetRoomByCode(ctx context.Context, code string) (*Room, error) {
	return s.getRoom(ctx, "room_code = ?", code)
}

func (s *SQLiteRoomStore) CodeExists(ctx context.Context, code string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rooms WHERE room_code = ?", code)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteRoomStore) InsertMembership(ctx context.Context, userID, roomID string) (*Membership, error) {
	membership := Membership{
		UserID:   userID,
		RoomID:   roomID,
		JoinedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_memberships (user_id, room_id, joined_at) VALUES (@user_id, @room_id, @joined_at)",
		sql.Named("user_id", userID), sql.Named("room_id", roomID),
		sql.Named("joined_at", membership.JoinedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("ExecContext(insert membership): %w", err)
	}
	return &membership, nil
}

func (s *SQLiteRoomStore) DeleteMembership(ctx context.Context, userID, roomID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM room_memberships WHERE user_id = @user_id AND room_id = @room_id",
		sql.Named("user_id", userID), sql.Named("room_id", roomID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete membership): %w", err)
	}
	return nil
}

func (s *SQLiteRoomStore) DeleteRoomMemberships(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM room_memberships WHERE room_id = @room_id",
		sql.Named("room_id", roomID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete room memberships): %w", err)
	}
	return nil
}

func (s *SQLiteRoomStore) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM room_memberships WHERE user_id = @user_id AND room_id = @room_id",
		sql.Named("user_id", userID), sql.Named("room_id", roomID))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteRoomStore) RoomsCreatedBy(ctx context.Context, userID string) ([]Room, error) {
	query := `SELECT id, name, room_code, password, created_by, is_active, created_at
	          FROM rooms WHERE created_by = ? AND is_active = 1
	          ORDER BY created_at`
	return s.queryRooms(ctx, query, false, userID)
}

func (s *SQLiteRoomStore) RoomsJoinedBy(ctx context.Context, userID string) ([]Room, error) {
	query := `SELECT m.room_id, r.id, r.name, r.room_code, r.password, r.created_by, r.is_active, r.created_at
	          FROM room_memberships m
	          JOIN rooms r ON r.id = m.room_id
	          WHERE m.user_id = ? AND r.is_active = 1
	          ORDER BY m.joined_at`
	return s.queryRooms(ctx, query, true, userID)
}

func (s *SQLiteRoomStore) queryRooms(ctx context.Context, query string, joined bool, args ...any) ([]Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var row roomRow
		var dest []any
		if joined {
			dest = []any{&row.RoomID, &row.ID, &row.Name, &row.Code, &row.Password, &row.CreatedBy, &row.Active, &row.CreatedAt}
		} else {
			dest = []any{&row.ID, &row.Name, &row.Code, &row.Password, &row.CreatedBy, &row.Active, &row.CreatedAt}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		rooms = append(rooms, row.room())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return rooms, nil
}
