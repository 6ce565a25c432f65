package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type SQLiteProfileStore struct {
	db *sql.DB
}

func NewSQLiteProfileStore(db *sql.DB) *SQLiteProfileStore {
	return &SQLiteProfileStore{db: db}
}

func (s *SQLiteProfileStore) CreateAccount(ctx context.Context, account Account) (*Profile, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO profiles (id, email, username, password) VALUES (@id, @email, @username, @password)",
		sql.Named("id", id), sql.Named("email", account.Email),
		sql.Named("username", account.Username), sql.Named("password", string(hashed)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflictedAccount
		}
		return nil, fmt.Errorf("ExecContext(insert profile): %w", err)
	}

	return &Profile{UserID: id, Email: account.Email, Username: account.Username}, nil
}

func (s *SQLiteProfileStore) Authenticate(ctx context.Context, email, password string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, username, password FROM profiles WHERE email = ? LIMIT 1", email)

	var profile Profile
	var hashed string
	if err := row.Scan(&profile.UserID, &profile.Email, &profile.Username, &hashed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("scanning profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return &profile, nil
}

func (s *SQLiteProfileStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, username FROM profiles WHERE id = ? LIMIT 1", userID)

	profile := new(Profile)
	if err := row.Scan(&profile.UserID, &profile.Email, &profile.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning profile: %w", err)
	}
	return profile, nil
}

func (s *SQLiteProfileStore) GetProfiles(ctx context.Context, userIDs ...string) ([]Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	values := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		values = append(values, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, username FROM profiles WHERE id IN ("+strings.Repeat("?,", len(userIDs)-1)+"?)",
		values...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.UserID, &p.Email, &p.Username); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return profiles, nil
}

// RoomMemberEmails returns member emails for a room, creator included,
// deduplicated.
func (s *SQLiteProfileStore) RoomMemberEmails(ctx context.Context, roomID string) ([]string, error) {
	query := `SELECT DISTINCT p.email
	          FROM profiles p
	          WHERE p.id IN (
	              SELECT m.user_id FROM room_memberships m WHERE m.room_id = @room_id
	              UNION
	              SELECT r.created_by FROM rooms r WHERE r.id = @room_id
	          )
	          ORDER BY p.email`
	rows, err := s.db.QueryContext(ctx, query, sql.Named("room_id", roomID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return emails, nil
}
