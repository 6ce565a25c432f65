package core

import (
	"context"
	"errors"
)

// UnknownUserLabel is displayed for authors whose profile cannot be resolved.
const UnknownUserLabel = "Unknown User"

// Account is a registered user, including the bcrypt-hashed password.
type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required,min=8"`
}

// Validate validates the signup input.
func (a *Account) Validate() error {
	return validate.Struct(a)
}

// Profile is the public projection of an account: what other users see as
// the author of a message.
type Profile struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// DisplayLabel returns the identity shown next to a message: the username
// when one is set, otherwise the email.
func (p Profile) DisplayLabel() string {
	if p.Username != "" {
		return p.Username
	}
	if p.Email != "" {
		return p.Email
	}
	return UnknownUserLabel
}

var (
	// ErrConflictedAccount is returned when the email is already registered.
	ErrConflictedAccount = errors.New("account already exists")
)

type ProfileStore interface {
	// CreateAccount registers an account, hashing its password, and returns
	// the resulting profile. If the email is taken it returns
	// ErrConflictedAccount.
	CreateAccount(ctx context.Context, account Account) (*Profile, error)

	// Authenticate verifies the email/password pair and returns the profile.
	// On mismatch or unknown email it returns ErrBadCredentials.
	Authenticate(ctx context.Context, email, password string) (*Profile, error)

	// GetProfile returns the profile for the user ID, or nil if absent.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// GetProfiles returns the profiles for the given user IDs. Unknown IDs
	// are simply missing from the result.
	GetProfiles(ctx context.Context, userIDs ...string) ([]Profile, error)

	// RoomMemberEmails returns the email of every member of the room,
	// including the creator.
	RoomMemberEmails(ctx context.Context, roomID string) ([]string, error)
}
