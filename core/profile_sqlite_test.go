package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ProfileFixture struct {
	*BaseFixture
	profileStore ProfileStore
	roomStore    RoomStore
}

func NewProfileFixture(t *testing.T) *ProfileFixture {
	base := NewBaseFixture(t)
	return &ProfileFixture{
		BaseFixture:  base,
		profileStore: NewSQLiteProfileStore(base.db),
		roomStore:    NewSQLiteRoomStore(base.db),
	}
}

var (
	alice = Account{Email: "alice@example.com", Username: "alice", Password: "password123"}
	bob   = Account{Email: "bob@example.com", Username: "", Password: "password123"}
)

func TestCreateAccount(t *testing.T) {
	t.Run("creates an account and returns its profile", func(t *testing.T) {
		f := NewProfileFixture(t)
		defer f.tearDown()

		profile, err := f.profileStore.CreateAccount(f.ctx, alice)
		require.Nil(t, err)
		require.NotNil(t, profile)
		assert.NotEmpty(t, profile.UserID)
		assert.Equal(t, alice.Email, profile.Email)
		assert.Equal(t, "alice", profile.DisplayLabel())
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := NewProfileFixture(t)
		defer f.tearDown()

		_, err := f.profileStore.CreateAccount(f.ctx, alice)
		require.Nil(t, err)

		_, err = f.profileStore.CreateAccount(f.ctx, alice)
		require.ErrorIs(t, err, ErrConflictedAccount)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		f := NewProfileFixture(t)
		defer f.tearDown()

		_, err := f.profileStore.CreateAccount(f.ctx, Account{Email: "not-an-email", Password: "password123"})
		require.NotNil(t, err)

		_, err = f.profileStore.CreateAccount(f.ctx, Account{Email: "ok@example.com", Password: "short"})
		require.NotNil(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		f := NewProfileFixture(t)
		defer f.tearDown()
		seeded := seedAccounts(f.ctx, f.t, f.profileStore, alice)

		profile, err := f.profileStore.Authenticate(f.ctx, alice.Email, alice.Password)
		require.Nil(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, seeded[0].UserID, profile.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := NewProfileFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.profileStore, alice)

		_, err := f.profileStore.Authenticate(f.ctx, alice.Email, "wrong-password")
		require.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := NewProfileFixture(t)
		defer f.tearDown()

		_, err := f.profileStore.Authenticate(f.ctx, "nobody@example.com", "password123")
		require.ErrorIs(t, err, ErrBadCredentials)
	})
}

func TestGetProfiles(t *testing.T) {
	f := NewProfileFixture(t)
	defer f.tearDown()
	seeded := seedAccounts(f.ctx, f.t, f.profileStore, alice, bob)

	profiles, err := f.profileStore.GetProfiles(f.ctx, seeded[0].UserID, seeded[1].UserID, "unknown-id")
	require.Nil(t, err)
	require.Len(t, profiles, 2)

	single, err := f.profileStore.GetProfile(f.ctx, seeded[1].UserID)
	require.Nil(t, err)
	require.NotNil(t, single)
	// No username set, so the email is the display label.
	assert.Equal(t, bob.Email, single.DisplayLabel())

	missing, err := f.profileStore.GetProfile(f.ctx, "unknown-id")
	require.Nil(t, err)
	assert.Nil(t, missing)
}

func TestRoomMemberEmails(t *testing.T) {
	f := NewProfileFixture(t)
	defer f.tearDown()
	seeded := seedAccounts(f.ctx, f.t, f.profileStore, alice, bob)

	room := seedRoom(f.ctx, f.t, f.roomStore, seeded[0].UserID, "General", "")
	_, err := f.roomStore.InsertMembership(f.ctx, seeded[1].UserID, room.ID)
	require.Nil(t, err)

	emails, err := f.profileStore.RoomMemberEmails(f.ctx, room.ID)
	require.Nil(t, err)
	// The creator is included even without an explicit membership row.
	assert.ElementsMatch(t, []string{alice.Email, bob.Email}, emails)
}
