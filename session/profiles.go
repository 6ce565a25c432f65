package session

import (
	"context"
	"log/slog"

	"github.com/warasin/roomsync/core"
)

// ProfileCache lazily maps author IDs to display identities for one open
// chat session. Entries are merged by key: a bulk fetch after the history
// load and per-event fetches run independently and must not clobber each
// other. Nothing is evicted for the lifetime of the session.
type ProfileCache struct {
	store  core.ProfileStore
	cache  *core.SyncMap[string, core.Profile]
	logger *slog.Logger
}

func NewProfileCache(store core.ProfileStore, logger *slog.Logger) *ProfileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileCache{
		store:  store,
		cache:  core.NewSyncMap[string, core.Profile](),
		logger: logger,
	}
}

// Label returns the display label for the user, or the unknown-user
// placeholder when no profile is cached.
func (c *ProfileCache) Label(userID string) string {
	profile, ok := c.cache.Load(userID)
	if !ok {
		return core.UnknownUserLabel
	}
	return profile.DisplayLabel()
}

// Prime bulk-fetches profiles for the given IDs and merges them into the
// cache. IDs the store does not know stay absent; Label falls back for them.
func (c *ProfileCache) Prime(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	profiles, err := c.store.GetProfiles(ctx, userIDs...)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		c.cache.LoadOrStore(p.UserID, p)
	}
	return nil
}

// Ensure makes sure an entry exists for the user before their message is
// appended, fetching it on a miss. When the fetch fails or comes back
// empty a placeholder entry is cached so the author renders as
// "Unknown User" instead of being re-fetched per event.
func (c *ProfileCache) Ensure(ctx context.Context, userID string) {
	if _, ok := c.cache.Load(userID); ok {
		return
	}

	profile, err := c.store.GetProfile(ctx, userID)
	if err != nil {
		c.logger.Warn("profile fetch failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
	if profile == nil {
		c.cache.LoadOrStore(userID, core.Profile{UserID: userID})
		return
	}
	c.cache.LoadOrStore(userID, *profile)
}

func (c *ProfileCache) Len() int {
	return c.cache.Len()
}
