// Package store provides the key/value persistence used to carry player state
// across restarts, plus a small local play log.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Keys used by the application.
const (
	KeyUser          = "music_app_user"
	KeyTheme         = "music_app_theme"
	KeyVolume        = "music_app_volume"
	KeyQueue         = "music_app_queue"
	KeyOriginalOrder = "music_app_original_order"
	KeyCurrentSong   = "music_app_current_song"
	KeyShuffle       = "music_app_shuffle"
	KeyRepeat        = "music_app_repeat"
	KeyFavorites     = "music_app_favorites"
)

// Driver names accepted by New.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

var (
	// ErrCorrupt is returned by Get when a stored value cannot be decoded into dst.
	ErrCorrupt = errors.New("corrupt stored value")
	// ErrUnknownDriver is returned by New for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Store is a JSON key/value store.
type Store interface {
	// Get decodes the value stored under key into dst.
	// It returns false when the key is absent. A value that cannot be decoded
	// returns true together with an error marked ErrCorrupt.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Play is one entry in the local play log.
type Play struct {
	SongID   string
	UserID   string
	PlayedAt time.Time
}

// PlayLog records tracks as they start playing.
type PlayLog interface {
	RecordPlay(ctx context.Context, p Play) error
	// RecentPlays returns up to limit entries, newest first.
	RecentPlays(ctx context.Context, limit int) ([]Play, error)
}

// Backend is a Store that also keeps a play log.
type Backend interface {
	Store
	PlayLog
}

// New creates a backend for the given driver.
func New(driver, path string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", driver)
	}
}
