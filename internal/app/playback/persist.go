package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/store"
)

const persistTimeout = 2 * time.Second

// persistLocked writes the queue, cursor, modes and volume through to the store.
// Failures are logged; the in-memory state stays authoritative.
func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	set := func(key string, value any) {
		if err := c.store.Set(ctx, key, value); err != nil {
			zlog.Warn().Err(err).Msgf("playback: failed to persist %s", key)
		}
	}
	remove := func(key string) {
		if err := c.store.Remove(ctx, key); err != nil {
			zlog.Warn().Err(err).Msgf("playback: failed to remove %s", key)
		}
	}

	set(store.KeyVolume, c.volume)
	set(store.KeyShuffle, c.queue.Shuffled())
	set(store.KeyRepeat, c.queue.RepeatMode().String())
	set(store.KeyQueue, c.queue.Tracks())

	if c.queue.Shuffled() {
		set(store.KeyOriginalOrder, trackIDs(c.queue.OriginalOrder()))
	} else {
		remove(store.KeyOriginalOrder)
	}

	if cur, ok := c.queue.Current(); ok {
		set(store.KeyCurrentSong, cur.Track)
	} else {
		remove(store.KeyCurrentSong)
	}
}

// Restore loads the state saved by a previous run. Missing or corrupt entries
// fall back to defaults: volume DefaultVolume, repeat none, shuffle off, empty queue.
// The current track is loaded but not started.
func (c *Controller) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.exec(ctx, "restore", func() error {
		volume := c.config.DefaultVolume
		if ok := c.load(ctx, store.KeyVolume, &volume); !ok || volume < 0 || volume > 1 {
			volume = c.config.DefaultVolume
		}

		var shuffled bool
		if ok := c.load(ctx, store.KeyShuffle, &shuffled); !ok {
			shuffled = false
		}

		mode := queue.RepeatNone
		var repeat string
		if ok := c.load(ctx, store.KeyRepeat, &repeat); ok {
			parsed, err := queue.ParseRepeatMode(repeat)
			if err != nil {
				zlog.Warn().Err(err).Msg("playback: ignoring stored repeat mode")
			} else {
				mode = parsed
			}
		}

		var stored []track.QueuedTrack
		if ok := c.load(ctx, store.KeyQueue, &stored); !ok {
			stored = nil
		}
		tracks := make([]track.QueuedTrack, 0, len(stored))
		for _, qt := range stored {
			if qt.Track == nil {
				continue
			}
			if err := qt.Track.Validate(); err != nil {
				zlog.Warn().Err(err).Msg("playback: dropping stored track")
				continue
			}
			tracks = append(tracks, qt)
		}

		var originalIDs []string
		if shuffled {
			if ok := c.load(ctx, store.KeyOriginalOrder, &originalIDs); !ok {
				originalIDs = nil
			}
		}

		cursor := 0
		var current track.Track
		if ok := c.load(ctx, store.KeyCurrentSong, &current); ok {
			for i, qt := range tracks {
				if qt.ID() == current.ID {
					cursor = i
					break
				}
			}
		}

		c.queue.Restore(tracks, originalIDs, cursor, shuffled, mode)
		c.volume = volume
		c.muted = false
		if err := c.media.SetVolume(volume); err != nil {
			zlog.Warn().Err(err).Msg("playback: failed to apply restored volume")
		}

		zlog.Info().Msgf("playback: restored %d tracks (cursor %d, shuffle %t, repeat %s, volume %.2f)",
			c.queue.Len(), c.queue.Cursor(), shuffled, mode, volume)

		c.sendEventLocked(EventQueueChanged, nil)
		c.sendEventLocked(EventModeChanged, nil)
		c.sendEventLocked(EventVolumeChanged, nil)

		if c.queue.IsEmpty() {
			c.stopLocked(StateIdle)
			return nil
		}
		if _, err := c.loadCurrentLocked(false); err != nil && !errors.Is(err, ErrPlayback) {
			return err
		}
		return nil
	})
}

// load reads key into dst and reports whether a usable value was found.
func (c *Controller) load(ctx context.Context, key string, dst any) bool {
	found, err := c.store.Get(ctx, key, dst)
	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: ignoring stored %s", key)
		return false
	}
	return found
}

func trackIDs(list []track.QueuedTrack) []string {
	ids := make([]string, 0, len(list))
	for _, qt := range list {
		ids = append(ids, qt.ID())
	}
	return ids
}
