package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/domain/track"
)

// Play makes qt the current track and starts it, appending it to the queue if
// it is not queued yet. It waits until the media element has started playing.
// A play that is superseded by a later command returns nil.
func (c *Controller) Play(ctx context.Context, qt track.QueuedTrack) error {
	if qt.Track == nil {
		return errors.Mark(errors.New("no track given"), ErrPlayback)
	}

	var wait <-chan error
	err := c.exec(ctx, "play", func() error {
		idx := c.queue.IndexOf(qt.ID())
		if idx < 0 {
			c.queue.Append(qt)
			idx = c.queue.Len() - 1
			c.sendEventLocked(EventQueueChanged, nil)
		}
		if err := c.queue.JumpTo(idx); err != nil {
			return err
		}
		var err error
		wait, err = c.loadCurrentLocked(true)
		return err
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

// JumpTo plays the queued track at index.
func (c *Controller) JumpTo(ctx context.Context, index int) error {
	var wait <-chan error
	err := c.exec(ctx, "jump", func() error {
		if err := c.queue.JumpTo(index); err != nil {
			return err
		}
		var err error
		wait, err = c.loadCurrentLocked(true)
		return err
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

// TogglePlayPause pauses a playing track or starts a loaded / paused one.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	var wait <-chan error
	err := c.exec(ctx, "toggle", func() error {
		if c.currentLocked() == nil {
			return ErrNoActiveTrack
		}
		if c.isPlayingLocked() {
			return c.pauseLocked()
		}
		var err error
		wait, err = c.resumeLocked()
		return err
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

// Pause pauses the current track. Pausing a track that is not playing is a no-op.
func (c *Controller) Pause(ctx context.Context) error {
	return c.exec(ctx, "pause", func() error {
		if c.currentLocked() == nil {
			return ErrNoActiveTrack
		}
		if !c.isPlayingLocked() {
			return nil
		}
		return c.pauseLocked()
	})
}

// Resume starts the current track if it is not playing.
func (c *Controller) Resume(ctx context.Context) error {
	var wait <-chan error
	err := c.exec(ctx, "resume", func() error {
		if c.currentLocked() == nil {
			return ErrNoActiveTrack
		}
		if c.isPlayingLocked() {
			return nil
		}
		var err error
		wait, err = c.resumeLocked()
		return err
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

func (c *Controller) pauseLocked() error {
	c.cancelPendingLocked()
	if err := c.media.Pause(); err != nil {
		return c.failLocked(errors.Wrap(err, "pause"))
	}
	c.setStateLocked(StatePaused)
	return nil
}

func (c *Controller) resumeLocked() (<-chan error, error) {
	if !c.loaded {
		// The previous load failed; try again so the failure is reported for this track.
		return c.loadCurrentLocked(true)
	}
	return c.startPlayLocked(), nil
}

// Stop pauses and rewinds the current track.
func (c *Controller) Stop(ctx context.Context) error {
	return c.exec(ctx, "stop", func() error {
		if c.currentLocked() == nil {
			return nil
		}
		c.stopLocked(StateLoaded)
		if c.loaded {
			_ = c.media.Seek(0)
		}
		return nil
	})
}

// Next skips to the following track, keeping the current playing / not playing state.
// With repeat one the current track restarts. At the end of the queue with
// repeat none the last track is rewound and left loaded.
func (c *Controller) Next(ctx context.Context) error {
	var wait <-chan error
	err := c.exec(ctx, "next", func() error {
		if c.queue.IsEmpty() {
			return ErrNoActiveTrack
		}
		wasPlaying := c.isPlayingLocked()

		switch c.queue.Advance() {
		case queue.StepMoved:
			var err error
			wait, err = c.loadCurrentLocked(wasPlaying)
			return err
		case queue.StepRestart:
			var err error
			wait, err = c.restartLocked(wasPlaying)
			return err
		default:
			c.stopLocked(StateLoaded)
			if c.loaded {
				_ = c.media.Seek(0)
			}
			c.persistLocked()
			c.sendEventLocked(EventQueueEnded, nil)
			return nil
		}
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

// Previous goes back one track, or restarts the current one when it has
// played past the restart threshold.
func (c *Controller) Previous(ctx context.Context) error {
	var wait <-chan error
	err := c.exec(ctx, "previous", func() error {
		if c.queue.IsEmpty() {
			return ErrNoActiveTrack
		}
		wasPlaying := c.isPlayingLocked()

		var elapsed time.Duration
		if c.loaded {
			elapsed = c.media.CurrentTime()
		}

		var err error
		switch c.queue.Retreat(elapsed) {
		case queue.StepMoved:
			wait, err = c.loadCurrentLocked(wasPlaying)
		default:
			wait, err = c.restartLocked(wasPlaying)
		}
		return err
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

func (c *Controller) restartLocked(play bool) (<-chan error, error) {
	if !c.loaded || c.currentLocked() == nil {
		return c.loadCurrentLocked(play)
	}
	if err := c.media.Seek(0); err != nil {
		return nil, c.failLocked(errors.Wrap(err, "restart track"))
	}
	if play && c.state != StatePlaying {
		return c.startPlayLocked(), nil
	}
	return nil, nil
}

// Seek moves to pos within the current track, clamped to the track length.
func (c *Controller) Seek(ctx context.Context, pos time.Duration) error {
	return c.exec(ctx, "seek", func() error {
		return c.seekLocked(func(time.Duration, time.Duration) time.Duration { return pos })
	})
}

// SeekPercent moves to the given fraction (0..1) of the current track.
func (c *Controller) SeekPercent(ctx context.Context, fraction float64) error {
	return c.exec(ctx, "seek_percent", func() error {
		return c.seekLocked(func(_, total time.Duration) time.Duration {
			return time.Duration(clampUnit(fraction) * float64(total))
		})
	})
}

// SeekStep moves by steps times the configured seek step (negative goes back).
func (c *Controller) SeekStep(ctx context.Context, steps int) error {
	return c.exec(ctx, "seek_step", func() error {
		return c.seekLocked(func(current, _ time.Duration) time.Duration {
			return current + time.Duration(steps)*c.config.SeekStep
		})
	})
}

func (c *Controller) seekLocked(target func(current, total time.Duration) time.Duration) error {
	cur := c.currentLocked()
	if cur == nil || !c.loaded {
		return ErrNoActiveTrack
	}
	total := c.media.Duration()
	if total <= 0 {
		total = cur.Track.Duration
	}

	pos := target(c.media.CurrentTime(), total)
	if pos < 0 {
		pos = 0
	}
	if total > 0 && pos > total {
		pos = total
	}
	if err := c.media.Seek(pos); err != nil {
		return c.failLocked(errors.Wrap(err, "seek"))
	}
	return nil
}

// SetVolume sets the volume, clamped to [0, 1]. Setting a volume unmutes.
func (c *Controller) SetVolume(ctx context.Context, v float64) error {
	return c.exec(ctx, "volume", func() error {
		c.muted = false
		return c.applyVolumeLocked(v)
	})
}

// VolumeUp raises the volume by one step.
func (c *Controller) VolumeUp(ctx context.Context) error {
	return c.exec(ctx, "volume_up", func() error {
		base := c.volume
		if c.muted {
			base = c.preMuteVolume
			c.muted = false
		}
		return c.applyVolumeLocked(base + c.config.VolumeStep)
	})
}

// VolumeDown lowers the volume by one step.
func (c *Controller) VolumeDown(ctx context.Context) error {
	return c.exec(ctx, "volume_down", func() error {
		if c.muted {
			return nil
		}
		return c.applyVolumeLocked(c.volume - c.config.VolumeStep)
	})
}

// ToggleMute mutes, remembering the volume, or restores the remembered volume.
func (c *Controller) ToggleMute(ctx context.Context) error {
	return c.exec(ctx, "mute", func() error {
		if c.muted {
			c.muted = false
			restore := c.preMuteVolume
			if restore <= 0 {
				restore = c.config.DefaultVolume
			}
			return c.applyVolumeLocked(restore)
		}
		c.preMuteVolume = c.volume
		c.muted = true
		return c.applyVolumeLocked(0)
	})
}

func (c *Controller) applyVolumeLocked(v float64) error {
	v = clampUnit(v)
	if err := c.media.SetVolume(v); err != nil {
		return errors.Wrap(err, "set volume")
	}
	c.volume = v
	c.sendEventLocked(EventVolumeChanged, nil)
	c.persistLocked()
	return nil
}

// Append adds qt to the end of the queue. It returns false if the track was already queued.
func (c *Controller) Append(ctx context.Context, qt track.QueuedTrack) (bool, error) {
	var inserted bool
	err := c.exec(ctx, "append", func() error {
		inserted = c.queue.Append(qt)
		if !inserted {
			zlog.Debug().Msgf("playback: %s already queued", qt.ID())
			return nil
		}
		c.sendEventLocked(EventQueueChanged, nil)
		c.persistLocked()
		return nil
	})
	return inserted, err
}

// RemoveAt removes the queued track at index. Removing the current track
// loads the following one, keeping the playing / not playing state.
func (c *Controller) RemoveAt(ctx context.Context, index int) (track.QueuedTrack, error) {
	var removed track.QueuedTrack
	var wait <-chan error
	err := c.exec(ctx, "remove", func() error {
		wasCurrent := c.state.HasTrack() && index == c.queue.Cursor()
		wasPlaying := c.isPlayingLocked()

		var err error
		removed, err = c.queue.RemoveAt(index)
		if err != nil {
			return err
		}
		c.sendEventLocked(EventQueueChanged, nil)

		if !wasCurrent {
			c.persistLocked()
			return nil
		}
		if c.queue.IsEmpty() {
			c.stopLocked(StateIdle)
			c.persistLocked()
			return nil
		}
		wait, err = c.loadCurrentLocked(wasPlaying)
		return err
	})
	if err != nil {
		return removed, err
	}
	return removed, c.await(ctx, wait)
}

// Clear stops playback and empties the queue.
func (c *Controller) Clear(ctx context.Context) error {
	return c.exec(ctx, "clear", func() error {
		c.stopLocked(StateIdle)
		c.queue.Clear()
		c.sendEventLocked(EventQueueChanged, nil)
		c.persistLocked()
		return nil
	})
}

// Load replaces the queue with list and plays list[start].
// With shuffle on, list[start] plays first and the rest is shuffled behind it.
// Duplicate IDs in list keep their first occurrence.
func (c *Controller) Load(ctx context.Context, list []track.QueuedTrack, start int) error {
	if start < 0 || start >= len(list) {
		return errors.Wrapf(queue.ErrOutOfRange, "index %d, length %d", start, len(list))
	}

	var wait <-chan error
	err := c.exec(ctx, "load", func() error {
		shuffled := c.queue.Shuffled()
		c.stopLocked(StateIdle)
		c.queue.SetShuffled(false)
		c.queue.Clear()
		for _, qt := range list {
			c.queue.Append(qt)
		}
		if c.queue.IsEmpty() {
			c.sendEventLocked(EventQueueChanged, nil)
			c.persistLocked()
			return errors.Mark(errors.New("no playable track in list"), ErrPlayback)
		}
		idx := c.queue.IndexOf(list[start].ID())
		if idx < 0 {
			idx = 0
		}
		if err := c.queue.JumpTo(idx); err != nil {
			return err
		}
		c.queue.SetShuffled(shuffled)
		c.sendEventLocked(EventQueueChanged, nil)

		var err error
		wait, err = c.loadCurrentLocked(true)
		return err
	})
	if err != nil {
		return err
	}
	return c.await(ctx, wait)
}

// SetShuffled turns shuffle on or off. The current track keeps playing.
func (c *Controller) SetShuffled(ctx context.Context, on bool) error {
	return c.exec(ctx, "shuffle", func() error {
		c.setShuffledLocked(on)
		return nil
	})
}

// ToggleShuffle flips shuffle and returns the new setting.
func (c *Controller) ToggleShuffle(ctx context.Context) (bool, error) {
	var on bool
	err := c.exec(ctx, "toggle_shuffle", func() error {
		on = !c.queue.Shuffled()
		c.setShuffledLocked(on)
		return nil
	})
	return on, err
}

func (c *Controller) setShuffledLocked(on bool) {
	if c.queue.Shuffled() == on {
		return
	}
	c.queue.SetShuffled(on)
	c.sendEventLocked(EventModeChanged, nil)
	c.sendEventLocked(EventQueueChanged, nil)
	c.persistLocked()
}

// SetRepeatMode sets the repeat mode.
func (c *Controller) SetRepeatMode(ctx context.Context, mode queue.RepeatMode) error {
	return c.exec(ctx, "repeat", func() error {
		c.queue.SetRepeatMode(mode)
		c.sendEventLocked(EventModeChanged, nil)
		c.persistLocked()
		return nil
	})
}

// CycleRepeatMode advances none → all → one → none and returns the new mode.
func (c *Controller) CycleRepeatMode(ctx context.Context) (queue.RepeatMode, error) {
	var mode queue.RepeatMode
	err := c.exec(ctx, "cycle_repeat", func() error {
		mode = c.queue.CycleRepeatMode()
		c.sendEventLocked(EventModeChanged, nil)
		c.persistLocked()
		return nil
	})
	return mode, err
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
