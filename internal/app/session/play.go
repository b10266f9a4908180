package session

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/app/radio"
	"github.com/osa030/streambox/internal/domain/track"
)

// radioSeedCount is the number of recent tracks handed to the radio providers.
const radioSeedCount = 3

// PlaySong plays a catalog song, appending it to the queue when it is not queued.
func (m *Manager) PlaySong(ctx context.Context, songID string) error {
	for _, qt := range m.playback.Snapshot().Queue {
		if qt.ID() == songID {
			return m.report(m.playback.Play(ctx, qt))
		}
	}

	t, err := m.api.Song(ctx, songID)
	if err != nil {
		return m.report(err)
	}
	qt, err := m.admit(ctx, t, track.SourceUser)
	if err != nil {
		return m.report(err)
	}
	zlog.Info().Msgf("session: play song: id=%s title=%s", t.ID, t.Title)
	return m.report(m.playback.Play(ctx, qt))
}

// EnqueueSong appends a catalog song to the queue after the filters accept it.
func (m *Manager) EnqueueSong(ctx context.Context, songID string) error {
	t, err := m.api.Song(ctx, songID)
	if err != nil {
		return m.report(err)
	}
	qt, err := m.admit(ctx, t, track.SourceUser)
	if err != nil {
		return m.report(err)
	}
	added, err := m.playback.Append(ctx, qt)
	if err != nil {
		return m.report(err)
	}
	if !added {
		return m.report(&RejectedError{SongID: songID, Result: filter.Result{Code: filter.CodeDuplicateTrack, Filter: "queue"}})
	}
	zlog.Info().Msgf("session: enqueued: id=%s title=%s", t.ID, t.Title)
	m.notify(notification.LevelSuccess, "added_to_queue")
	return nil
}

// admit runs the filter chain for t.
func (m *Manager) admit(ctx context.Context, t *track.Track, source track.Source) (track.QueuedTrack, error) {
	u := m.account.Session()
	req := filter.TrackRequest{TrackID: t.ID, Source: source}
	if u != nil {
		req.UserID = u.ID
	}
	result := m.filterChain.Execute(ctx, req, t, u)
	zlog.Debug().Msgf("session: track request: track=%s source=%s accepted=%t code=%s", t.ID, source, result.Accepted, result.Code)
	if !result.Accepted {
		return track.QueuedTrack{}, &RejectedError{SongID: t.ID, Result: result}
	}
	return track.NewQueued(t, source), nil
}

// PlayPlaylist replaces the queue with a playlist and plays it from start.
func (m *Manager) PlayPlaylist(ctx context.Context, playlistID string, start int) error {
	tracks, err := m.api.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return m.report(err)
	}
	zlog.Info().Msgf("session: play playlist: id=%s tracks=%d", playlistID, len(tracks))
	return m.report(m.loadList(ctx, tracks, start, track.SourcePlaylist))
}

// PlayFavorites replaces the queue with the user's favorites.
func (m *Manager) PlayFavorites(ctx context.Context) error {
	tracks, err := m.Favorites(ctx)
	if err != nil {
		return err
	}
	return m.report(m.loadList(ctx, tracks, 0, track.SourceFavorites))
}

// loadList queues the playable tracks and plays the one that was at start,
// or the first playable one after it.
func (m *Manager) loadList(ctx context.Context, tracks []*track.Track, start int, source track.Source) error {
	if start < 0 || start >= len(tracks) {
		if len(tracks) == 0 {
			return errors.Wrap(ErrNothingToPlay, "empty list")
		}
		return errors.Wrapf(queue.ErrOutOfRange, "index %d, length %d", start, len(tracks))
	}

	list := make([]track.QueuedTrack, 0, len(tracks))
	startAt := -1
	for i, t := range tracks {
		if !t.IsPlayable() {
			continue
		}
		if startAt < 0 && i >= start {
			startAt = len(list)
		}
		list = append(list, track.NewQueued(t, source))
	}
	if len(list) == 0 {
		return errors.Wrap(ErrNothingToPlay, "no playable track")
	}
	if startAt < 0 {
		startAt = 0
	}
	return m.playback.Load(ctx, list, startAt)
}

// ToggleShuffle flips shuffle and announces the new setting.
func (m *Manager) ToggleShuffle(ctx context.Context) (bool, error) {
	on, err := m.playback.ToggleShuffle(ctx)
	if err != nil {
		return false, m.report(err)
	}
	if on {
		m.notify(notification.LevelInfo, "shuffle_on")
	} else {
		m.notify(notification.LevelInfo, "shuffle_off")
	}
	return on, nil
}

// CycleRepeatMode advances the repeat mode and announces it.
func (m *Manager) CycleRepeatMode(ctx context.Context) (queue.RepeatMode, error) {
	mode, err := m.playback.CycleRepeatMode(ctx)
	if err != nil {
		return mode, m.report(err)
	}
	m.notify(notification.LevelInfo, "repeat_"+mode.String())
	return mode, nil
}

// ClearQueue stops playback and empties the queue.
func (m *Manager) ClearQueue(ctx context.Context) error {
	if err := m.playback.Clear(ctx); err != nil {
		return m.report(err)
	}
	m.notify(notification.LevelInfo, "queue_cleared")
	return nil
}

// fillFromRadio appends and plays one radio track after the queue ran out.
// Only one fill runs at a time.
func (m *Manager) fillFromRadio() {
	m.radioMu.Lock()
	if m.radioFilling {
		m.radioMu.Unlock()
		return
	}
	m.radioFilling = true
	m.radioMu.Unlock()
	defer func() {
		m.radioMu.Lock()
		m.radioFilling = false
		m.radioMu.Unlock()
	}()

	ctx, cancel := m.backendContext()
	defer cancel()

	snap := m.playback.Snapshot()
	candidate, err := m.station.Next(ctx, recentTracks(snap.Queue, radioSeedCount), snap.Queue, m.account.Session())
	if err != nil {
		if errors.Is(err, radio.ErrNoCandidates) {
			zlog.Warn().Msg("session: no suitable radio candidates")
		} else {
			zlog.Error().Msgf("session: radio failed: %v", err)
		}
		m.notify(notification.LevelInfo, "queue_ended")
		return
	}

	// someone may have queued or played something meanwhile
	if cur := m.playback.Snapshot(); cur.State.HasTrack() || len(cur.Queue) != len(snap.Queue) {
		zlog.Info().Msg("session: skipping radio track: queue changed")
		return
	}

	if last := lastSource(snap.Queue); last != track.SourceRadio {
		m.notify(notification.LevelInfo, "radio_started")
	}
	zlog.Info().Msgf("session: radio track: id=%s title=%s provider=%s", candidate.Track.ID, candidate.Track.Title, candidate.DisplayName)
	if err := m.playback.Play(ctx, track.NewQueued(candidate.Track, track.SourceRadio)); err != nil {
		zlog.Warn().Msgf("session: radio play failed: %v", err)
	}
}

// recentTracks returns up to n tracks from the end of the queue, most recent first.
func recentTracks(queued []track.QueuedTrack, n int) []*track.Track {
	seeds := make([]*track.Track, 0, n)
	for i := len(queued) - 1; i >= 0 && len(seeds) < n; i-- {
		seeds = append(seeds, queued[i].Track)
	}
	return seeds
}

func lastSource(queued []track.QueuedTrack) track.Source {
	if len(queued) == 0 {
		return ""
	}
	return queued[len(queued)-1].Source
}
