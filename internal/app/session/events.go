package session

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/store"
)

// playbackLoop translates playback events into notifications and side effects.
func (m *Manager) playbackLoop() {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("session: playback loop panicked: %v", r)
			zlog.Info().Msg("session: restarting playback loop")
			m.wg.Add(1)
			go m.playbackLoop()
		}
	}()

	// set by TrackChanged, cleared once the track actually plays
	var pendingStart bool

	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.playback.Events():
			switch event.Type {
			case playback.EventTrackChanged:
				pendingStart = event.Track != nil
			case playback.EventStateChanged:
				if event.State == playback.StatePlaying && pendingStart && event.Track != nil {
					pendingStart = false
					m.onTrackStarted(*event.Track)
				}
			}
			m.handlePlaybackEvent(event)
		}
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	zlog.Debug().Msgf("session: playback event: type=%s state=%s", event.Type, event.State)

	switch event.Type {
	case playback.EventTrackChanged:
		m.onTrackChanged(event)

	case playback.EventStateChanged, playback.EventVolumeChanged, playback.EventModeChanged:
		n := notification.New(notification.TypeStateChanged)
		n.State = playerState(event)
		n.Track = event.Track
		m.notification.Broadcast(n)

	case playback.EventQueueChanged:
		n := notification.New(notification.TypeQueueChanged)
		n.Queue = event.Queue
		n.State = playerState(event)
		m.notification.Broadcast(n)

	case playback.EventQueueEnded:
		m.onQueueEnded()

	case playback.EventPlaybackFailed:
		m.onPlaybackFailed(event)
	}
}

func (m *Manager) onTrackChanged(event playback.Event) {
	n := notification.New(notification.TypeTrackChanged)
	n.Track = event.Track
	n.State = playerState(event)
	m.notification.Broadcast(n)

	if event.Track == nil {
		m.resetLyrics("")
	} else {
		m.resetLyrics(event.Track.ID())
		zlog.Info().Msgf("session: now loaded: id=%s title=%s", event.Track.ID(), event.Track.Track.Title)
		go m.loadSyncedLyrics(event.Track.ID())
	}
}

// onTrackStarted runs once per track, the first time it actually plays.
func (m *Manager) onTrackStarted(qt track.QueuedTrack) {
	if m.station != nil {
		m.station.NoteArtist(qt.Track.ArtistName())
	}
	go m.recordPlay(qt, time.Now())
}

// recordPlay writes the local play log and, while signed in, the backend history.
func (m *Manager) recordPlay(qt track.QueuedTrack, playedAt time.Time) {
	ctx, cancel := m.backendContext()
	defer cancel()

	var userID string
	if u := m.account.Session(); u != nil {
		userID = u.ID
	}
	if err := m.store.RecordPlay(ctx, store.Play{SongID: qt.ID(), UserID: userID, PlayedAt: playedAt}); err != nil {
		zlog.Warn().Msgf("session: failed to record local play: %v", err)
	}
	if userID == "" {
		return
	}
	if err := m.api.AddPlayHistory(ctx, userID, qt.ID(), playedAt); err != nil {
		zlog.Warn().Msgf("session: failed to record play history: song=%s err=%v", qt.ID(), err)
	}
}

func (m *Manager) onQueueEnded() {
	if m.station != nil {
		go m.fillFromRadio()
		return
	}
	m.notify(notification.LevelInfo, "queue_ended")
}

func (m *Manager) onPlaybackFailed(event playback.Event) {
	if event.Track != nil && !event.Track.Track.IsPlayable() {
		m.notify(notification.LevelWarning, "track_unplayable")
		return
	}
	zlog.Warn().Msgf("session: playback failed: %v", event.Err)
	m.notify(notification.LevelError, "playback_failed")
}

// progressLoop broadcasts the playback position while a track is playing.
func (m *Manager) progressLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ProgressInterval())
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if m.notification.SubscriberCount() == 0 {
				continue
			}
			if n := m.progressNotification(); n != nil {
				m.notification.Broadcast(n)
			}
		}
	}
}

func (m *Manager) progressNotification() *notification.Notification {
	p := m.playback.Progress()
	if p.State != playback.StatePlaying || p.TrackID == "" {
		return nil
	}

	progress := &notification.Progress{
		TrackID:    p.TrackID,
		PositionMs: p.Position.Milliseconds(),
		DurationMs: p.Duration.Milliseconds(),
	}
	if p.Duration > 0 {
		progress.Percent = float64(p.Position) / float64(p.Duration) * 100
	}
	if synced := m.currentSynced(); synced != nil && synced.SongID == p.TrackID {
		progress.LyricLine, _ = synced.TextAt(p.Position)
	}

	n := notification.New(notification.TypeProgress)
	n.Progress = progress
	return n
}

func playerState(e playback.Event) *notification.PlayerState {
	return &notification.PlayerState{
		Status:   e.State.String(),
		Cursor:   e.Cursor,
		Volume:   e.Volume,
		Muted:    e.Muted,
		Shuffled: e.Shuffled,
		Repeat:   e.Repeat.String(),
	}
}

// notify broadcasts a message notification whose text comes from the configuration.
func (m *Manager) notify(level notification.Level, code string) {
	m.notifyText(level, code, m.config.GetMessage(code))
}

func (m *Manager) notifyText(level notification.Level, code, text string) {
	m.notification.Broadcast(notification.NewMessage(level, code, text))
}

// StateNotification describes the whole player state. It is sent to a new
// subscriber before the live stream and carries the last broadcast sequence number.
func (m *Manager) StateNotification() *notification.Notification {
	snap := m.playback.Snapshot()
	n := notification.New(notification.TypeStateChanged)
	n.SequenceNo = m.notification.SequenceNo()
	n.Track = snap.Current
	n.Queue = snap.Queue
	n.State = &notification.PlayerState{
		Status:   snap.State.String(),
		Cursor:   snap.Cursor,
		Volume:   snap.Volume,
		Muted:    snap.Muted,
		Shuffled: snap.Shuffled,
		Repeat:   snap.Repeat.String(),
	}
	return n
}
