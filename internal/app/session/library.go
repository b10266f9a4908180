package session

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/domain/lyrics"
	"github.com/osa030/streambox/internal/domain/playlist"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/store"
)

// Search lists catalog songs matching q.
func (m *Manager) Search(ctx context.Context, q api.SongQuery) ([]*track.Track, error) {
	tracks, err := m.api.Songs(ctx, q)
	if err != nil {
		return nil, m.report(err)
	}
	return tracks, nil
}

// Song fetches a single song.
func (m *Manager) Song(ctx context.Context, id string) (*track.Track, error) {
	t, err := m.api.Song(ctx, id)
	if err != nil {
		return nil, m.report(err)
	}
	return t, nil
}

// Genres lists catalog genres.
func (m *Manager) Genres(ctx context.Context) ([]api.Genre, error) {
	genres, err := m.api.Genres(ctx)
	return genres, m.report(err)
}

// Artists lists catalog artists.
func (m *Manager) Artists(ctx context.Context) ([]api.Artist, error) {
	artists, err := m.api.Artists(ctx)
	return artists, m.report(err)
}

// Albums lists catalog albums.
func (m *Manager) Albums(ctx context.Context) ([]api.Album, error) {
	albums, err := m.api.Albums(ctx)
	return albums, m.report(err)
}

// Playlists lists the playlists visible to the user.
func (m *Manager) Playlists(ctx context.Context) ([]*playlist.Playlist, error) {
	lists, err := m.api.Playlists(ctx)
	return lists, m.report(err)
}

// PlaylistTracks lists the songs of a playlist.
func (m *Manager) PlaylistTracks(ctx context.Context, playlistID string) ([]*track.Track, error) {
	tracks, err := m.api.PlaylistSongs(ctx, playlistID)
	return tracks, m.report(err)
}

// CreatePlaylist creates a playlist owned by the signed-in user.
func (m *Manager) CreatePlaylist(ctx context.Context, name, description string) (*playlist.Playlist, error) {
	u, err := m.requireUser()
	if err != nil {
		return nil, m.report(err)
	}
	p, err := m.api.CreatePlaylist(ctx, u.ID, name, description)
	if err != nil {
		return nil, m.report(err)
	}
	m.notify(notification.LevelSuccess, "playlist_updated")
	return p, nil
}

// DeletePlaylist deletes a playlist.
func (m *Manager) DeletePlaylist(ctx context.Context, playlistID string) error {
	return m.editPlaylist(func() error { return m.api.DeletePlaylist(ctx, playlistID) })
}

// AddToPlaylist adds a song to a playlist.
func (m *Manager) AddToPlaylist(ctx context.Context, playlistID, songID string) error {
	return m.editPlaylist(func() error { return m.api.AddSongToPlaylist(ctx, playlistID, songID) })
}

// RemoveFromPlaylist removes a song from a playlist.
func (m *Manager) RemoveFromPlaylist(ctx context.Context, playlistID, songID string) error {
	return m.editPlaylist(func() error { return m.api.RemoveSongFromPlaylist(ctx, playlistID, songID) })
}

func (m *Manager) editPlaylist(fn func() error) error {
	if _, err := m.requireUser(); err != nil {
		return m.report(err)
	}
	if err := fn(); err != nil {
		return m.report(err)
	}
	m.notify(notification.LevelSuccess, "playlist_updated")
	return nil
}

// History returns the signed-in user's play history from the backend.
func (m *Manager) History(ctx context.Context) ([]api.HistoryEntry, error) {
	u, err := m.requireUser()
	if err != nil {
		return nil, m.report(err)
	}
	entries, err := m.api.PlayHistory(ctx, u.ID)
	return entries, m.report(err)
}

// RecentPlays returns the local play log, newest first.
func (m *Manager) RecentPlays(ctx context.Context, limit int) ([]store.Play, error) {
	plays, err := m.store.RecentPlays(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read play log")
	}
	return plays, nil
}

// Lyrics fetches the plain lyrics of a song.
func (m *Manager) Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error) {
	l, err := m.api.Lyrics(ctx, songID)
	if err != nil {
		return nil, m.report(err)
	}
	return l, nil
}

// CurrentLyrics returns the synced lyrics of the current track, if loaded.
func (m *Manager) CurrentLyrics() *lyrics.Synced {
	return m.currentSynced()
}

func (m *Manager) loadSyncedLyrics(songID string) {
	ctx, cancel := m.backendContext()
	defer cancel()

	synced, err := m.api.SyncedLyrics(ctx, songID)
	if err != nil {
		if api.HTTPStatus(err) != 404 && !errors.Is(err, api.ErrNotFound) {
			zlog.Debug().Msgf("session: no synced lyrics for %s: %v", songID, err)
		}
		return
	}
	if synced.IsEmpty() {
		return
	}

	m.lyricsMu.Lock()
	defer m.lyricsMu.Unlock()
	// the track may have changed while the lyrics were loading
	if m.lyricsFor == songID {
		m.synced = synced
	}
}

// resetLyrics drops the synced lyrics and expects the ones of songID next.
func (m *Manager) resetLyrics(songID string) {
	m.lyricsMu.Lock()
	defer m.lyricsMu.Unlock()
	m.synced = nil
	m.lyricsFor = songID
}

func (m *Manager) currentSynced() *lyrics.Synced {
	m.lyricsMu.RLock()
	defer m.lyricsMu.RUnlock()
	return m.synced
}
