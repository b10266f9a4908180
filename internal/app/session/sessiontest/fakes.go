// Package sessiontest provides in-memory collaborators for tests that drive a
// session.Manager.
package sessiontest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/domain/lyrics"
	"github.com/osa030/streambox/internal/domain/playlist"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/media"
)

// UserID is the account ID every successful login returns.
const UserID = "5"

// Song builds a three minute test track. Unplayable tracks have no audio URL.
func Song(id, artist string, playable bool) *track.Track {
	t := &track.Track{
		ID:       id,
		Title:    "Song " + id,
		Artist:   track.ArtistRef{ID: artist, Name: artist},
		Duration: 3 * time.Minute,
	}
	if playable {
		t.AudioURL = "http://audio.example.com/" + id + ".mp3"
	}
	return t
}

// API is an in-memory catalog backend.
type API struct {
	mu        sync.Mutex
	songs     map[string]*track.Track
	playlists map[string][]*track.Track
	favorites map[string][]string
	history   []string
	synced    map[string]*lyrics.Synced
	loginErr  error
}

// NewAPI creates a backend holding songs.
func NewAPI(songs ...*track.Track) *API {
	a := &API{
		songs:     make(map[string]*track.Track),
		playlists: make(map[string][]*track.Track),
		favorites: make(map[string][]string),
		synced:    make(map[string]*lyrics.Synced),
	}
	for _, s := range songs {
		a.songs[s.ID] = s
	}
	return a
}

// SetPlaylist stores a playlist.
func (a *API) SetPlaylist(id string, tracks ...*track.Track) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playlists[id] = tracks
}

// SetFavorites replaces a user's favorites.
func (a *API) SetFavorites(userID string, songIDs ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.favorites[userID] = songIDs
}

// FavoriteIDs returns a user's favorites.
func (a *API) FavoriteIDs(userID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.favorites[userID]...)
}

// SetSynced stores synced lyrics.
func (a *API) SetSynced(s *lyrics.Synced) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.synced[s.SongID] = s
}

// FailLogin makes every login return err.
func (a *API) FailLogin(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginErr = err
}

// History returns the recorded plays as "user:song".
func (a *API) History() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.history...)
}

func (a *API) Login(_ context.Context, username, password string) (*user.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	if username == "" || password == "" {
		return nil, errors.Mark(errors.New("username and password are required"), api.ErrAuthRejected)
	}
	return user.NewSession(UserID, username, username+"@example.com"), nil
}

func (a *API) Register(context.Context, string, string, string) error { return nil }

func (a *API) ForgotPassword(context.Context, string) (string, error) {
	return "Reset link sent", nil
}

// Songs returns every song ordered by ID. Only the search term is honoured.
func (a *API) Songs(_ context.Context, q api.SongQuery) ([]*track.Track, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*track.Track
	for _, s := range a.songs {
		if q.SearchTerm == "" || s.Title == q.SearchTerm {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a *API) Song(_ context.Context, id string) (*track.Track, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.songs[id]; ok {
		return s, nil
	}
	return nil, errors.Mark(&api.HTTPError{Status: 404, Message: "Song not found"}, api.ErrNotFound)
}

func (a *API) Artists(context.Context) ([]api.Artist, error) {
	return []api.Artist{{ID: "1", Name: "Artist"}}, nil
}

func (a *API) Albums(context.Context) ([]api.Album, error) { return nil, nil }

func (a *API) Genres(context.Context) ([]api.Genre, error) {
	return []api.Genre{{ID: "1", Name: "Rock"}}, nil
}

func (a *API) Playlists(context.Context) ([]*playlist.Playlist, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*playlist.Playlist
	for id, tracks := range a.playlists {
		out = append(out, &playlist.Playlist{ID: id, Name: "Playlist " + id, Tracks: tracks})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a *API) PlaylistSongs(_ context.Context, id string) ([]*track.Track, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playlists[id], nil
}

func (a *API) CreatePlaylist(_ context.Context, userID, name, description string) (*playlist.Playlist, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := "p" + name
	a.playlists[id] = nil
	return &playlist.Playlist{ID: id, Name: name, Description: description, OwnerID: userID}, nil
}

func (a *API) DeletePlaylist(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.playlists, id)
	return nil
}

func (a *API) AddSongToPlaylist(_ context.Context, playlistID, songID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.songs[songID]
	if !ok {
		return errors.Mark(&api.HTTPError{Status: 404, Message: "Song not found"}, api.ErrNotFound)
	}
	a.playlists[playlistID] = append(a.playlists[playlistID], s)
	return nil
}

func (a *API) RemoveSongFromPlaylist(_ context.Context, playlistID, songID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var kept []*track.Track
	for _, t := range a.playlists[playlistID] {
		if t.ID != songID {
			kept = append(kept, t)
		}
	}
	a.playlists[playlistID] = kept
	return nil
}

func (a *API) Favorites(_ context.Context, userID string) ([]*track.Track, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*track.Track
	for _, id := range a.favorites[userID] {
		if s, ok := a.songs[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *API) AddFavorite(_ context.Context, userID, songID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.favorites[userID] = append(a.favorites[userID], songID)
	return nil
}

func (a *API) RemoveFavorite(_ context.Context, userID, songID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var kept []string
	for _, id := range a.favorites[userID] {
		if id != songID {
			kept = append(kept, id)
		}
	}
	a.favorites[userID] = kept
	return nil
}

func (a *API) AddPlayHistory(_ context.Context, userID, songID string, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, userID+":"+songID)
	return nil
}

func (a *API) PlayHistory(_ context.Context, userID string) ([]api.HistoryEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []api.HistoryEntry
	for _, h := range a.history {
		out = append(out, api.HistoryEntry{UserID: userID, SongID: h[len(userID)+1:]})
	}
	return out, nil
}

func (a *API) Lyrics(_ context.Context, songID string) (*lyrics.Lyrics, error) {
	return &lyrics.Lyrics{SongID: songID, Text: "la la la"}, nil
}

func (a *API) SyncedLyrics(_ context.Context, songID string) (*lyrics.Synced, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.synced[songID]; ok {
		return s, nil
	}
	return nil, api.ErrNotFound
}

// Media is a media element that starts instantly and only ends when told to.
type Media struct {
	mu       sync.Mutex
	src      media.Source
	position time.Duration
	onEnded  func()
}

func (m *Media) Load(src media.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.src = src
	m.position = 0
	return nil
}

func (m *Media) Play(context.Context) error { return nil }
func (m *Media) Pause() error               { return nil }

func (m *Media) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
	return nil
}

func (m *Media) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Media) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src.Duration
}

func (m *Media) SetVolume(float64) error { return nil }

func (m *Media) SetOnEnded(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnded = fn
}

func (m *Media) SetOnError(func(error)) {}

// End reports the end of the loaded source.
func (m *Media) End() {
	m.mu.Lock()
	fn := m.onEnded
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
