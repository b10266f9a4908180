package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/domain/lyrics"
	"github.com/osa030/streambox/internal/domain/playlist"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
)

// DefaultServerURL is the control server address used by the CLIs.
const DefaultServerURL = "http://localhost:8090"

// APIError is a non-2xx response from the control server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Client calls the control API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. token is sent on every
// request and may be empty for read-only use.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + Prefix,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request")
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(ControlTokenHeader, c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return errors.Wrapf(err, "failed to decode %s %s", method, path)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBody)).Decode(&body); err != nil || body.Error == "" {
		body.Error = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
}

// ErrorCode returns the server's error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Status returns the session status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	return &out, c.do(ctx, http.MethodGet, "/status", nil, &out)
}

// Queue returns the play queue.
func (c *Client) Queue(ctx context.Context) (*QueueResponse, error) {
	var out QueueResponse
	return &out, c.do(ctx, http.MethodGet, "/queue", nil, &out)
}

// Filters lists the enabled enqueue filters.
func (c *Client) Filters(ctx context.Context) ([]FilterInfo, error) {
	var out []FilterInfo
	return out, c.do(ctx, http.MethodGet, "/filters", nil, &out)
}

func (c *Client) player(ctx context.Context, action string, body any) (*PlayerInfo, error) {
	var out PlayerInfo
	return &out, c.do(ctx, http.MethodPost, "/player/"+action, body, &out)
}

// Play plays a catalog song now.
func (c *Client) Play(ctx context.Context, songID string) (*PlayerInfo, error) {
	return c.player(ctx, "play", &SongRequest{SongID: songID})
}

// TogglePlayPause pauses or resumes.
func (c *Client) TogglePlayPause(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "toggle", nil)
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "pause", nil)
}

// Resume resumes playback.
func (c *Client) Resume(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "resume", nil)
}

// Stop stops playback and rewinds.
func (c *Client) Stop(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "stop", nil)
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "next", nil)
}

// Previous restarts the track or goes back one.
func (c *Client) Previous(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "previous", nil)
}

// SeekTo moves to an absolute position.
func (c *Client) SeekTo(ctx context.Context, pos time.Duration) (*PlayerInfo, error) {
	ms := pos.Milliseconds()
	return c.player(ctx, "seek", &SeekRequest{PositionMs: &ms})
}

// SeekPercent moves to percent (0-100) of the track.
func (c *Client) SeekPercent(ctx context.Context, percent float64) (*PlayerInfo, error) {
	return c.player(ctx, "seek", &SeekRequest{Percent: &percent})
}

// SeekSteps moves by seek steps. Negative steps go back.
func (c *Client) SeekSteps(ctx context.Context, steps int) (*PlayerInfo, error) {
	return c.player(ctx, "seek", &SeekRequest{Steps: &steps})
}

// SetVolume sets the volume (0-1).
func (c *Client) SetVolume(ctx context.Context, v float64) (*PlayerInfo, error) {
	return c.player(ctx, "volume", &VolumeRequest{Volume: &v})
}

// VolumeSteps moves the volume by steps.
func (c *Client) VolumeSteps(ctx context.Context, steps int) (*PlayerInfo, error) {
	return c.player(ctx, "volume", &VolumeRequest{Steps: &steps})
}

// ToggleMute mutes or unmutes.
func (c *Client) ToggleMute(ctx context.Context) (*PlayerInfo, error) {
	return c.player(ctx, "mute", nil)
}

// SetShuffle sets shuffle. A nil on toggles it.
func (c *Client) SetShuffle(ctx context.Context, on *bool) (bool, error) {
	var out ShuffleResponse
	err := c.do(ctx, http.MethodPost, "/player/shuffle", &ShuffleRequest{On: on}, &out)
	return out.Shuffled, err
}

// SetRepeat sets the repeat mode. An empty mode cycles it.
func (c *Client) SetRepeat(ctx context.Context, mode string) (string, error) {
	var out RepeatResponse
	err := c.do(ctx, http.MethodPost, "/player/repeat", &RepeatRequest{Mode: mode}, &out)
	return out.Mode, err
}

// Jump plays the queued track at index.
func (c *Client) Jump(ctx context.Context, index int) (*PlayerInfo, error) {
	return c.player(ctx, "jump", &JumpRequest{Index: index})
}

// Enqueue appends a catalog song to the queue.
func (c *Client) Enqueue(ctx context.Context, songID string) (*QueueResponse, error) {
	var out QueueResponse
	return &out, c.do(ctx, http.MethodPost, "/queue", &SongRequest{SongID: songID}, &out)
}

// RemoveAt removes the queued track at index.
func (c *Client) RemoveAt(ctx context.Context, index int) (*QueueResponse, error) {
	var out QueueResponse
	return &out, c.do(ctx, http.MethodDelete, "/queue/"+strconv.Itoa(index), nil, &out)
}

// ClearQueue stops playback and empties the queue.
func (c *Client) ClearQueue(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/queue", nil, nil)
}

// Search lists catalog songs.
func (c *Client) Search(ctx context.Context, q api.SongQuery) ([]*track.Track, error) {
	params := url.Values{}
	if q.SearchTerm != "" {
		params.Set("q", q.SearchTerm)
	}
	if q.Genre != "" {
		params.Set("genre", q.Genre)
	}
	if q.Artist != "" {
		params.Set("artist", q.Artist)
	}
	path := "/songs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out []*track.Track
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// Song returns a catalog song.
func (c *Client) Song(ctx context.Context, id string) (*track.Track, error) {
	var out track.Track
	return &out, c.do(ctx, http.MethodGet, "/songs/"+url.PathEscape(id), nil, &out)
}

// Genres lists catalog genres.
func (c *Client) Genres(ctx context.Context) ([]api.Genre, error) {
	var out []api.Genre
	return out, c.do(ctx, http.MethodGet, "/genres", nil, &out)
}

// Artists lists catalog artists.
func (c *Client) Artists(ctx context.Context) ([]api.Artist, error) {
	var out []api.Artist
	return out, c.do(ctx, http.MethodGet, "/artists", nil, &out)
}

// Albums lists catalog albums.
func (c *Client) Albums(ctx context.Context) ([]api.Album, error) {
	var out []api.Album
	return out, c.do(ctx, http.MethodGet, "/albums", nil, &out)
}

// Lyrics returns the plain lyrics of a song.
func (c *Client) Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error) {
	var out lyrics.Lyrics
	return &out, c.do(ctx, http.MethodGet, "/lyrics/"+url.PathEscape(songID), nil, &out)
}

// CurrentLyrics returns the synced lyrics of the playing track.
func (c *Client) CurrentLyrics(ctx context.Context) (*lyrics.Synced, error) {
	var out lyrics.Synced
	return &out, c.do(ctx, http.MethodGet, "/lyrics/current", nil, &out)
}

// Playlists lists playlists.
func (c *Client) Playlists(ctx context.Context) ([]*playlist.Playlist, error) {
	var out []*playlist.Playlist
	return out, c.do(ctx, http.MethodGet, "/playlists", nil, &out)
}

// PlaylistSongs lists the songs of a playlist.
func (c *Client) PlaylistSongs(ctx context.Context, id string) ([]*track.Track, error) {
	var out []*track.Track
	return out, c.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(id)+"/songs", nil, &out)
}

// CreatePlaylist creates a playlist for the signed-in user.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (*playlist.Playlist, error) {
	var out playlist.Playlist
	return &out, c.do(ctx, http.MethodPost, "/playlists", &PlaylistRequest{Name: name, Description: description}, &out)
}

// DeletePlaylist deletes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(id), nil, nil)
}

// AddToPlaylist adds a song to a playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, songID string) error {
	return c.do(ctx, http.MethodPost, "/playlists/"+url.PathEscape(playlistID)+"/songs", &SongRequest{SongID: songID}, nil)
}

// RemoveFromPlaylist removes a song from a playlist.
func (c *Client) RemoveFromPlaylist(ctx context.Context, playlistID, songID string) error {
	path := "/playlists/" + url.PathEscape(playlistID) + "/songs/" + url.PathEscape(songID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// PlayPlaylist replaces the queue with a playlist starting at start.
func (c *Client) PlayPlaylist(ctx context.Context, id string, start int) (*PlayerInfo, error) {
	var out PlayerInfo
	return &out, c.do(ctx, http.MethodPost, "/playlists/"+url.PathEscape(id)+"/play", &PlayPlaylistRequest{Start: start}, &out)
}

// Favorites lists the signed-in user's favorite songs.
func (c *Client) Favorites(ctx context.Context) ([]*track.Track, error) {
	var out []*track.Track
	return out, c.do(ctx, http.MethodGet, "/favorites", nil, &out)
}

// ToggleFavorite flips a song's favorite flag and returns the new value.
func (c *Client) ToggleFavorite(ctx context.Context, songID string) (bool, error) {
	var out FavoriteResponse
	err := c.do(ctx, http.MethodPost, "/favorites/"+url.PathEscape(songID)+"/toggle", nil, &out)
	return out.Favorite, err
}

// PlayFavorites replaces the queue with the user's favorites.
func (c *Client) PlayFavorites(ctx context.Context) (*PlayerInfo, error) {
	var out PlayerInfo
	return &out, c.do(ctx, http.MethodPost, "/favorites/play", nil, &out)
}

// History returns the signed-in user's backend play history.
func (c *Client) History(ctx context.Context) ([]api.HistoryEntry, error) {
	var out []api.HistoryEntry
	return out, c.do(ctx, http.MethodGet, "/history", nil, &out)
}

// LocalHistory returns the locally recorded plays, newest first.
func (c *Client) LocalHistory(ctx context.Context, limit int) ([]PlayEntry, error) {
	var out []PlayEntry
	return out, c.do(ctx, http.MethodGet, "/history/local?limit="+strconv.Itoa(limit), nil, &out)
}

// Login signs in.
func (c *Client) Login(ctx context.Context, username, password string) (*UserInfo, error) {
	var out UserInfo
	return &out, c.do(ctx, http.MethodPost, "/auth/login", &LoginRequest{Username: username, Password: password}, &out)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", &RegisterRequest{Username: username, Email: email, Password: password}, &out)
	return out.Message, err
}

// ForgotPassword requests a password reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodPost, "/auth/forgot", &ForgotRequest{Email: email}, &out)
	return out.Message, err
}

// Logout signs out and clears the player.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ToggleTheme switches between the light and dark theme.
func (c *Client) ToggleTheme(ctx context.Context) (string, error) {
	var out ThemeResponse
	err := c.do(ctx, http.MethodPost, "/theme/toggle", nil, &out)
	return out.Theme, err
}
