package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/lyrics"
	"github.com/osa030/streambox/internal/domain/playlist"
	"github.com/osa030/streambox/internal/domain/track"
)

// Playlists lists all playlists.
func (c *Client) Playlists(ctx context.Context) ([]*playlist.Playlist, error) {
	var dtos []playlistDTO
	if err := c.getJSON(ctx, "/playlists", &dtos); err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	lists := make([]*playlist.Playlist, 0, len(dtos))
	for _, p := range dtos {
		lists = append(lists, toPlaylist(p))
	}
	return lists, nil
}

// Playlist fetches a playlist with its tracks.
func (c *Client) Playlist(ctx context.Context, id string) (*playlist.Playlist, error) {
	var dto playlistDTO
	if err := c.getJSON(ctx, "/playlists/"+url.PathEscape(id), &dto); err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist %s", id)
	}
	pl := toPlaylist(dto)
	tracks, err := c.PlaylistSongs(ctx, id)
	if err != nil {
		return nil, err
	}
	pl.Tracks = tracks
	return pl, nil
}

// CreatePlaylist creates a playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string) (*playlist.Playlist, error) {
	if name == "" {
		return nil, errors.New("playlist name is required")
	}
	body := playlistDTO{Name: name, Description: description}
	if userID != "" {
		body.User = &userRefDTO{ID: ID(userID)}
	}
	var created playlistDTO
	if err := c.send(ctx, http.MethodPost, "/playlists", body, &created); err != nil {
		return nil, errors.Wrap(err, "failed to create playlist")
	}
	if created.PlaylistID == "" {
		created = body
	}
	return toPlaylist(created), nil
}

// DeletePlaylist deletes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	if err := c.send(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(id), nil, nil); err != nil {
		return errors.Wrapf(err, "failed to delete playlist %s", id)
	}
	return nil
}

// PlaylistSongs lists the tracks of a playlist.
func (c *Client) PlaylistSongs(ctx context.Context, playlistID string) ([]*track.Track, error) {
	var entries []songEntryDTO
	if err := c.getJSON(ctx, "/playlist-songs/playlist/"+url.PathEscape(playlistID), &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to list songs of playlist %s", playlistID)
	}
	return c.toTracks(entrySongs(entries)), nil
}

// AddSongToPlaylist appends a song to a playlist.
func (c *Client) AddSongToPlaylist(ctx context.Context, playlistID, songID string) error {
	body := map[string]any{
		"playlist": playlistRefDTO{PlaylistID: ID(playlistID)},
		"song":     songRefDTO{SongID: ID(songID)},
	}
	if err := c.send(ctx, http.MethodPost, "/playlist-songs", body, nil); err != nil {
		return errors.Wrapf(err, "failed to add song %s to playlist %s", songID, playlistID)
	}
	return nil
}

// RemoveSongFromPlaylist removes a song from a playlist.
func (c *Client) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error {
	endpoint := "/playlist-songs/playlist/" + url.PathEscape(playlistID) + "/song/" + url.PathEscape(songID)
	if err := c.send(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return errors.Wrapf(err, "failed to remove song %s from playlist %s", songID, playlistID)
	}
	return nil
}

// Favorites lists a user's favorite tracks.
func (c *Client) Favorites(ctx context.Context, userID string) ([]*track.Track, error) {
	var entries []songEntryDTO
	if err := c.getJSON(ctx, "/user-favorites/user/"+url.PathEscape(userID), &entries); err != nil {
		return nil, errors.Wrap(err, "failed to list favorites")
	}
	return c.toTracks(entrySongs(entries)), nil
}

// AddFavorite marks a song as a user's favorite.
func (c *Client) AddFavorite(ctx context.Context, userID, songID string) error {
	body := map[string]any{
		"user": userRefDTO{ID: ID(userID)},
		"song": songRefDTO{SongID: ID(songID)},
	}
	if err := c.send(ctx, http.MethodPost, "/user-favorites", body, nil); err != nil {
		return errors.Wrapf(err, "failed to add favorite %s", songID)
	}
	return nil
}

// RemoveFavorite unmarks a favorite.
func (c *Client) RemoveFavorite(ctx context.Context, userID, songID string) error {
	endpoint := "/user-favorites/user/" + url.PathEscape(userID) + "/song/" + url.PathEscape(songID)
	if err := c.send(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return errors.Wrapf(err, "failed to remove favorite %s", songID)
	}
	return nil
}

// AddPlayHistory records that a user started a song.
func (c *Client) AddPlayHistory(ctx context.Context, userID, songID string, playedAt time.Time) error {
	body := map[string]any{
		"user":     userRefDTO{ID: ID(userID)},
		"song":     songRefDTO{SongID: ID(songID)},
		"playedAt": playedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := c.send(ctx, http.MethodPost, "/play-history", body, nil); err != nil {
		return errors.Wrapf(err, "failed to record play of %s", songID)
	}
	return nil
}

// PlayHistory returns the play history of userID, newest first. The backend lists
// every user's history; entries are filtered here.
func (c *Client) PlayHistory(ctx context.Context, userID string) ([]HistoryEntry, error) {
	var entries []songEntryDTO
	if err := c.getJSON(ctx, "/play-history", &entries); err != nil {
		return nil, errors.Wrap(err, "failed to list play history")
	}

	history := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.User == nil || string(e.User.ID) != userID {
			continue
		}
		entry := HistoryEntry{UserID: userID}
		if s := e.Song; s != nil {
			entry.SongID = string(s.SongID)
			if t, err := c.toTrack(s); err == nil {
				entry.Track = t
			}
		}
		if e.PlayedAt != "" {
			if ts, err := time.Parse(time.RFC3339Nano, e.PlayedAt); err == nil {
				entry.PlayedAt = ts
			} else if ts, err := time.Parse("2006-01-02T15:04:05", e.PlayedAt); err == nil {
				entry.PlayedAt = ts
			}
		}
		history = append(history, entry)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].PlayedAt.After(history[j].PlayedAt)
	})
	return history, nil
}

// Lyrics fetches the plain lyrics of a song.
func (c *Client) Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/lyrics/song/"+url.PathEscape(songID), &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to get lyrics of %s", songID)
	}

	var dto lyricsDTO
	if isArray(raw) {
		var list []lyricsDTO
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, errors.Wrap(err, "failed to parse lyrics")
		}
		if len(list) == 0 {
			return nil, errors.Mark(errors.Newf("no lyrics for song %s", songID), ErrNotFound)
		}
		dto = list[0]
	} else if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, errors.Wrap(err, "failed to parse lyrics")
	}
	return &lyrics.Lyrics{SongID: songID, Text: dto.text()}, nil
}

// SyncedLyrics fetches the time-synced lyrics of a song.
func (c *Client) SyncedLyrics(ctx context.Context, songID string) (*lyrics.Synced, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/synced-lyrics/song/"+url.PathEscape(songID), &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to get synced lyrics of %s", songID)
	}

	var dtos []syncedLineDTO
	if isArray(raw) {
		if err := json.Unmarshal(raw, &dtos); err != nil {
			return nil, errors.Wrap(err, "failed to parse synced lyrics")
		}
	} else {
		var wrapped struct {
			Lines []syncedLineDTO `json:"lines"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, errors.Wrap(err, "failed to parse synced lyrics")
		}
		dtos = wrapped.Lines
	}

	lines := make([]lyrics.Line, 0, len(dtos))
	for _, d := range dtos {
		lines = append(lines, lyrics.Line{At: d.at(), Text: d.text()})
	}
	return lyrics.NewSynced(songID, lines), nil
}

// Users lists backend accounts.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var dtos []userDTO
	if err := c.getJSON(ctx, "/users", &dtos); err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	users := make([]User, 0, len(dtos))
	for _, u := range dtos {
		users = append(users, User{ID: string(u.ID), Username: u.Username, Email: u.Email})
	}
	return users, nil
}

func entrySongs(entries []songEntryDTO) []*songDTO {
	songs := make([]*songDTO, 0, len(entries))
	for _, e := range entries {
		if s := e.song(); s != nil {
			songs = append(songs, s)
		} else {
			zlog.Debug().Msg("api: skipping entry without song")
		}
	}
	return songs
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
