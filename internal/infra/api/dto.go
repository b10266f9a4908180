package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/playlist"
	"github.com/osa030/streambox/internal/domain/track"
)

// ID is a backend identifier. The backend emits numbers; strings are accepted too.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric IDs as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type artistDTO struct {
	ArtistID ID     `json:"artistID"`
	Name     string `json:"name"`
}

type albumDTO struct {
	AlbumID    ID         `json:"albumID"`
	Title      string     `json:"title"`
	CoverImage string     `json:"coverImage"`
	Artist     *artistDTO `json:"artist,omitempty"`
}

type genreDTO struct {
	GenreID   ID     `json:"genreID"`
	GenreName string `json:"genreName"`
	Name      string `json:"name"`
}

type songDTO struct {
	SongID    ID         `json:"songID"`
	Title     string     `json:"title"`
	Duration  float64    `json:"duration"` // seconds
	AudioFile string     `json:"audioFile"`
	Artist    *artistDTO `json:"artist"`
	Album     *albumDTO  `json:"album"`
	Genre     *genreDTO  `json:"genre"`
}

type userRefDTO struct {
	ID ID `json:"id"`
}

type songRefDTO struct {
	SongID ID `json:"songID"`
}

type playlistRefDTO struct {
	PlaylistID ID `json:"playlistID"`
}

type playlistDTO struct {
	PlaylistID  ID          `json:"playlistID,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	User        *userRefDTO `json:"user,omitempty"`
}

// songEntryDTO is a join row wrapping a song (favorites, playlist songs, history).
// Some endpoints return bare songs instead, which land in the embedded fields.
type songEntryDTO struct {
	songDTO
	Song     *songDTO    `json:"song"`
	User     *userRefDTO `json:"user"`
	PlayedAt string      `json:"playedAt"`
}

func (e songEntryDTO) song() *songDTO {
	if e.Song != nil {
		return e.Song
	}
	if e.SongID != "" {
		s := e.songDTO
		return &s
	}
	return nil
}

type userDTO struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type lyricsDTO struct {
	Content string `json:"content"`
	Lyrics  string `json:"lyrics"`
	Text    string `json:"text"`
}

func (l lyricsDTO) text() string {
	switch {
	case l.Content != "":
		return l.Content
	case l.Lyrics != "":
		return l.Lyrics
	default:
		return l.Text
	}
}

type syncedLineDTO struct {
	TimeMs    *float64 `json:"timeMs"`
	StartTime *float64 `json:"startTime"` // seconds
	Text      string   `json:"text"`
	Line      string   `json:"line"`
	Content   string   `json:"content"`
}

func (l syncedLineDTO) at() time.Duration {
	switch {
	case l.TimeMs != nil:
		return time.Duration(*l.TimeMs * float64(time.Millisecond))
	case l.StartTime != nil:
		return time.Duration(*l.StartTime * float64(time.Second))
	}
	return 0
}

func (l syncedLineDTO) text() string {
	switch {
	case l.Text != "":
		return l.Text
	case l.Line != "":
		return l.Line
	default:
		return l.Content
	}
}

// Artist is a catalog artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is a catalog album.
type Album struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CoverImage string `json:"coverImage,omitempty"`
	ArtistName string `json:"artistName,omitempty"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a backend user account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// HistoryEntry is a play history row.
type HistoryEntry struct {
	UserID   string       `json:"userId"`
	Track    *track.Track `json:"track,omitempty"`
	SongID   string       `json:"songId"`
	PlayedAt time.Time    `json:"playedAt"`
}

// toTrack converts and validates a song. Relative audio and cover paths resolve
// against the backend origin.
func (c *Client) toTrack(s *songDTO) (*track.Track, error) {
	t := &track.Track{
		ID:       string(s.SongID),
		Title:    s.Title,
		Duration: time.Duration(math.Max(s.Duration, 0) * float64(time.Second)),
		AudioURL: c.resolve(s.AudioFile),
	}
	if s.Artist != nil {
		t.Artist = track.ArtistRef{ID: string(s.Artist.ArtistID), Name: s.Artist.Name}
	}
	if s.Album != nil {
		t.Album = &track.AlbumRef{
			ID:         string(s.Album.AlbumID),
			Title:      s.Album.Title,
			CoverImage: c.resolve(s.Album.CoverImage),
		}
	}
	if s.Genre != nil {
		t.Genre = s.Genre.name()
		t.GenreID = string(s.Genre.GenreID)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// toTracks converts songs, dropping invalid ones.
func (c *Client) toTracks(songs []*songDTO) []*track.Track {
	tracks := make([]*track.Track, 0, len(songs))
	for _, s := range songs {
		if s == nil {
			continue
		}
		t, err := c.toTrack(s)
		if err != nil {
			zlog.Warn().Err(err).Msgf("api: dropping invalid song %q", s.SongID)
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}

func (g *genreDTO) name() string {
	if g.GenreName != "" {
		return g.GenreName
	}
	return g.Name
}

func toPlaylist(p playlistDTO) *playlist.Playlist {
	pl := &playlist.Playlist{
		ID:          string(p.PlaylistID),
		Name:        p.Name,
		Description: p.Description,
	}
	if p.User != nil {
		pl.OwnerID = string(p.User.ID)
	}
	return pl
}

// resolve turns a backend-relative path into an absolute URL.
func (c *Client) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		// relative to the API root, e.g. "audio/x.mp3"
		base.Path = strings.TrimRight(base.Path, "/") + "/"
	}
	return base.ResolveReference(u).String()
}
