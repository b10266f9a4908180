// Package track provides the Track domain entity.
package track

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidTrack is returned when a catalog song fails ingestion validation.
var ErrInvalidTrack = errors.New("invalid track")

var validate = validator.New()

// ArtistRef references the performing artist.
type ArtistRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// AlbumRef references the album a track belongs to.
type AlbumRef struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	CoverImage string `json:"coverImage,omitempty"`
}

// Track represents a catalog song.
// Tracks are validated once when they enter the application and are not
// modified afterwards; they are shared by pointer.
type Track struct {
	ID       string        `json:"id" validate:"required"`
	Title    string        `json:"title" validate:"required"`
	Artist   ArtistRef     `json:"artist"`
	Album    *AlbumRef     `json:"album,omitempty"`
	Genre    string        `json:"genre,omitempty"`
	GenreID  string        `json:"genreId,omitempty"`
	Duration time.Duration `json:"duration" validate:"gte=0"`
	AudioURL string        `json:"audioUrl,omitempty"` // empty when the song has no audio resource
}

// Source describes where a queued track came from.
type Source string

const (
	SourceUser      Source = "USER"
	SourcePlaylist  Source = "PLAYLIST"
	SourceFavorites Source = "FAVORITES"
	SourceRadio     Source = "RADIO"
	SourceRestore   Source = "RESTORE"
)

// QueuedTrack represents a track in the playback queue.
type QueuedTrack struct {
	Track   *Track    `json:"track"`
	Source  Source    `json:"source"`
	AddedAt time.Time `json:"addedAt"`
}

// NewQueued wraps t for insertion into the queue.
func NewQueued(t *Track, source Source) QueuedTrack {
	return QueuedTrack{Track: t, Source: source, AddedAt: time.Now()}
}

// ID returns the queued track's identifier.
func (q QueuedTrack) ID() string {
	if q.Track == nil {
		return ""
	}
	return q.Track.ID
}

// Validate checks the invariants required for a track to enter the queue.
func (t *Track) Validate() error {
	if err := validate.Struct(t); err != nil {
		return errors.Mark(errors.Wrapf(err, "track %q", t.ID), ErrInvalidTrack)
	}
	return nil
}

// IsPlayable reports whether the track has an audio resource.
func (t *Track) IsPlayable() bool {
	return t.AudioURL != ""
}

// ArtistName returns the artist name or an empty string.
func (t *Track) ArtistName() string {
	return t.Artist.Name
}

// AlbumTitle returns the album title, or an empty string for singles.
func (t *Track) AlbumTitle() string {
	if t.Album == nil {
		return ""
	}
	return t.Album.Title
}
