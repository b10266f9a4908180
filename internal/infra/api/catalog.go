package api

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/domain/track"
)

// SongQuery filters the song listing. Empty fields are not sent.
type SongQuery struct {
	SearchTerm string `json:"searchTerm,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Artist     string `json:"artist,omitempty"`
}

func (q SongQuery) encode() string {
	params := url.Values{}
	if q.SearchTerm != "" {
		params.Set("searchTerm", q.SearchTerm)
	}
	if q.Genre != "" {
		params.Set("genre", q.Genre)
	}
	if q.Artist != "" {
		params.Set("artist", q.Artist)
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// Songs lists songs matching q.
func (c *Client) Songs(ctx context.Context, q SongQuery) ([]*track.Track, error) {
	var songs []*songDTO
	if err := c.getJSON(ctx, "/songs"+q.encode(), &songs); err != nil {
		return nil, errors.Wrap(err, "failed to list songs")
	}
	return c.toTracks(songs), nil
}

// Song fetches a single song.
func (c *Client) Song(ctx context.Context, id string) (*track.Track, error) {
	var song songDTO
	if err := c.getJSON(ctx, "/songs/"+url.PathEscape(id), &song); err != nil {
		return nil, errors.Wrapf(err, "failed to get song %s", id)
	}
	return c.toTrack(&song)
}

// Artists lists all artists.
func (c *Client) Artists(ctx context.Context) ([]Artist, error) {
	var dtos []artistDTO
	if err := c.getJSON(ctx, "/artists", &dtos); err != nil {
		return nil, errors.Wrap(err, "failed to list artists")
	}
	artists := make([]Artist, 0, len(dtos))
	for _, a := range dtos {
		artists = append(artists, Artist{ID: string(a.ArtistID), Name: a.Name})
	}
	return artists, nil
}

// Albums lists all albums.
func (c *Client) Albums(ctx context.Context) ([]Album, error) {
	var dtos []albumDTO
	if err := c.getJSON(ctx, "/albums", &dtos); err != nil {
		return nil, errors.Wrap(err, "failed to list albums")
	}
	albums := make([]Album, 0, len(dtos))
	for _, a := range dtos {
		album := Album{ID: string(a.AlbumID), Title: a.Title, CoverImage: c.resolve(a.CoverImage)}
		if a.Artist != nil {
			album.ArtistName = a.Artist.Name
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// Genres lists all genres.
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	var dtos []genreDTO
	if err := c.getJSON(ctx, "/genres", &dtos); err != nil {
		return nil, errors.Wrap(err, "failed to list genres")
	}
	genres := make([]Genre, 0, len(dtos))
	for i := range dtos {
		genres = append(genres, Genre{ID: string(dtos[i].GenreID), Name: dtos[i].name()})
	}
	return genres, nil
}
