// Package radio provides autoplay track provision strategies used when the queue runs out.
package radio

import (
	"context"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/lastfm"
	"github.com/osa030/streambox/internal/infra/spotify"
)

// Provider is the interface for radio track providers.
// Every provider returns catalog tracks; external services are only used
// for recommendations which are then matched against the catalog.
type Provider interface {
	// Candidates retrieves radio track candidates.
	// count: the number of candidates to retrieve
	// seeds: recently played tracks that can be used as hints for recommendations
	// exclude: track IDs already in the queue (for duplicate avoidance)
	Candidates(ctx context.Context, count int, seeds []*track.Track, exclude map[string]bool) ([]*track.Track, error)

	// Name returns the provider type (used in config).
	Name() string
}

// Catalog is the subset of the REST client the providers search.
type Catalog interface {
	Songs(ctx context.Context, q api.SongQuery) ([]*track.Track, error)
	Artists(ctx context.Context) ([]api.Artist, error)
}

// LastFmClient defines the Last.fm operations needed by LastFmProvider.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
	GetSimilarArtists(ctx context.Context, artist string, limit int) ([]string, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

// SpotifyClient defines the Spotify operations needed by PlaylistProvider.
type SpotifyClient interface {
	PlaylistTracksRandom(ctx context.Context, playlistURL string, count int) ([]spotify.TrackRef, error)
	CheckPlaylistExists(ctx context.Context, playlistURL string) error
}

// dedupe removes duplicate tracks by ID, keeping the first occurrence.
func dedupe(tracks []*track.Track) []*track.Track {
	seen := make(map[string]bool, len(tracks))
	result := make([]*track.Track, 0, len(tracks))
	for _, t := range tracks {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	return result
}
