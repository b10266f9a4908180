package radio

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/track"
)

type PlaylistProviderConfig struct {
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required"`
}

// PlaylistProvider provides radio tracks by randomly selecting from a Spotify playlist
// and matching the picks against the catalog. Matched tracks are cached between calls.
type PlaylistProvider struct {
	spotify        SpotifyClient
	resolver       *resolver
	candidateCount int // target cache size

	mu    sync.Mutex
	cache []*track.Track

	config *PlaylistProviderConfig
}

// NewPlaylistProvider creates a new PlaylistProvider.
func NewPlaylistProvider(spotify SpotifyClient, catalog Catalog, candidateCount int, settings map[string]any) (*PlaylistProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog client is required")
	}

	var config PlaylistProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("radio: playlist provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &PlaylistProvider{
		spotify:        spotify,
		resolver:       newResolver(catalog),
		candidateCount: candidateCount,
		config:         &config,
	}, nil
}

// Validate checks that the configured playlist is reachable.
func (p *PlaylistProvider) Validate(ctx context.Context) error {
	return p.spotify.CheckPlaylistExists(ctx, p.config.PlaylistURL)
}

// Candidates retrieves random catalog matches for tracks of the configured playlist.
func (p *PlaylistProvider) Candidates(ctx context.Context, count int, seeds []*track.Track, exclude map[string]bool) ([]*track.Track, error) {
	if count <= 0 {
		return []*track.Track{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	available := make([]*track.Track, 0, len(p.cache))
	for _, t := range p.cache {
		if !exclude[t.ID] {
			available = append(available, t)
		}
	}

	// Refill from Spotify if the cache cannot cover the request
	if len(available) < count {
		needed := p.candidateCount - len(available)
		if needed < count {
			needed = count
		}
		refs, err := p.spotify.PlaylistTracksRandom(ctx, p.config.PlaylistURL, needed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get random tracks from playlist")
		}
		for _, ref := range refs {
			t := p.resolver.resolve(ctx, ref.Name, ref.Artist)
			if t == nil || exclude[t.ID] || contains(available, t.ID) {
				continue
			}
			available = append(available, t)
		}
	}

	if len(available) == 0 {
		return []*track.Track{}, nil
	}

	n := count
	if n > len(available) {
		n = len(available)
	}
	result := available[:n]
	p.cache = append([]*track.Track(nil), available[n:]...)
	return result, nil
}

// Name returns the provider name.
func (p *PlaylistProvider) Name() string {
	return "spotify_playlist"
}

// contains checks if a track ID is in the slice.
func contains(tracks []*track.Track, id string) bool {
	for _, t := range tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}
