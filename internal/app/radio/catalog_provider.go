package radio

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
)

type CatalogProviderConfig struct {
	// SameGenre restricts candidates to the genres of the seed tracks.
	SameGenre bool `yaml:"same_genre" mapstructure:"same_genre" default:"true"`
	// SameArtist adds songs by the seed artists to the pool.
	SameArtist bool `yaml:"same_artist" mapstructure:"same_artist"`
}

// CatalogProvider picks random catalog songs related to the seed tracks.
// It needs no external service and falls back to the whole catalog.
type CatalogProvider struct {
	catalog Catalog
	rng     *rand.Rand
	config  *CatalogProviderConfig
}

// NewCatalogProvider creates a new CatalogProvider.
func NewCatalogProvider(catalog Catalog, settings map[string]any) (*CatalogProvider, error) {
	if catalog == nil {
		return nil, errors.New("catalog client is required")
	}

	var config CatalogProviderConfig
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &CatalogProvider{
		catalog: catalog,
		rng:     rand.New(rand.NewSource(cryptoSeed())),
		config:  &config,
	}, nil
}

// Candidates retrieves random songs sharing a genre or artist with the seeds.
func (p *CatalogProvider) Candidates(ctx context.Context, count int, seeds []*track.Track, exclude map[string]bool) ([]*track.Track, error) {
	if count <= 0 {
		return []*track.Track{}, nil
	}

	var pool []*track.Track
	for _, q := range p.queries(seeds) {
		songs, err := p.catalog.Songs(ctx, q)
		if err != nil {
			return nil, errors.Wrap(err, "failed to search catalog")
		}
		pool = append(pool, songs...)
	}

	if len(pool) == 0 {
		// nothing related, widen to everything
		songs, err := p.catalog.Songs(ctx, api.SongQuery{})
		if err != nil {
			return nil, errors.Wrap(err, "failed to list catalog")
		}
		pool = songs
	}

	pool = dedupe(pool)
	p.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	result := make([]*track.Track, 0, count)
	for _, t := range pool {
		if exclude[t.ID] {
			continue
		}
		result = append(result, t)
		if len(result) == count {
			break
		}
	}
	return result, nil
}

func (p *CatalogProvider) queries(seeds []*track.Track) []api.SongQuery {
	var queries []api.SongQuery
	seen := make(map[api.SongQuery]bool)
	add := func(q api.SongQuery) {
		if !seen[q] {
			seen[q] = true
			queries = append(queries, q)
		}
	}
	for _, s := range seeds {
		if p.config.SameGenre && s.GenreID != "" {
			add(api.SongQuery{Genre: s.GenreID})
		}
		if p.config.SameArtist && s.Artist.ID != "" {
			add(api.SongQuery{Artist: s.Artist.ID})
		}
	}
	return queries
}

// Name returns the provider name.
func (p *CatalogProvider) Name() string {
	return "catalog"
}
