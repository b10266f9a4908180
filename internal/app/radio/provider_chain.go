package radio

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/track"
)

// ErrNoCandidates is returned when no provider produced a usable track.
var ErrNoCandidates = errors.New("no radio candidates")

// Candidate represents a track candidate with its source provider info.
type Candidate struct {
	Track       *track.Track
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain asks every provider in order to build the largest candidate pool.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Candidates retrieves candidates from all providers.
// A failing provider is logged and skipped.
func (c *ProviderChain) Candidates(ctx context.Context, count int, seeds []*track.Track, exclude map[string]bool) ([]Candidate, error) {
	var all []Candidate
	current := make(map[string]bool, len(exclude))
	for k, v := range exclude {
		current[k] = v
	}

	for i, pm := range c.providers {
		zlog.Debug().Msgf("radio: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.Candidates(ctx, count, seeds, current)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "radio candidate search cancelled")
			}
			zlog.Warn().Msgf("radio: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}
		if len(candidates) == 0 {
			zlog.Debug().Msgf("radio: provider returned no candidates: provider=%s", pm.DisplayName)
			continue
		}

		for _, t := range candidates {
			if current[t.ID] {
				continue
			}
			all = append(all, Candidate{Track: t, DisplayName: pm.DisplayName})
			// later providers must not repeat it
			current[t.ID] = true
		}

		zlog.Info().Msgf("radio: provider returned candidates: provider=%s count=%d total_so_far=%d",
			pm.DisplayName, len(candidates), len(all))
	}

	if len(all) == 0 {
		return nil, errors.Wrap(ErrNoCandidates, "all providers failed to return candidates")
	}
	return all, nil
}

// Providers returns the configured providers.
func (c *ProviderChain) Providers() []ProviderWithMetadata {
	return c.providers
}
