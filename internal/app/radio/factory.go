package radio

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/infra/config"
	"github.com/osa030/streambox/internal/infra/lastfm"
	"github.com/osa030/streambox/internal/infra/spotify"
)

// Clients carries prebuilt external clients. Nil fields are built from the configuration on demand.
type Clients struct {
	Catalog Catalog
	LastFm  LastFmClient
	Spotify SpotifyClient
}

// NewProviderChainFromConfig creates a provider chain from configuration.
func NewProviderChainFromConfig(ctx context.Context, cfg *config.Config, clients Clients) (*ProviderChain, error) {
	if len(cfg.Radio.Providers) == 0 {
		return nil, errors.New("no radio providers configured")
	}
	if clients.Catalog == nil {
		return nil, errors.New("catalog client is required")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Radio.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("radio: creating provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "catalog":
			provider, err = NewCatalogProvider(clients.Catalog, pcfg.Settings)

		case "lastfm":
			lfm := clients.LastFm
			if lfm == nil {
				lfm, err = newLastFmClient(pcfg.Settings)
				if err != nil {
					break
				}
			}
			provider, err = NewLastFmProvider(lfm, clients.Catalog, pcfg.Settings)

		case "spotify_playlist":
			if clients.Spotify == nil {
				clients.Spotify, err = spotify.New(ctx, spotify.Config{
					ClientID:     cfg.Spotify.ClientID,
					ClientSecret: cfg.Spotify.ClientSecret,
					RefreshToken: cfg.Spotify.RefreshToken,
					Market:       cfg.Spotify.Market,
				})
				if err != nil {
					break
				}
			}
			provider, err = NewPlaylistProvider(clients.Spotify, clients.Catalog, cfg.Radio.CandidateCount, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("radio: registered provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}

func newLastFmClient(settings map[string]any) (LastFmClient, error) {
	config, err := decodeLastFmConfig(settings)
	if err != nil {
		return nil, err
	}
	c, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return c, nil
}

// Validator is implemented by providers that can check their upstream at startup.
type Validator interface {
	Validate(ctx context.Context) error
}

// ValidateProviders checks every provider that supports it and joins the failures.
func ValidateProviders(ctx context.Context, chain *ProviderChain) error {
	var errs error
	for _, pm := range chain.Providers() {
		v, ok := pm.Provider.(Validator)
		if !ok {
			continue
		}
		zlog.Info().Msgf("radio: validating provider %s", pm.DisplayName)
		if err := v.Validate(ctx); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "provider %s", pm.DisplayName))
		}
	}
	return errs
}
