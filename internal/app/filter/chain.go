package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// ErrUnknownFilter is returned when the configuration names an unregistered filter.
var ErrUnknownFilter = errors.New("unknown filter")

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Build creates a chain from enabled filter settings, in registry name order.
func Build(enabled map[string]map[string]any, deps Deps) (*Chain, error) {
	chain := NewChain()
	for name := range enabled {
		if _, ok := registry[name]; !ok {
			return nil, errors.Mark(errors.Newf("filter %q is not registered", name), ErrUnknownFilter)
		}
	}
	for _, name := range Names() {
		settings, ok := enabled[name]
		if !ok {
			continue
		}
		f := registry[name](deps)
		if err := f.ValidateConfig(settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter: enabled %s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
// Filters are only applied if they declare they apply to the request's source.
func (c *Chain) Execute(ctx context.Context, req TrackRequest, t *track.Track, u *user.Session) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(req.Source) {
			continue
		}

		result := f.Check(ctx, req, t, u)
		if !result.Accepted {
			result.Filter = f.Name()
			zlog.Debug().Msgf("filter: %s rejected track %s (%s)", f.Name(), req.TrackID, result.Code)
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
