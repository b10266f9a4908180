package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinMinutes float64 `yaml:"min_minutes" mapstructure:"min_minutes" validate:"gte=0"`
	MaxMinutes float64 `yaml:"max_minutes" mapstructure:"max_minutes" validate:"gte=0"` // 0 means no limit
}

// DurationLimitFilter checks if track duration is within allowed limits.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Checks if track duration is within allowed limits"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{CodeDurationLimitExceeded}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	if config.MaxMinutes > 0 && config.MinMinutes > config.MaxMinutes {
		return errors.New("min_minutes cannot be greater than max_minutes")
	}
	f.config = &config
	zlog.Info().Msgf("filter: duration limit %+v", config)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(source track.Source) bool {
	return isOneOf(source, track.SourceUser, track.SourceRadio)
}

func (f *DurationLimitFilter) Check(ctx context.Context, req TrackRequest, t *track.Track, u *user.Session) Result {
	// If config is not set, accept all tracks
	if f.config == nil || t == nil {
		return Accept()
	}

	minutes := t.Duration.Minutes()
	if minutes < f.config.MinMinutes {
		return Reject(CodeDurationLimitExceeded)
	}
	if f.config.MaxMinutes > 0 && minutes > f.config.MaxMinutes {
		return Reject(CodeDurationLimitExceeded)
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func(Deps) Filter {
		return NewDurationLimitFilter()
	})
}
