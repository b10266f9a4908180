package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxTracks int `mapstructure:"max_tracks" default:"500" validate:"gte=1"`
}

// QueueLimitFilter rejects single-song requests once the queue is full.
type QueueLimitFilter struct {
	queue  QueueReader
	config QueueLimitConfig
}

// NewQueueLimitFilter creates a new queue limit filter.
func NewQueueLimitFilter(queue QueueReader) *QueueLimitFilter {
	f := &QueueLimitFilter{queue: queue}
	_ = defaults.Set(&f.config)
	return f
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Rejects songs once the queue holds max_tracks entries"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{CodeQueueFull}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.config = config
	return nil
}

func (f *QueueLimitFilter) AppliesTo(source track.Source) bool {
	return isOneOf(source, track.SourceUser, track.SourceRadio)
}

func (f *QueueLimitFilter) Check(ctx context.Context, req TrackRequest, t *track.Track, u *user.Session) Result {
	if f.queue == nil {
		return Accept()
	}
	if len(f.queue.Tracks()) >= f.config.MaxTracks {
		return Reject(CodeQueueFull)
	}
	return Accept()
}

func init() {
	Register("queue_limit_filter", func(d Deps) Filter {
		return NewQueueLimitFilter(d.Queue)
	})
}
