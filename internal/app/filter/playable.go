package filter

import (
	"context"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// PlayableFilter rejects tracks without an audio resource.
type PlayableFilter struct{}

func (f *PlayableFilter) Name() string {
	return "playable_filter"
}

func (f *PlayableFilter) Description() string {
	return "Rejects songs that have no audio file"
}

func (f *PlayableFilter) ReturnCodes() []string {
	return []string{CodeTrackUnplayable}
}

func (f *PlayableFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PlayableFilter) AppliesTo(source track.Source) bool {
	// Applies to every source; restored queues are trusted
	return source != track.SourceRestore
}

func (f *PlayableFilter) Check(ctx context.Context, req TrackRequest, t *track.Track, u *user.Session) Result {
	if t == nil || !t.IsPlayable() {
		return Reject(CodeTrackUnplayable)
	}
	return Accept()
}

func init() {
	Register("playable_filter", func(Deps) Filter {
		return &PlayableFilter{}
	})
}
