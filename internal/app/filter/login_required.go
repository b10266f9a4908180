package filter

import (
	"context"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// LoginRequiredFilter rejects user requests while nobody is signed in.
type LoginRequiredFilter struct{}

func (f *LoginRequiredFilter) Name() string {
	return "login_required_filter"
}

func (f *LoginRequiredFilter) Description() string {
	return "Requires a signed-in user to enqueue songs"
}

func (f *LoginRequiredFilter) ReturnCodes() []string {
	return []string{CodeLoginRequired}
}

func (f *LoginRequiredFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *LoginRequiredFilter) AppliesTo(source track.Source) bool {
	// Radio and restore run without a listener in front of them
	return isOneOf(source, track.SourceUser, track.SourcePlaylist, track.SourceFavorites)
}

func (f *LoginRequiredFilter) Check(ctx context.Context, req TrackRequest, t *track.Track, u *user.Session) Result {
	if u == nil {
		return Reject(CodeLoginRequired)
	}
	return Accept()
}

func init() {
	Register("login_required_filter", func(Deps) Filter {
		return &LoginRequiredFilter{}
	})
}
