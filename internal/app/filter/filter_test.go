package filter

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

func TestPlayableFilter_Check(t *testing.T) {
	f := &PlayableFilter{}

	playable := &track.Track{ID: "1", Title: "a", AudioURL: "http://x/a.mp3"}
	silent := &track.Track{ID: "2", Title: "b"}

	assert.True(t, f.Check(context.Background(), TrackRequest{}, playable, nil).Accepted)

	result := f.Check(context.Background(), TrackRequest{}, silent, nil)
	assert.False(t, result.Accepted)
	assert.Equal(t, CodeTrackUnplayable, result.Code)

	assert.False(t, f.Check(context.Background(), TrackRequest{}, nil, nil).Accepted)
}

func TestLoginRequiredFilter_Check(t *testing.T) {
	f := &LoginRequiredFilter{}
	tr := &track.Track{ID: "1", Title: "a"}

	result := f.Check(context.Background(), TrackRequest{}, tr, nil)
	assert.False(t, result.Accepted)
	assert.Equal(t, CodeLoginRequired, result.Code)

	sess := user.NewSession("5", "alice", "alice@example.com")
	assert.True(t, f.Check(context.Background(), TrackRequest{UserID: "5"}, tr, sess).Accepted)
}

func TestQueueLimitFilter(t *testing.T) {
	q := queueOf(song("1", "a", "x"), song("2", "b", "x"))
	f := NewQueueLimitFilter(q)
	require.NoError(t, f.ValidateConfig(map[string]any{"max_tracks": 2}))

	result := f.Check(context.Background(), TrackRequest{}, song("3", "c", "x"), nil)
	assert.False(t, result.Accepted)
	assert.Equal(t, CodeQueueFull, result.Code)

	require.NoError(t, f.ValidateConfig(nil))
	assert.Equal(t, 500, f.config.MaxTracks, "defaults apply when unset")
	assert.True(t, f.Check(context.Background(), TrackRequest{}, song("3", "c", "x"), nil).Accepted)

	assert.Error(t, f.ValidateConfig(map[string]any{"max_tracks": -1}))
}

type stubFilter struct {
	name    string
	sources []track.Source
	result  Result
	calls   int
}

func (s *stubFilter) Name() string                           { return s.name }
func (s *stubFilter) Description() string                    { return "stub" }
func (s *stubFilter) ReturnCodes() []string                  { return []string{s.result.Code} }
func (s *stubFilter) ValidateConfig(map[string]any) error    { return nil }
func (s *stubFilter) AppliesTo(source track.Source) bool     { return isOneOf(source, s.sources...) }
func (s *stubFilter) Check(context.Context, TrackRequest, *track.Track, *user.Session) Result {
	s.calls++
	return s.result
}

func TestChain_Execute(t *testing.T) {
	first := &stubFilter{name: "first", sources: []track.Source{track.SourceUser}, result: Accept()}
	rejecting := &stubFilter{name: "rejecting", sources: []track.Source{track.SourceUser}, result: Reject("nope")}
	last := &stubFilter{name: "last", sources: []track.Source{track.SourceUser, track.SourceRadio}, result: Accept()}

	chain := NewChain()
	chain.Add(first)
	chain.Add(rejecting)
	chain.Add(last)

	result := chain.Execute(context.Background(), TrackRequest{Source: track.SourceUser}, song("1", "a", "x"), nil)
	assert.False(t, result.Accepted)
	assert.Equal(t, "nope", result.Code)
	assert.Equal(t, "rejecting", result.Filter)
	assert.Equal(t, 0, last.calls, "stops at the first rejection")

	// Radio skips filters that do not apply
	result = chain.Execute(context.Background(), TrackRequest{Source: track.SourceRadio}, song("1", "a", "x"), nil)
	assert.True(t, result.Accepted)
	assert.Equal(t, 1, last.calls)
	assert.Equal(t, 1, rejecting.calls)
}

func TestBuild(t *testing.T) {
	q := queueOf(song("1", "Intro", "Band"))

	chain, err := Build(map[string]map[string]any{
		"duplicate_track_filter": {},
		"duration_limit_filter":  {"max_minutes": 10},
		"playable_filter":        {},
	}, Deps{Queue: q})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, f := range chain.Filters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"duplicate_track_filter", "duration_limit_filter", "playable_filter"}, names)

	result := chain.Execute(context.Background(),
		TrackRequest{Source: track.SourceUser, TrackID: "1"}, song("1", "Intro", "Band"), nil)
	assert.Equal(t, CodeDuplicateTrack, result.Code)

	_, err = Build(map[string]map[string]any{"no_such_filter": {}}, Deps{})
	assert.True(t, errors.Is(err, ErrUnknownFilter))

	_, err = Build(map[string]map[string]any{"duration_limit_filter": {"min_minutes": -3}}, Deps{})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"duplicate_track_filter",
		"duration_limit_filter",
		"login_required_filter",
		"playable_filter",
		"queue_limit_filter",
	}, Names())
}
