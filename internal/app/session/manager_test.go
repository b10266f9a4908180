package session

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/app/radio"
	"github.com/osa030/streambox/internal/app/session/sessiontest"
	"github.com/osa030/streambox/internal/app/session/state"
	"github.com/osa030/streambox/internal/domain/lyrics"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/config"
	"github.com/osa030/streambox/internal/infra/store"
)

const testConfig = `
server:
  control_token: secret
storage:
  driver: memory
playback:
  progress_interval_ms: 100
filters:
  playable_filter:
    enabled: true
`

type harness struct {
	m      *Manager
	api    *sessiontest.API
	media  *sessiontest.Media
	store  *store.Memory
	stream *notification.ChanStream
}

func newHarness(t *testing.T, yml string, chain *radio.ProviderChain, songs ...*track.Track) *harness {
	t.Helper()
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	if chain != nil {
		cfg.Radio.Enabled = true
	}

	h := &harness{
		api:    sessiontest.NewAPI(songs...),
		media:  &sessiontest.Media{},
		store:  store.NewMemory(),
		stream: notification.NewChanStream(256),
	}
	h.m, err = NewManager(cfg, Deps{API: h.api, Store: h.store, Media: h.media, Radio: chain})
	require.NoError(t, err)
	require.NoError(t, h.m.Start(context.Background()))
	h.m.Notifications().Subscribe(h.stream)
	t.Cleanup(h.m.Close)
	return h
}

// waitMessage waits for a message notification with the given code.
func (h *harness) waitMessage(t *testing.T, code string) *notification.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-h.stream.C():
			if n.Type == notification.TypeMessage && n.Message.Code == code {
				return n.Message
			}
		case <-timeout:
			t.Fatalf("no %q message", code)
			return nil
		}
	}
}

func TestManager_LoginLoadsFavorites(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", true))
	h.api.SetFavorites(sessiontest.UserID, "2")
	ctx := context.Background()

	u, err := h.m.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "5", u.ID)
	assert.True(t, h.m.IsFavorite("2"))
	assert.Equal(t, state.PhaseSignedIn, h.m.GetStatus().Phase)

	msg := h.waitMessage(t, "login_success")
	assert.Equal(t, notification.LevelSuccess, msg.Level)
}

func TestManager_LoginRejectedShowsBackendMessage(t *testing.T) {
	h := newHarness(t, testConfig, nil)
	h.api.FailLogin(errors.Wrap(errors.Mark(errors.New("Invalid credentials"), api.ErrAuthRejected), "login failed"))

	_, err := h.m.Login(context.Background(), "alice", "bad")
	require.Error(t, err)
	assert.Nil(t, h.m.CurrentUser())

	msg := h.waitMessage(t, "default_error")
	assert.Equal(t, "Invalid credentials", msg.Text)
}

func TestManager_RegisterValidatesLocally(t *testing.T) {
	h := newHarness(t, testConfig, nil)

	err := h.m.Register(context.Background(), "bob", "not-an-email", "secret1")
	assert.True(t, errors.Is(err, user.ErrInvalidRegistration))
	h.waitMessage(t, "invalid_registration")

	require.NoError(t, h.m.Register(context.Background(), "bob", "bob@example.com", "secret1"))
	h.waitMessage(t, "register_success")
}

func TestManager_PlaySongRecordsHistory(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true))
	ctx := context.Background()
	_, err := h.m.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, h.m.PlaySong(ctx, "1"))
	snap := h.m.Player().Snapshot()
	assert.Equal(t, playback.StatePlaying, snap.State)
	assert.Equal(t, "1", snap.Current.ID())

	assert.Eventually(t, func() bool {
		return len(h.api.History()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"5:1"}, h.api.History())

	plays, err := h.m.RecentPlays(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, "1", plays[0].SongID)

	require.NoError(t, h.m.PlaySong(ctx, "1"))
	assert.Len(t, h.m.Player().Snapshot().Queue, 1)
}

func TestManager_PlaySongUnknown(t *testing.T) {
	h := newHarness(t, testConfig, nil)

	err := h.m.PlaySong(context.Background(), "404")
	require.Error(t, err)
	assert.Equal(t, 404, api.HTTPStatus(err))
	msg := h.waitMessage(t, "default_error")
	assert.Equal(t, "Song not found", msg.Text)
}

func TestManager_EnqueueSong(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", false))
	ctx := context.Background()

	require.NoError(t, h.m.EnqueueSong(ctx, "1"))
	h.waitMessage(t, "added_to_queue")
	assert.Equal(t, playback.StateIdle, h.m.Player().State(), "enqueue never starts playback")

	err := h.m.EnqueueSong(ctx, "1")
	assert.Equal(t, filter.CodeDuplicateTrack, RejectionCode(err))
	h.waitMessage(t, filter.CodeDuplicateTrack)

	err = h.m.EnqueueSong(ctx, "2")
	assert.Equal(t, filter.CodeTrackUnplayable, RejectionCode(err))
	assert.Len(t, h.m.Player().Snapshot().Queue, 1)
}

func TestManager_EnqueueLoginRequired(t *testing.T) {
	yml := testConfig + "  login_required_filter:\n    enabled: true\n"
	h := newHarness(t, yml, nil, sessiontest.Song("1", "a", true))
	ctx := context.Background()

	err := h.m.EnqueueSong(ctx, "1")
	assert.Equal(t, filter.CodeLoginRequired, RejectionCode(err))

	_, err = h.m.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, h.m.EnqueueSong(ctx, "1"))
}

func TestManager_ToggleFavorite(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true))
	ctx := context.Background()

	_, err := h.m.ToggleFavorite(ctx, "1")
	assert.True(t, errors.Is(err, ErrLoginRequired))
	h.waitMessage(t, "login_required")

	_, err = h.m.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	on, err := h.m.ToggleFavorite(ctx, "1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"1"}, h.api.FavoriteIDs(sessiontest.UserID))

	on, err = h.m.ToggleFavorite(ctx, "1")
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, h.m.IsFavorite("1"))
	assert.Empty(t, h.api.FavoriteIDs(sessiontest.UserID))
}

func TestManager_PlayPlaylistSkipsUnplayable(t *testing.T) {
	h := newHarness(t, testConfig, nil)
	h.api.SetPlaylist("p", sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", false), sessiontest.Song("3", "c", true))
	ctx := context.Background()

	require.NoError(t, h.m.PlayPlaylist(ctx, "p", 1))

	snap := h.m.Player().Snapshot()
	ids := make([]string, 0, len(snap.Queue))
	for _, qt := range snap.Queue {
		ids = append(ids, qt.ID())
		assert.Equal(t, track.SourcePlaylist, qt.Source)
	}
	assert.Equal(t, []string{"1", "3"}, ids)
	assert.Equal(t, "3", snap.Current.ID())

	err := h.m.PlayPlaylist(ctx, "empty", 0)
	assert.True(t, errors.Is(err, ErrNothingToPlay))
}

func TestManager_PlayFavorites(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", true))
	ctx := context.Background()
	assert.True(t, errors.Is(h.m.PlayFavorites(ctx), ErrLoginRequired))

	h.api.SetFavorites(sessiontest.UserID, "2", "1")
	_, err := h.m.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, h.m.PlayFavorites(ctx))
	snap := h.m.Player().Snapshot()
	require.Len(t, snap.Queue, 2)
	assert.Equal(t, "2", snap.Current.ID())
	assert.Equal(t, track.SourceFavorites, snap.Current.Source)
}

func TestManager_LogoutClearsPlayer(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true))
	ctx := context.Background()
	_, err := h.m.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = h.m.ToggleTheme(ctx)
	require.NoError(t, err)
	require.NoError(t, h.m.PlaySong(ctx, "1"))

	require.NoError(t, h.m.Logout(ctx))
	h.waitMessage(t, "logged_out")

	assert.Nil(t, h.m.CurrentUser())
	assert.Empty(t, h.m.Player().Snapshot().Queue)
	assert.Equal(t, playback.StateIdle, h.m.Player().State())
	assert.Equal(t, state.ThemeDark, h.m.Theme())

	var queue []track.QueuedTrack
	ok, err := h.store.Get(ctx, store.KeyQueue, &queue)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_RepeatAndShuffleMessages(t *testing.T) {
	h := newHarness(t, testConfig, nil)
	ctx := context.Background()

	mode, err := h.m.CycleRepeatMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "all", mode.String())
	assert.Equal(t, "Repeat all", h.waitMessage(t, "repeat_all").Text)

	on, err := h.m.ToggleShuffle(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	h.waitMessage(t, "shuffle_on")

	require.NoError(t, h.m.ClearQueue(ctx))
	h.waitMessage(t, "queue_cleared")
}

type staticProvider struct {
	tracks []*track.Track
}

func (s *staticProvider) Candidates(_ context.Context, _ int, _ []*track.Track, exclude map[string]bool) ([]*track.Track, error) {
	var out []*track.Track
	for _, t := range s.tracks {
		if !exclude[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *staticProvider) Name() string { return "static" }

func TestManager_RadioFillsAtQueueEnd(t *testing.T) {
	chain := radio.NewProviderChain([]radio.ProviderWithMetadata{
		{Provider: &staticProvider{tracks: []*track.Track{sessiontest.Song("1", "a", true), sessiontest.Song("9", "z", true)}}, DisplayName: "Radio"},
	})
	h := newHarness(t, testConfig, chain, sessiontest.Song("1", "a", true))
	ctx := context.Background()

	require.NoError(t, h.m.PlaySong(ctx, "1"))
	h.media.End()

	h.waitMessage(t, "radio_started")
	assert.Eventually(t, func() bool {
		snap := h.m.Player().Snapshot()
		return snap.Current != nil && snap.Current.ID() == "9" && snap.State == playback.StatePlaying
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, track.SourceRadio, h.m.Player().Snapshot().Current.Source)
}

func TestManager_QueueEndedWithoutRadio(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true))
	require.NoError(t, h.m.PlaySong(context.Background(), "1"))
	h.media.End()

	assert.Equal(t, "End of queue", h.waitMessage(t, "queue_ended").Text)
}

func TestManager_ProgressCarriesLyricLine(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true))
	h.api.SetSynced(lyrics.NewSynced("1", []lyrics.Line{
		{At: 0, Text: "first"},
		{At: 30 * time.Second, Text: "second"},
	}))
	ctx := context.Background()

	require.NoError(t, h.m.PlaySong(ctx, "1"))
	require.NoError(t, h.media.Seek(45*time.Second))

	assert.Eventually(t, func() bool {
		return h.m.CurrentLyrics() != nil
	}, 2*time.Second, 10*time.Millisecond)

	n := h.m.progressNotification()
	require.NotNil(t, n)
	assert.Equal(t, "1", n.Progress.TrackID)
	assert.Equal(t, int64(45000), n.Progress.PositionMs)
	assert.InDelta(t, 25.0, n.Progress.Percent, 0.01)
	assert.Equal(t, "second", n.Progress.LyricLine)
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t, testConfig, nil)
	h.m.Close()
	h.m.Close()

	select {
	case <-h.m.Done():
	default:
		t.Fatal("done should be closed")
	}
}

func TestManager_StateNotification(t *testing.T) {
	h := newHarness(t, testConfig, nil, sessiontest.Song("1", "a", true))
	require.NoError(t, h.m.PlaySong(context.Background(), "1"))

	n := h.m.StateNotification()
	assert.Equal(t, notification.TypeStateChanged, n.Type)
	require.NotNil(t, n.Track)
	assert.Equal(t, "1", n.Track.ID())
	assert.Equal(t, "playing", n.State.Status)
	assert.Len(t, n.Queue, 1)
	assert.Equal(t, h.m.Notifications().SequenceNo(), n.SequenceNo)
}
