package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/app/session"
	"github.com/osa030/streambox/internal/app/session/sessiontest"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/config"
	"github.com/osa030/streambox/internal/infra/store"
)

const testConfig = `
server:
  control_token: secret
storage:
  driver: memory
filters:
  playable_filter:
    enabled: true
  duplicate_track_filter:
    enabled: true
`

type fixture struct {
	api    *sessiontest.API
	server *httptest.Server
	client *Client
}

func newFixture(t *testing.T, songs ...*track.Track) *fixture {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	f := &fixture{api: sessiontest.NewAPI(songs...)}
	m, err := session.NewManager(cfg, session.Deps{
		API:   f.api,
		Store: store.NewMemory(),
		Media: &sessiontest.Media{},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)

	srv := NewServer(m, cfg)
	srv.pingInterval = 50 * time.Millisecond
	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(f.server.Close)
	f.client = NewClient(f.server.URL, "secret")
	return f
}

func TestServer_ControlTokenRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"wrong", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(f.server.URL, tt.token).Next(ctx)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
			assert.Equal(t, "unauthorized", apiErr.Code)
		})
	}

	// reads stay open
	st, err := NewClient(f.server.URL, "").Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "signed_out", st.Phase)
	assert.Equal(t, "idle", st.Player.State)
}

func TestServer_PlayAndStatus(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", true))
	ctx := context.Background()

	info, err := f.client.Play(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "playing", info.State)
	require.NotNil(t, info.Current)
	assert.Equal(t, "1", info.Current.ID())

	q, err := f.client.Enqueue(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, q.Tracks, 2)
	assert.Equal(t, 0, q.Cursor)

	info, err = f.client.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", info.Current.ID())
	assert.Equal(t, 1, info.Cursor)

	info, err = f.client.TogglePlayPause(ctx)
	require.NoError(t, err)
	assert.Equal(t, "paused", info.State)

	st, err := f.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "paused", st.Player.State)
	assert.Equal(t, "light", st.Theme)
	assert.False(t, st.Radio)
}

func TestServer_ErrorMapping(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", false))
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() error
		status int
		code   string
	}{
		{
			name:   "unknown song",
			call:   func() error { _, err := f.client.Play(ctx, "404"); return err },
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "unplayable song",
			call:   func() error { _, err := f.client.Enqueue(ctx, "2"); return err },
			status: http.StatusConflict,
			code:   filter.CodeTrackUnplayable,
		},
		{
			name:   "seek without track",
			call:   func() error { _, err := f.client.SeekSteps(ctx, 1); return err },
			status: http.StatusConflict,
			code:   "no_active_track",
		},
		{
			name:   "jump out of range",
			call:   func() error { _, err := f.client.Jump(ctx, 3); return err },
			status: http.StatusBadRequest,
			code:   "out_of_range",
		},
		{
			name:   "favorite while signed out",
			call:   func() error { _, err := f.client.ToggleFavorite(ctx, "1"); return err },
			status: http.StatusUnauthorized,
			code:   "login_required",
		},
		{
			name:   "bad repeat mode",
			call:   func() error { _, err := f.client.SetRepeat(ctx, "twice"); return err },
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "invalid registration",
			call:   func() error { _, err := f.client.Register(ctx, "bob", "nope", "secret1"); return err },
			status: http.StatusBadRequest,
			code:   "invalid_registration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestServer_UnknownSongCarriesBackendMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Song(context.Background(), "404")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Song not found", apiErr.Message)
}

func TestServer_DuplicateEnqueue(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true))
	ctx := context.Background()

	_, err := f.client.Enqueue(ctx, "1")
	require.NoError(t, err)
	_, err = f.client.Enqueue(ctx, "1")
	assert.Equal(t, filter.CodeDuplicateTrack, ErrorCode(err))
}

func TestServer_SeekRequiresOneField(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+Prefix+"/player/seek", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set(ControlTokenHeader, "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, f.server.URL+Prefix+"/player/seek", strings.NewReader(`{"bogus":1}`))
	require.NoError(t, err)
	req.Header.Set(ControlTokenHeader, "secret")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestServer_QueueEdits(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", true), sessiontest.Song("3", "c", true))
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := f.client.Enqueue(ctx, id)
		require.NoError(t, err)
	}

	q, err := f.client.RemoveAt(ctx, 1)
	require.NoError(t, err)
	require.Len(t, q.Tracks, 2)
	assert.Equal(t, "3", q.Tracks[1].ID())

	info, err := f.client.Jump(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "3", info.Current.ID())

	require.NoError(t, f.client.ClearQueue(ctx))
	q, err = f.client.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, q.Tracks)
}

func TestServer_ShuffleAndRepeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	on := true
	shuffled, err := f.client.SetShuffle(ctx, &on)
	require.NoError(t, err)
	assert.True(t, shuffled)

	shuffled, err = f.client.SetShuffle(ctx, &on)
	require.NoError(t, err)
	assert.True(t, shuffled, "setting the current value is a no-op")

	shuffled, err = f.client.SetShuffle(ctx, nil)
	require.NoError(t, err)
	assert.False(t, shuffled)

	mode, err := f.client.SetRepeat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "all", mode)

	mode, err = f.client.SetRepeat(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "one", mode)
}

func TestServer_AccountAndFavorites(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", true))
	ctx := context.Background()

	u, err := f.client.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, sessiontest.UserID, u.ID)

	fav, err := f.client.ToggleFavorite(ctx, "2")
	require.NoError(t, err)
	assert.True(t, fav)

	favs, err := f.client.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "2", favs[0].ID)

	info, err := f.client.PlayFavorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", info.Current.ID())

	theme, err := f.client.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", theme)

	require.NoError(t, f.client.Logout(ctx))
	st, err := f.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "signed_out", st.Phase)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Player.Queue)
	assert.Equal(t, "dark", st.Theme)
}

func TestServer_Playlists(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", false), sessiontest.Song("3", "c", true))
	f.api.SetPlaylist("p", sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", false), sessiontest.Song("3", "c", true))
	ctx := context.Background()

	lists, err := f.client.Playlists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)

	info, err := f.client.PlayPlaylist(ctx, "p", 1)
	require.NoError(t, err)
	assert.Equal(t, "3", info.Current.ID())
	assert.Len(t, info.Queue, 2)

	_, err = f.client.CreatePlaylist(ctx, "mix", "")
	assert.Equal(t, "login_required", ErrorCode(err))

	_, err = f.client.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	created, err := f.client.CreatePlaylist(ctx, "mix", "evening")
	require.NoError(t, err)
	require.NoError(t, f.client.AddToPlaylist(ctx, created.ID, "1"))

	songs, err := f.client.PlaylistSongs(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, songs, 1)

	require.NoError(t, f.client.RemoveFromPlaylist(ctx, created.ID, "1"))
	require.NoError(t, f.client.DeletePlaylist(ctx, created.ID))
}

func TestServer_LocalHistory(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true))
	ctx := context.Background()

	_, err := f.client.Play(ctx, "1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		plays, err := f.client.LocalHistory(ctx, 5)
		return err == nil && len(plays) == 1 && plays[0].SongID == "1"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServer_Filters(t *testing.T) {
	f := newFixture(t)

	filters, err := f.client.Filters(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(filters))
	for _, fi := range filters {
		names = append(names, fi.Name)
	}
	assert.ElementsMatch(t, []string{"playable_filter", "duplicate_track_filter"}, names)
}

func TestServer_Subscribe(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *notification.Notification, 64)
	done := make(chan error, 1)
	go func() {
		done <- f.client.Subscribe(ctx, func(n *notification.Notification) error {
			got <- n
			return nil
		})
	}()

	first := waitNotification(t, got, notification.TypeStateChanged)
	assert.Equal(t, "idle", first.State.Status)

	_, err := f.client.Play(context.Background(), "1")
	require.NoError(t, err)

	changed := waitNotification(t, got, notification.TypeTrackChanged)
	require.NotNil(t, changed.Track)
	assert.Equal(t, "1", changed.Track.ID())
	assert.NotZero(t, changed.SequenceNo)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return")
	}
}

func TestServer_SubscribeTypes(t *testing.T) {
	f := newFixture(t, sessiontest.Song("1", "a", true), sessiontest.Song("2", "b", true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *notification.Notification, 64)
	go func() {
		_ = f.client.Subscribe(ctx, func(n *notification.Notification) error {
			got <- n
			return nil
		}, notification.TypeQueueChanged)
	}()

	first := <-got
	assert.Equal(t, notification.TypeStateChanged, first.Type, "snapshot comes first regardless of filter")

	_, err := f.client.Enqueue(context.Background(), "2")
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, notification.TypeQueueChanged, n.Type)
		require.Len(t, n.Queue, 1)
		assert.Equal(t, "2", n.Queue[0].ID())
	case <-time.After(2 * time.Second):
		t.Fatal("no queue notification")
	}
}

func TestServer_SubscribeUnknownType(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL + Prefix + "/events?types=progress,bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func waitNotification(t *testing.T, ch <-chan *notification.Notification, typ notification.Type) *notification.Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Type == typ {
				return n
			}
		case <-timeout:
			t.Fatalf("no %s notification", typ)
			return nil
		}
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rejection", &session.RejectedError{SongID: "1", Result: filter.Result{Code: filter.CodeLoginRequired}}, http.StatusConflict, filter.CodeLoginRequired},
		{"out of range", errors.Wrap(queue.ErrOutOfRange, "jump"), http.StatusBadRequest, "out_of_range"},
		{"nothing to play", session.ErrNothingToPlay, http.StatusConflict, "nothing_to_play"},
		{"playback", errors.Mark(errors.New("decode"), playback.ErrPlayback), http.StatusUnprocessableEntity, "playback_failed"},
		{"auth", errors.Mark(errors.New("bad password"), api.ErrAuthRejected), http.StatusUnauthorized, "auth_rejected"},
		{"upstream", &api.HTTPError{Status: 500, Message: "boom"}, http.StatusBadGateway, "upstream_error"},
		{"deadline", errors.Wrap(context.DeadlineExceeded, "songs"), http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
