package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/api/rest"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/domain/track"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRemote) record(call string) (*rest.PlayerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return &rest.PlayerInfo{}, f.err
}

func (f *fakeRemote) TogglePlayPause(context.Context) (*rest.PlayerInfo, error) {
	return f.record("toggle")
}
func (f *fakeRemote) Next(context.Context) (*rest.PlayerInfo, error)     { return f.record("next") }
func (f *fakeRemote) Previous(context.Context) (*rest.PlayerInfo, error) { return f.record("previous") }
func (f *fakeRemote) SeekSteps(_ context.Context, steps int) (*rest.PlayerInfo, error) {
	if steps < 0 {
		return f.record("seek-")
	}
	return f.record("seek+")
}
func (f *fakeRemote) VolumeSteps(_ context.Context, steps int) (*rest.PlayerInfo, error) {
	if steps < 0 {
		return f.record("vol-")
	}
	return f.record("vol+")
}
func (f *fakeRemote) ToggleMute(context.Context) (*rest.PlayerInfo, error) { return f.record("mute") }
func (f *fakeRemote) SetShuffle(context.Context, *bool) (bool, error) {
	_, err := f.record("shuffle")
	return true, err
}
func (f *fakeRemote) SetRepeat(context.Context, string) (string, error) {
	_, err := f.record("repeat")
	return "all", err
}

func (f *fakeRemote) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func queued(id, title, artist string) *track.QueuedTrack {
	qt := track.NewQueued(&track.Track{
		ID:       id,
		Title:    title,
		Artist:   track.ArtistRef{Name: artist},
		Duration: 3 * time.Minute,
	}, track.SourceUser)
	return &qt
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_KeysCallRemote(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}, "toggle"},
		{runes("n"), "next"},
		{runes("p"), "previous"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "seek-"},
		{tea.KeyMsg{Type: tea.KeyRight}, "seek+"},
		{runes("+"), "vol+"},
		{runes("-"), "vol-"},
		{runes("m"), "mute"},
		{runes("s"), "shuffle"},
		{runes("r"), "repeat"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			remote := &fakeRemote{}
			m := NewModel(context.Background(), remote, nil)

			_, cmd := m.Update(tt.key)
			require.NotNil(t, cmd)
			msg := cmd()
			assert.Equal(t, commandDoneMsg{}, msg)
			assert.Equal(t, tt.want, remote.last())
		})
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(context.Background(), &fakeRemote{}, nil)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_CommandErrorIsShown(t *testing.T) {
	remote := &fakeRemote{err: errors.New("no active track")}
	m := NewModel(context.Background(), remote, nil)

	_, cmd := m.Update(runes("n"))
	m.Update(cmd())
	assert.Contains(t, m.View(), "no active track")
}

func TestModel_AppliesNotifications(t *testing.T) {
	events := make(chan *notification.Notification, 4)
	m := NewModel(context.Background(), &fakeRemote{}, events)
	assert.Contains(t, m.View(), "Nothing playing")

	a := queued("1", "Blue Train", "Coltrane")
	b := queued("2", "So What", "Davis")

	initial := notification.New(notification.TypeStateChanged)
	initial.Track = a
	initial.Queue = []track.QueuedTrack{*a, *b}
	initial.State = &notification.PlayerState{Status: "playing", Volume: 0.7, Repeat: "all"}
	events <- initial

	msg := m.Init()()
	_, cmd := m.Update(msg)
	require.NotNil(t, cmd, "keeps waiting for events")

	view := m.View()
	assert.Contains(t, view, "Blue Train")
	assert.Contains(t, view, "Coltrane")
	assert.Contains(t, view, "So What")
	assert.Contains(t, view, "vol 70%")
	assert.Contains(t, view, "repeat all")

	p := notification.New(notification.TypeProgress)
	p.Progress = &notification.Progress{TrackID: "1", PositionMs: 45000, DurationMs: 180000, Percent: 25, LyricLine: "la la"}
	m.Update(eventMsg{n: p})
	view = m.View()
	assert.Contains(t, view, "0:45")
	assert.Contains(t, view, "3:00")
	assert.Contains(t, view, "la la")

	changed := notification.New(notification.TypeTrackChanged)
	changed.Track = b
	changed.State = &notification.PlayerState{Status: "loaded", Cursor: 1, Volume: 0.7, Muted: true}
	m.Update(eventMsg{n: changed})
	view = m.View()
	assert.NotContains(t, view, "0:45", "progress resets on track change")
	assert.Contains(t, view, "muted")
	assert.Contains(t, view, "Queue (2/2)")

	m.Update(eventMsg{n: notification.NewMessage(notification.LevelInfo, "shuffle_on", "Shuffle on")})
	assert.Contains(t, m.View(), "Shuffle on")
}

func TestModel_StreamClosed(t *testing.T) {
	events := make(chan *notification.Notification)
	close(events)
	m := NewModel(context.Background(), &fakeRemote{}, events)

	m.Update(m.Init()())
	assert.Contains(t, m.View(), "Disconnected")
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", clock(0))
	assert.Equal(t, "1:05", clock(65*time.Second))
	assert.Equal(t, "12:00", clock(12*time.Minute))
}
