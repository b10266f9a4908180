package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/media"
	"github.com/osa030/streambox/internal/infra/store"
)

type fakeMedia struct {
	mu sync.Mutex

	src      media.Source
	loads    []string
	playing  bool
	position time.Duration
	volume   float64

	playErr  map[string]error
	gates    map[string]chan struct{} // Play blocks until the gate is closed
	inFlight map[string]bool

	onEnded func()
	onError func(error)
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		playErr:  make(map[string]error),
		gates:    make(map[string]chan struct{}),
		inFlight: make(map[string]bool),
	}
}

func (m *fakeMedia) Load(src media.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.src = src
	m.loads = append(m.loads, src.URL)
	m.playing = false
	m.position = 0
	return nil
}

func (m *fakeMedia) Play(ctx context.Context) error {
	m.mu.Lock()
	url := m.src.URL
	gate := m.gates[url]
	m.inFlight[url] = true
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[url] = false
	if err := m.playErr[url]; err != nil {
		return err
	}
	m.playing = true
	return nil
}

func (m *fakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *fakeMedia) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
	return nil
}

func (m *fakeMedia) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *fakeMedia) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src.Duration
}

func (m *fakeMedia) SetVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	return nil
}

func (m *fakeMedia) SetOnEnded(fn func())      { m.onEnded = fn }
func (m *fakeMedia) SetOnError(fn func(error)) { m.onError = fn }

func (m *fakeMedia) gate(url string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.gates[url] = ch
	return ch
}

func (m *fakeMedia) isInFlight(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[url]
}

func (m *fakeMedia) isPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *fakeMedia) loadedURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src.URL
}

func (m *fakeMedia) setPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
}

func (m *fakeMedia) end() {
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
	m.onEnded()
}

func song(id string) track.QueuedTrack {
	return track.NewQueued(&track.Track{
		ID:       id,
		Title:    "Song " + id,
		Duration: 3 * time.Minute,
		AudioURL: "http://audio.example.com/" + id + ".mp3",
	}, track.SourceUser)
}

func url(id string) string {
	return "http://audio.example.com/" + id + ".mp3"
}

func newTestController(t *testing.T, st Store) (*Controller, *fakeMedia) {
	t.Helper()
	m := newFakeMedia()
	if st == nil {
		st = store.NewMemory()
	}
	c := NewController(m, st, DefaultConfig())
	t.Cleanup(c.Close)
	return c, m
}

func queueIDs(snap Snapshot) []string {
	ids := make([]string, 0, len(snap.Queue))
	for _, qt := range snap.Queue {
		ids = append(ids, qt.ID())
	}
	return ids
}

func appendAll(t *testing.T, c *Controller, ids ...string) {
	t.Helper()
	for _, id := range ids {
		ok, err := c.Append(context.Background(), song(id))
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestController_PlayAppendsAndStarts(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, song("A")))

	snap := c.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "A", snap.Current.ID())
	assert.Equal(t, []string{"A"}, queueIDs(snap))
	assert.True(t, m.isPlaying())

	require.NoError(t, c.Play(ctx, song("A")))
	assert.Len(t, c.Snapshot().Queue, 1, "playing a queued track must not duplicate it")
}

func TestController_PlayUnplayableTrack(t *testing.T) {
	c, m := newTestController(t, nil)

	qt := song("A")
	qt.Track.AudioURL = ""
	err := c.Play(context.Background(), qt)

	assert.True(t, errors.Is(err, ErrPlayback))
	assert.Equal(t, StateLoaded, c.State())
	assert.Empty(t, m.loads)
	assert.Equal(t, []string{"A"}, queueIDs(c.Snapshot()))
}

func TestController_PlayRejectedByMedia(t *testing.T) {
	c, m := newTestController(t, nil)
	m.playErr[url("A")] = errors.New("decoder error")

	err := c.Play(context.Background(), song("A"))

	assert.True(t, errors.Is(err, ErrPlayback))
	assert.Equal(t, StateLoaded, c.State())
}

func TestController_StaleCompletionIsDiscarded(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	gateA := m.gate(url("A"))

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Play(ctx, song("A")) }()
	require.Eventually(t, func() bool { return m.isInFlight(url("A")) }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Play(ctx, song("B")))
	assert.Equal(t, StatePlaying, c.State())

	close(gateA)
	require.NoError(t, <-firstDone)

	snap := c.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "B", snap.Current.ID())
	assert.Equal(t, url("B"), m.loadedURL())
}

func TestController_PauseWhilePlayPending(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	gate := m.gate(url("A"))

	done := make(chan error, 1)
	go func() { done <- c.Play(ctx, song("A")) }()
	require.Eventually(t, func() bool { return m.isInFlight(url("A")) }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.TogglePlayPause(ctx))
	assert.Equal(t, StatePaused, c.State())

	close(gate)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool { return !m.isInFlight(url("A")) }, time.Second, 5*time.Millisecond)
	// Synchronize with the loop so the stale completion has been handled.
	require.NoError(t, c.SetShuffled(ctx, false))
	assert.Equal(t, StatePaused, c.State())
	assert.False(t, m.isPlaying(), "stale completion must not leave audio playing")
}

func TestController_TogglePlayPause(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()

	assert.True(t, errors.Is(c.TogglePlayPause(ctx), ErrNoActiveTrack))

	require.NoError(t, c.Play(ctx, song("A")))
	require.NoError(t, c.TogglePlayPause(ctx))
	assert.Equal(t, StatePaused, c.State())
	assert.False(t, m.isPlaying())

	require.NoError(t, c.TogglePlayPause(ctx))
	assert.Equal(t, StatePlaying, c.State())
	assert.True(t, m.isPlaying())
}

func TestController_NextPreservesPausedState(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B", "C")

	require.NoError(t, c.JumpTo(ctx, 0))
	require.NoError(t, c.Pause(ctx))

	require.NoError(t, c.Next(ctx))
	snap := c.Snapshot()
	assert.Equal(t, "B", snap.Current.ID())
	assert.Equal(t, StateLoaded, snap.State)
	assert.False(t, m.isPlaying())

	require.NoError(t, c.Resume(ctx))
	require.NoError(t, c.Next(ctx))
	snap = c.Snapshot()
	assert.Equal(t, "C", snap.Current.ID())
	assert.Equal(t, StatePlaying, snap.State)
}

func TestController_NextAtEndWithoutRepeat(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B")
	require.NoError(t, c.JumpTo(ctx, 1))
	m.setPosition(42 * time.Second)

	drain(c)
	require.NoError(t, c.Next(ctx))

	snap := c.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "B", snap.Current.ID())
	assert.Equal(t, time.Duration(0), m.CurrentTime())
	assert.False(t, m.isPlaying())
	assert.Contains(t, eventTypes(c), EventQueueEnded)
}

func TestController_NextRepeatAllWraps(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B", "C")
	require.NoError(t, c.SetRepeatMode(ctx, queue.RepeatAll))
	require.NoError(t, c.JumpTo(ctx, 2))

	require.NoError(t, c.Next(ctx))
	assert.Equal(t, "A", c.Snapshot().Current.ID())
	assert.Equal(t, 0, c.Snapshot().Cursor)
}

func TestController_Previous(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B")
	require.NoError(t, c.JumpTo(ctx, 1))

	m.setPosition(5 * time.Second)
	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, "B", c.Snapshot().Current.ID(), "past the threshold the track restarts")
	assert.Equal(t, time.Duration(0), m.CurrentTime())

	m.setPosition(time.Second)
	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, "A", c.Snapshot().Current.ID())
	assert.Equal(t, StatePlaying, c.State())
}

func TestController_MediaEndedAdvances(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B")
	require.NoError(t, c.JumpTo(ctx, 0))

	m.end()
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Current != nil && snap.Current.ID() == "B" && snap.State == StatePlaying
	}, time.Second, 5*time.Millisecond)

	m.end()
	require.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.Snapshot().Current)
	assert.Len(t, c.Snapshot().Queue, 2)
}

func TestController_MediaEndedRepeatOne(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B")
	require.NoError(t, c.SetRepeatMode(ctx, queue.RepeatOne))
	require.NoError(t, c.JumpTo(ctx, 0))
	loads := len(m.loads)

	m.setPosition(3 * time.Minute)
	m.end()
	require.Eventually(t, func() bool { return m.isPlaying() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, "A", c.Snapshot().Current.ID())
	assert.Equal(t, time.Duration(0), m.CurrentTime())
	assert.Len(t, m.loads, loads, "repeat one restarts without reloading")
}

func TestController_MediaErrorReportsFailure(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	require.NoError(t, c.Play(ctx, song("A")))
	drain(c)

	m.onError(errors.New("network lost"))
	require.Eventually(t, func() bool { return c.State() == StateLoaded }, time.Second, 5*time.Millisecond)

	var failed *Event
	for _, e := range collect(c) {
		if e.Type == EventPlaybackFailed {
			failed = &e
		}
	}
	require.NotNil(t, failed)
	assert.True(t, errors.Is(failed.Err, ErrPlayback))
}

func TestController_Volume(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, c.SetVolume(ctx, 1.5))
	assert.Equal(t, 1.0, c.Snapshot().Volume)
	require.NoError(t, c.SetVolume(ctx, -0.2))
	assert.Equal(t, 0.0, c.Snapshot().Volume)

	require.NoError(t, c.SetVolume(ctx, 0.7))
	require.NoError(t, c.ToggleMute(ctx))
	assert.True(t, c.Snapshot().Muted)
	assert.Equal(t, 0.0, m.volume)

	require.NoError(t, c.ToggleMute(ctx))
	assert.False(t, c.Snapshot().Muted)
	assert.Equal(t, 0.7, c.Snapshot().Volume)

	require.NoError(t, c.VolumeDown(ctx))
	assert.InDelta(t, 0.6, c.Snapshot().Volume, 1e-9)
}

func TestController_UnmuteFromZeroUsesDefault(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, c.SetVolume(ctx, 0))
	require.NoError(t, c.ToggleMute(ctx))
	require.NoError(t, c.ToggleMute(ctx))
	assert.Equal(t, 0.5, c.Snapshot().Volume)
}

func TestController_Seek(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()

	assert.True(t, errors.Is(c.Seek(ctx, time.Second), ErrNoActiveTrack))

	require.NoError(t, c.Play(ctx, song("A")))
	require.NoError(t, c.Seek(ctx, 10*time.Minute))
	assert.Equal(t, 3*time.Minute, m.CurrentTime())

	require.NoError(t, c.SeekPercent(ctx, 0.5))
	assert.Equal(t, 90*time.Second, m.CurrentTime())

	require.NoError(t, c.SeekStep(ctx, -1))
	assert.Equal(t, 80*time.Second, m.CurrentTime())
}

func TestController_RemoveCurrentLoadsNext(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B", "C")
	require.NoError(t, c.JumpTo(ctx, 1))

	removed, err := c.RemoveAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", removed.ID())

	snap := c.Snapshot()
	assert.Equal(t, []string{"A", "C"}, queueIDs(snap))
	assert.Equal(t, "C", snap.Current.ID())
	assert.Equal(t, StatePlaying, snap.State)

	_, err = c.RemoveAt(ctx, 9)
	assert.True(t, errors.Is(err, queue.ErrOutOfRange))
}

func TestController_Clear(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	require.NoError(t, c.Play(ctx, song("A")))

	require.NoError(t, c.Clear(ctx))

	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Queue)
	assert.False(t, m.isPlaying())
}

func TestController_LoadReplacesQueue(t *testing.T) {
	c, m := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "X", "Y")

	list := []track.QueuedTrack{song("A"), song("B"), song("B"), song("C")}
	require.NoError(t, c.Load(ctx, list, 3))

	snap := c.Snapshot()
	assert.Equal(t, []string{"A", "B", "C"}, queueIDs(snap))
	assert.Equal(t, 2, snap.Cursor)
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, url("C"), m.loadedURL())

	err := c.Load(ctx, nil, 0)
	assert.True(t, errors.Is(err, queue.ErrOutOfRange))
	assert.Equal(t, []string{"A", "B", "C"}, queueIDs(c.Snapshot()), "a rejected load leaves the queue alone")
}

func TestController_LoadWhileShuffled(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx := context.Background()
	require.NoError(t, c.SetShuffled(ctx, true))

	list := []track.QueuedTrack{song("A"), song("B"), song("C"), song("D")}
	require.NoError(t, c.Load(ctx, list, 2))

	snap := c.Snapshot()
	assert.True(t, snap.Shuffled)
	assert.Equal(t, 0, snap.Cursor)
	assert.Equal(t, "C", snap.Current.ID())
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, queueIDs(snap))

	require.NoError(t, c.SetShuffled(ctx, false))
	snap = c.Snapshot()
	assert.Equal(t, []string{"A", "B", "C", "D"}, queueIDs(snap))
	assert.Equal(t, 2, snap.Cursor)
}

func TestController_ShuffleKeepsCurrent(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B", "C", "D")
	require.NoError(t, c.JumpTo(ctx, 2))

	on, err := c.ToggleShuffle(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Cursor)
	assert.Equal(t, "C", snap.Current.ID())
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, queueIDs(snap))

	require.NoError(t, c.SetShuffled(ctx, false))
	snap = c.Snapshot()
	assert.Equal(t, []string{"A", "B", "C", "D"}, queueIDs(snap))
	assert.Equal(t, 2, snap.Cursor)
}

func TestController_PersistenceRoundTrip(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	c1, _ := newTestController(t, st)
	appendAll(t, c1, "A", "B", "C")
	require.NoError(t, c1.JumpTo(ctx, 1))
	require.NoError(t, c1.SetShuffled(ctx, true))
	require.NoError(t, c1.SetRepeatMode(ctx, queue.RepeatAll))
	require.NoError(t, c1.SetVolume(ctx, 0.3))
	before := c1.Snapshot()
	c1.Close()

	c2, m2 := newTestController(t, st)
	require.NoError(t, c2.Restore(ctx))

	after := c2.Snapshot()
	assert.Equal(t, queueIDs(before), queueIDs(after))
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.True(t, after.Shuffled)
	assert.Equal(t, queue.RepeatAll, after.Repeat)
	assert.Equal(t, 0.3, after.Volume)
	assert.Equal(t, 0.3, m2.volume)
	assert.Equal(t, StateLoaded, after.State)
	assert.Equal(t, "B", after.Current.ID())
	assert.False(t, m2.isPlaying(), "restore must not start playback")

	require.NoError(t, c2.SetShuffled(ctx, false))
	assert.Equal(t, []string{"A", "B", "C"}, queueIDs(c2.Snapshot()))
}

func TestController_RestoreCorruptFallsBackToDefaults(t *testing.T) {
	st := store.NewMemory()
	st.SetRaw(store.KeyVolume, []byte(`"loud"`))
	st.SetRaw(store.KeyRepeat, []byte(`"forever"`))
	st.SetRaw(store.KeyShuffle, []byte(`{`))
	st.SetRaw(store.KeyQueue, []byte(`[{"track":`))

	c, _ := newTestController(t, st)
	require.NoError(t, c.Restore(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, 0.5, snap.Volume)
	assert.Equal(t, queue.RepeatNone, snap.Repeat)
	assert.False(t, snap.Shuffled)
	assert.Empty(t, snap.Queue)
	assert.Equal(t, StateIdle, snap.State)
}

func TestController_RestoreOutOfRangeVolume(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set(context.Background(), store.KeyVolume, 3.0))

	c, _ := newTestController(t, st)
	require.NoError(t, c.Restore(context.Background()))
	assert.Equal(t, 0.5, c.Snapshot().Volume)
}

func TestController_AppendDuplicate(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx := context.Background()
	appendAll(t, c, "A", "B")

	ok, err := c.Append(ctx, song("A"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, c.Snapshot().Queue, 2)
}

func TestController_ClosedRejectsCommands(t *testing.T) {
	c, _ := newTestController(t, nil)
	c.Close()

	_, err := c.Append(context.Background(), song("A"))
	assert.True(t, errors.Is(err, ErrClosed))
}

func drain(c *Controller) {
	for {
		select {
		case <-c.Events():
		default:
			return
		}
	}
}

func collect(c *Controller) []Event {
	var events []Event
	for {
		select {
		case e := <-c.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func eventTypes(c *Controller) []EventType {
	var types []EventType
	for _, e := range collect(c) {
		types = append(types, e.Type)
	}
	return types
}
