package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/media"
)

// Errors
var (
	ErrNoActiveTrack   = errors.New("no active track")
	ErrPlayback        = errors.New("playback failed")
	ErrStaleCompletion = errors.New("stale play completion")
	ErrClosed          = errors.New("controller closed")
)

// Media is the audio output driven by the controller.
type Media interface {
	Load(src media.Source) error
	Play(ctx context.Context) error
	Pause() error
	Seek(pos time.Duration) error
	CurrentTime() time.Duration
	Duration() time.Duration
	SetVolume(v float64) error
	SetOnEnded(fn func())
	SetOnError(fn func(error))
}

// Store persists controller state between runs.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

// Config holds controller configuration.
type Config struct {
	DefaultVolume    float64       // Volume used when nothing valid is stored
	VolumeStep       float64       // Step for VolumeUp / VolumeDown
	SeekStep         time.Duration // Step for SeekStep
	RestartThreshold time.Duration // "Previous" restarts the track past this position
	PlayTimeout      time.Duration // Upper bound for a single media play attempt (0 = none)
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		DefaultVolume:    0.5,
		VolumeStep:       0.1,
		SeekStep:         10 * time.Second,
		RestartThreshold: queue.DefaultRestartThreshold,
		PlayTimeout:      15 * time.Second,
	}
}

// Snapshot is a consistent view of the controller state.
type Snapshot struct {
	State    State
	Current  *track.QueuedTrack
	Cursor   int
	Queue    []track.QueuedTrack
	Shuffled bool
	Repeat   queue.RepeatMode
	Volume   float64
	Muted    bool
}

// Progress describes the playback position of the current track.
type Progress struct {
	TrackID  string
	State    State
	Position time.Duration
	Duration time.Duration
}

type command struct {
	name  string
	fn    func() error
	reply chan error
}

// Controller serializes every transport operation on a single goroutine.
// Public methods submit a command and wait for it; media callbacks and
// asynchronous play completions are posted to the same command channel, so
// they are applied in the order received.
type Controller struct {
	media  Media
	store  Store
	config Config

	// Owned by the loop goroutine.
	queue         *queue.Queue
	state         State
	loaded        bool // media holds the current track
	volume        float64
	muted         bool
	preMuteVolume float64
	loadSeq       uint64 // incremented for every load and play attempt
	pendingSeq    uint64 // seq of the in-flight play attempt, 0 if none
	playCancel    context.CancelFunc

	mediaSeq atomic.Uint64 // loadSeq of the source the media element holds

	cmdCh   chan command
	eventCh chan Event

	snapMu sync.RWMutex
	snap   Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	queueOpts []queue.Option
}

// WithQueueOptions passes options to the underlying queue.
func WithQueueOptions(opts ...queue.Option) Option {
	return func(o *controllerOptions) {
		o.queueOpts = append(o.queueOpts, opts...)
	}
}

// NewController creates a controller and starts its command loop.
func NewController(m Media, store Store, config Config, opts ...Option) *Controller {
	var o controllerOptions
	for _, opt := range opts {
		opt(&o)
	}
	def := DefaultConfig()
	if config.DefaultVolume <= 0 || config.DefaultVolume > 1 {
		config.DefaultVolume = def.DefaultVolume
	}
	if config.VolumeStep <= 0 {
		config.VolumeStep = def.VolumeStep
	}
	if config.SeekStep <= 0 {
		config.SeekStep = def.SeekStep
	}
	if config.RestartThreshold <= 0 {
		config.RestartThreshold = def.RestartThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		media:   m,
		store:   store,
		config:  config,
		queue:   queue.New(append([]queue.Option{queue.WithRestartThreshold(config.RestartThreshold)}, o.queueOpts...)...),
		state:   StateIdle,
		volume:  config.DefaultVolume,
		cmdCh:   make(chan command, 64),
		eventCh: make(chan Event, 64),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.SetOnEnded(func() {
		seq := c.mediaSeq.Load()
		c.post("media_ended", func() error { return c.onMediaEndedLocked(seq) })
	})
	m.SetOnError(func(err error) {
		seq := c.mediaSeq.Load()
		c.post("media_error", func() error { return c.onMediaErrorLocked(seq, err) })
	})

	c.publishSnapshot()
	go c.run()
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Snapshot returns the state published after the last command.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// State returns the current transport state.
func (c *Controller) State() State {
	return c.Snapshot().State
}

// Progress reads the current position from the media element.
func (c *Controller) Progress() Progress {
	snap := c.Snapshot()
	p := Progress{State: snap.State}
	if snap.Current == nil || !snap.State.HasTrack() {
		return p
	}
	p.TrackID = snap.Current.ID()
	p.Position = c.media.CurrentTime()
	p.Duration = c.media.Duration()
	if p.Duration <= 0 {
		p.Duration = snap.Current.Track.Duration
	}
	return p
}

// Close stops the command loop. The media element is left to its owner.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			if c.playCancel != nil {
				c.playCancel()
			}
			return
		case cmd := <-c.cmdCh:
			err := c.call(cmd)
			c.publishSnapshot()
			if cmd.reply != nil {
				cmd.reply <- err
			}
		}
	}
}

func (c *Controller) call(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: panic in %s: %v", cmd.name, r)
			err = errors.Newf("playback: %s: %v", cmd.name, r)
		}
	}()
	return cmd.fn()
}

// exec runs fn on the loop goroutine and waits for its result.
func (c *Controller) exec(ctx context.Context, name string, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.cmdCh <- command{name: name, fn: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// post queues fn without waiting for it.
func (c *Controller) post(name string, fn func() error) {
	select {
	case c.cmdCh <- command{name: name, fn: func() error {
		if err := fn(); err != nil {
			zlog.Debug().Err(err).Msgf("playback: %s", name)
		}
		return nil
	}}:
	case <-c.done:
	}
}

// await waits for an asynchronous play attempt started by a command.
func (c *Controller) await(ctx context.Context, wait <-chan error) error {
	if wait == nil {
		return nil
	}
	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) publishSnapshot() {
	snap := Snapshot{
		State:    c.state,
		Cursor:   c.queue.Cursor(),
		Queue:    c.queue.Tracks(),
		Shuffled: c.queue.Shuffled(),
		Repeat:   c.queue.RepeatMode(),
		Volume:   c.volume,
		Muted:    c.muted,
	}
	if snap.State.HasTrack() {
		if cur, ok := c.queue.Current(); ok {
			snap.Current = &cur
		}
	}

	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()
}

func (c *Controller) currentLocked() *track.QueuedTrack {
	if !c.state.HasTrack() {
		return nil
	}
	cur, ok := c.queue.Current()
	if !ok {
		return nil
	}
	return &cur
}

func (c *Controller) sendEventLocked(t EventType, err error) {
	e := Event{
		Type:     t,
		Track:    c.currentLocked(),
		Cursor:   c.queue.Cursor(),
		State:    c.state,
		Volume:   c.volume,
		Muted:    c.muted,
		Shuffled: c.queue.Shuffled(),
		Repeat:   c.queue.RepeatMode(),
		Err:      err,
	}
	if t == EventQueueChanged {
		e.Queue = c.queue.Tracks()
	}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping %s", t)
	}
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	zlog.Debug().Msgf("playback: state %s -> %s", c.state, s)
	c.state = s
	c.sendEventLocked(EventStateChanged, nil)
}

// isPlayingLocked treats an in-flight play attempt as playing.
func (c *Controller) isPlayingLocked() bool {
	return c.state == StatePlaying || c.pendingSeq != 0
}

// cancelPendingLocked abandons the in-flight play attempt; its completion becomes stale.
func (c *Controller) cancelPendingLocked() {
	if c.playCancel != nil {
		c.playCancel()
		c.playCancel = nil
	}
	c.pendingSeq = 0
}

// loadCurrentLocked loads the track at the cursor and optionally starts it.
// The returned channel, when non-nil, receives the result of the play attempt.
func (c *Controller) loadCurrentLocked(autoplay bool) (<-chan error, error) {
	cur, ok := c.queue.Current()
	if !ok {
		c.stopLocked(StateIdle)
		return nil, ErrNoActiveTrack
	}

	c.cancelPendingLocked()
	c.loadSeq++
	c.mediaSeq.Store(c.loadSeq)
	c.loaded = false
	prev := c.state
	c.state = StateLoaded
	c.sendEventLocked(EventTrackChanged, nil)
	if prev != StateLoaded {
		c.sendEventLocked(EventStateChanged, nil)
	}
	defer c.persistLocked()

	if !cur.Track.IsPlayable() {
		_ = c.media.Pause()
		return nil, c.failLocked(errors.Newf("track %q has no audio resource", cur.ID()))
	}
	if err := c.media.Load(media.Source{URL: cur.Track.AudioURL, Duration: cur.Track.Duration}); err != nil {
		return nil, c.failLocked(errors.Wrapf(err, "load track %q", cur.ID()))
	}
	c.loaded = true
	zlog.Debug().Msgf("playback: loaded %s (%s)", cur.ID(), cur.Track.Title)

	if !autoplay {
		return nil, nil
	}
	return c.startPlayLocked(), nil
}

// startPlayLocked runs media.Play on its own goroutine and posts the completion
// back to the loop tagged with a fresh sequence number.
func (c *Controller) startPlayLocked() <-chan error {
	c.cancelPendingLocked()
	c.loadSeq++
	seq := c.loadSeq
	c.pendingSeq = seq

	var playCtx context.Context
	var cancel context.CancelFunc
	if c.config.PlayTimeout > 0 {
		playCtx, cancel = context.WithTimeout(c.ctx, c.config.PlayTimeout)
	} else {
		playCtx, cancel = context.WithCancel(c.ctx)
	}
	c.playCancel = cancel

	result := make(chan error, 1)
	go func() {
		err := c.media.Play(playCtx)
		cancel()
		c.post("play_completed", func() error {
			return c.completePlayLocked(seq, err, result)
		})
	}()
	return result
}

func (c *Controller) completePlayLocked(seq uint64, playErr error, result chan<- error) error {
	if seq != c.pendingSeq {
		// Audio that started for a superseded attempt must not keep playing
		// unless a newer attempt wants it.
		if playErr == nil && c.pendingSeq == 0 && c.state != StatePlaying {
			_ = c.media.Pause()
		}
		result <- nil
		return errors.Wrapf(ErrStaleCompletion, "seq %d, pending %d", seq, c.pendingSeq)
	}

	c.pendingSeq = 0
	c.playCancel = nil
	if playErr != nil {
		c.setStateLocked(StateLoaded)
		err := c.failLocked(errors.Wrap(playErr, "media rejected playback"))
		result <- err
		return nil
	}

	c.setStateLocked(StatePlaying)
	result <- nil
	return nil
}

// failLocked reports a playback failure. Queue state is left untouched.
func (c *Controller) failLocked(cause error) error {
	err := errors.Mark(cause, ErrPlayback)
	zlog.Warn().Err(err).Msg("playback: failed")
	c.sendEventLocked(EventPlaybackFailed, err)
	return err
}

// stopLocked halts the media element and settles in the given resting state.
func (c *Controller) stopLocked(s State) {
	c.cancelPendingLocked()
	if c.loaded {
		_ = c.media.Pause()
	}
	if s == StateIdle {
		c.loaded = false
		if c.state != StateIdle {
			c.state = StateIdle
			c.sendEventLocked(EventTrackChanged, nil)
			c.sendEventLocked(EventStateChanged, nil)
		}
		return
	}
	c.setStateLocked(s)
}

func (c *Controller) onMediaEndedLocked(seq uint64) error {
	if seq != c.mediaSeq.Load() || !c.loaded {
		return errors.Wrap(ErrStaleCompletion, "ended for replaced source")
	}
	cur, _ := c.queue.Current()
	zlog.Debug().Msgf("playback: track ended: %s", cur.ID())

	switch c.queue.Advance() {
	case queue.StepRestart:
		if err := c.media.Seek(0); err != nil {
			return c.failLocked(errors.Wrap(err, "restart track"))
		}
		c.startPlayLocked()
		return nil
	case queue.StepMoved:
		_, err := c.loadCurrentLocked(true)
		return err
	default:
		c.stopLocked(StateIdle)
		c.persistLocked()
		c.sendEventLocked(EventQueueEnded, nil)
		return nil
	}
}

func (c *Controller) onMediaErrorLocked(seq uint64, cause error) error {
	if seq != c.mediaSeq.Load() || !c.loaded {
		return errors.Wrap(ErrStaleCompletion, "error for replaced source")
	}
	c.cancelPendingLocked()
	c.setStateLocked(StateLoaded)
	return c.failLocked(cause)
}
