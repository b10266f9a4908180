package media

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Simulated is an Element that produces no sound. It tracks position on the
// wall clock and signals the end of a source once its duration has elapsed.
// It is the default driver for headless deployments where a remote renderer
// does the actual decoding.
type Simulated struct {
	mu sync.Mutex

	src          Source
	loaded       bool
	playing      bool
	offset       time.Duration // position accumulated before playingSince
	playingSince time.Time
	volume       float64

	generation  uint64 // incremented on every Load
	timerCancel func()

	onEnded func()
	onError func(error)

	probe  *http.Client
	closed bool
}

// SimulatedOption configures a Simulated element.
type SimulatedOption func(*Simulated)

// WithProbe makes Play issue a HEAD request for the source URL and fail on a non-2xx answer.
func WithProbe(client *http.Client) SimulatedOption {
	return func(s *Simulated) {
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		s.probe = client
	}
}

// NewSimulated creates a simulated element.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{volume: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements Element.
func (s *Simulated) Load(src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.stopTimerLocked()
	s.generation++
	s.src = src
	s.loaded = src.URL != ""
	s.playing = false
	s.offset = 0
	if !s.loaded {
		return ErrNoSource
	}
	return nil
}

// Play implements Element.
func (s *Simulated) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	url := s.src.URL
	probe := s.probe
	s.mu.Unlock()

	if probe != nil {
		if err := probeURL(ctx, probe, url); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "play")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		return errors.New("source replaced before playback started")
	}
	if s.playing {
		return nil
	}
	s.playing = true
	s.playingSince = toWallTime(time.Now())
	s.startTimerLocked()
	return nil
}

// Pause implements Element.
func (s *Simulated) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return nil
	}
	s.offset = s.positionLocked()
	s.playing = false
	s.stopTimerLocked()
	return nil
}

// Seek implements Element.
func (s *Simulated) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNoSource
	}
	if pos < 0 {
		pos = 0
	}
	if s.src.Duration > 0 && pos > s.src.Duration {
		pos = s.src.Duration
	}
	s.offset = pos
	if s.playing {
		s.playingSince = toWallTime(time.Now())
		s.startTimerLocked()
	}
	return nil
}

// CurrentTime implements Element.
func (s *Simulated) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// Duration implements Element.
func (s *Simulated) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Duration
}

// Volume returns the last volume set.
func (s *Simulated) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// IsPlaying reports whether the element is currently playing.
func (s *Simulated) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetVolume implements Element.
func (s *Simulated) SetVolume(v float64) error {
	s.mu.Lock()
	s.volume = ClampVolume(v)
	s.mu.Unlock()
	return nil
}

// SetOnEnded implements Element.
func (s *Simulated) SetOnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// SetOnError implements Element.
func (s *Simulated) SetOnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Close implements Element.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.closed = true
	s.playing = false
	return nil
}

func (s *Simulated) positionLocked() time.Duration {
	pos := s.offset
	if s.playing {
		pos += toWallTime(time.Now()).Sub(s.playingSince)
	}
	if s.src.Duration > 0 && pos > s.src.Duration {
		pos = s.src.Duration
	}
	return pos
}

func (s *Simulated) startTimerLocked() {
	s.stopTimerLocked()
	if s.src.Duration <= 0 {
		// Unknown length: never ends on its own.
		return
	}
	gen := s.generation
	s.timerCancel = startWallClockTimer(s.src.Duration-s.offset, func() {
		s.ended(gen)
	})
}

func (s *Simulated) stopTimerLocked() {
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

func (s *Simulated) ended(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.playing {
		s.mu.Unlock()
		return
	}
	s.offset = s.src.Duration
	s.playing = false
	s.timerCancel = nil
	onEnded := s.onEnded
	url := s.src.URL
	s.mu.Unlock()

	zlog.Debug().Msgf("media: simulated source ended: %s", url)
	if onEnded != nil {
		onEnded()
	}
}

func probeURL(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errors.Wrap(err, "build probe request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "probe %s", url)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("probe %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

// startWallClockTimer calls callback once duration has elapsed on the wall clock.
// Returns a cancel function.
func startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).After(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with the monotonic clock reading stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
