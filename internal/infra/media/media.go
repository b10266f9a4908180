// Package media provides audio output elements.
//
// An Element plays one source at a time. Callers drive it with Load, Play and
// Pause and are told about the end of the source (or a failure) through the
// callbacks registered with SetOnEnded and SetOnError.
package media

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Driver names.
const (
	DriverSimulated = "simulated"
	DriverMPV       = "mpv"
	DriverBeep      = "beep"
)

var (
	// ErrNoSource is returned when playing without a loaded source.
	ErrNoSource = errors.New("no media source loaded")
	// ErrUnknownDriver is returned by New for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown media driver")
	// ErrDriverDisabled is returned when the driver was not compiled in.
	ErrDriverDisabled = errors.New("media driver not enabled in this build")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("media element closed")
)

// Source describes what to load.
type Source struct {
	URL string
	// Duration is the expected length. Drivers that can read the real length
	// from the stream use it only until the stream reports its own.
	Duration time.Duration
}

// Element is an audio output.
type Element interface {
	// Load replaces the current source. The element is paused at position 0 afterwards.
	Load(src Source) error
	// Play starts or resumes playback. It may block until audio actually starts,
	// and returns an error if the source cannot be played or ctx is done first.
	Play(ctx context.Context) error
	Pause() error
	Seek(pos time.Duration) error
	CurrentTime() time.Duration
	Duration() time.Duration
	// SetVolume sets the output volume in [0, 1].
	SetVolume(v float64) error
	// SetOnEnded registers the callback invoked when the loaded source reaches its end.
	// It is never invoked for a source that has since been replaced.
	SetOnEnded(fn func())
	// SetOnError registers the callback for asynchronous playback failures.
	SetOnError(fn func(error))
	Close() error
}

// Config selects and configures an element.
type Config struct {
	Driver string
	// Probe makes the simulated element check the source URL with a HEAD request before playing.
	Probe      bool
	HTTPClient *http.Client
}

// New creates an element for cfg.Driver.
func New(cfg Config) (Element, error) {
	switch cfg.Driver {
	case DriverSimulated, "":
		var opts []SimulatedOption
		if cfg.Probe {
			opts = append(opts, WithProbe(cfg.HTTPClient))
		}
		return NewSimulated(opts...), nil
	case DriverMPV:
		return newMPV()
	case DriverBeep:
		return newBeep(cfg.HTTPClient)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", cfg.Driver)
	}
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
