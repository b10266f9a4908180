//go:build libmpv

package media

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	mpv "github.com/gen2brain/go-mpv"
	zlog "github.com/rs/zerolog/log"
)

const (
	mpvPauseProperty    = "pause"
	mpvPositionProperty = "time-pos"
	mpvDurationProperty = "duration"
	mpvVolumeProperty   = "volume"
)

// mpvElement plays through libmpv.
type mpvElement struct {
	mu       sync.Mutex
	client   *mpv.Mpv
	src      Source
	loaded   bool
	onEnded  func()
	onError  func(error)
	closeOne sync.Once
	loopWG   sync.WaitGroup
}

func newMPV() (Element, error) {
	client := mpv.New()
	if client == nil {
		return nil, errors.New("create libmpv instance")
	}

	for name, value := range map[string]string{
		"terminal":      "no",
		"video":         "no",
		"audio-display": "no",
		"keep-open":     "no",
	} {
		_ = client.SetOptionString(name, value)
	}

	if err := client.Initialize(); err != nil {
		client.TerminateDestroy()
		return nil, errors.Wrap(err, "initialize libmpv")
	}

	e := &mpvElement{client: client}
	_ = client.RequestEvent(mpv.EventEnd, true)

	e.loopWG.Add(1)
	go e.eventLoop()

	return e, nil
}

func (e *mpvElement) Load(src Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.src = src
	e.loaded = false
	if src.URL == "" {
		return ErrNoSource
	}
	if err := e.client.SetPropertyString(mpvPauseProperty, "yes"); err != nil {
		return errors.Wrap(err, "set pause before load")
	}
	if err := e.client.Command([]string{"loadfile", src.URL, "replace"}); err != nil {
		return errors.Wrapf(err, "load %q", src.URL)
	}
	e.loaded = true
	return nil
}

func (e *mpvElement) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "play")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return ErrNoSource
	}
	if err := e.client.SetPropertyString(mpvPauseProperty, "no"); err != nil {
		return errors.Wrap(err, "resume playback")
	}
	return nil
}

func (e *mpvElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetPropertyString(mpvPauseProperty, "yes"); err != nil {
		return errors.Wrap(err, "pause playback")
	}
	return nil
}

func (e *mpvElement) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetProperty(mpvPositionProperty, mpv.FormatDouble, pos.Seconds()); err != nil {
		return errors.Wrap(err, "seek playback")
	}
	return nil
}

func (e *mpvElement) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, _ := e.readSecondsLocked(mpvPositionProperty)
	return d
}

func (e *mpvElement) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok := e.readSecondsLocked(mpvDurationProperty); ok {
		return d
	}
	return e.src.Duration
}

func (e *mpvElement) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetProperty(mpvVolumeProperty, mpv.FormatDouble, ClampVolume(v)*100); err != nil {
		return errors.Wrap(err, "set volume")
	}
	return nil
}

func (e *mpvElement) SetOnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

func (e *mpvElement) SetOnError(fn func(error)) {
	e.mu.Lock()
	e.onError = fn
	e.mu.Unlock()
}

func (e *mpvElement) Close() error {
	e.closeOne.Do(func() {
		e.client.Wakeup()
		e.client.TerminateDestroy()
		e.loopWG.Wait()
	})
	return nil
}

func (e *mpvElement) eventLoop() {
	defer e.loopWG.Done()

	for {
		event := e.client.WaitEvent(0.5)
		if event == nil {
			continue
		}

		switch event.EventID {
		case mpv.EventShutdown:
			return
		case mpv.EventEnd:
			end := event.EndFile()
			e.mu.Lock()
			onEnded, onError := e.onEnded, e.onError
			e.mu.Unlock()

			switch end.Reason {
			case mpv.EndFileEOF:
				if onEnded != nil {
					onEnded()
				}
			case mpv.EndFileError:
				err := errors.Newf("mpv: playback ended with error (reason %v)", end.Reason)
				zlog.Warn().Err(err).Msg("media: mpv playback failed")
				if onError != nil {
					onError(err)
				}
			}
		}
	}
}

func (e *mpvElement) readSecondsLocked(property string) (time.Duration, bool) {
	value, err := e.client.GetProperty(property, mpv.FormatDouble)
	if err != nil {
		return 0, false
	}
	seconds, ok := value.(float64)
	if !ok || math.IsNaN(seconds) || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
