//go:build beep

package media

import (
	"context"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

const (
	speakerSampleRate = beep.SampleRate(44100)
	speakerBuffer     = 100 * time.Millisecond
	resampleQuality   = 4
)

var speakerOnce sync.Once

// beepElement decodes MP3 sources with beep and plays them on the default speaker.
type beepElement struct {
	mu sync.Mutex

	client *http.Client
	src    Source
	gen    uint64

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64

	onEnded func()
	onError func(error)
}

func newBeep(client *http.Client) (Element, error) {
	var initErr error
	speakerOnce.Do(func() {
		initErr = speaker.Init(speakerSampleRate, speakerSampleRate.N(speakerBuffer))
	})
	if initErr != nil {
		return nil, errors.Wrap(initErr, "initialize speaker")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &beepElement{client: client, level: 1}, nil
}

func (e *beepElement) Load(src Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeStreamLocked()
	e.gen++
	e.src = src
	if src.URL == "" {
		return ErrNoSource
	}
	return nil
}

func (e *beepElement) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.src.URL == "" {
		e.mu.Unlock()
		return ErrNoSource
	}
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		e.mu.Unlock()
		return nil
	}
	gen, url := e.gen, e.src.URL
	e.mu.Unlock()

	rc, err := e.open(ctx, url)
	if err != nil {
		return err
	}
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		rc.Close()
		return errors.Wrapf(err, "decode %s", url)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		streamer.Close()
		return errors.New("source replaced before playback started")
	}

	var s beep.Streamer = streamer
	if format.SampleRate != speakerSampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, speakerSampleRate, streamer)
	}
	e.streamer = streamer
	e.format = format
	e.volume = &effects.Volume{Streamer: s, Base: 2}
	e.applyVolumeLocked()
	e.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(e.volume, beep.Callback(func() {
			// Runs on the speaker goroutine with the speaker lock held.
			go e.ended(gen)
		})),
	}
	speaker.Play(e.ctrl)
	zlog.Debug().Msgf("media: beep playing %s (%d Hz)", url, format.SampleRate)
	return nil
}

func (e *beepElement) open(ctx context.Context, url string) (io.ReadCloser, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		f, err := os.Open(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", url)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Newf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

func (e *beepElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = true
		speaker.Unlock()
	}
	return nil
}

func (e *beepElement) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		if pos == 0 {
			return nil
		}
		return ErrNoSource
	}
	n := e.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if length := e.streamer.Len(); n > length {
		n = length
	}

	speaker.Lock()
	defer speaker.Unlock()
	return errors.Wrap(e.streamer.Seek(n), "seek")
}

func (e *beepElement) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return e.format.SampleRate.D(e.streamer.Position())
}

func (e *beepElement) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return e.src.Duration
	}
	return e.format.SampleRate.D(e.streamer.Len())
}

func (e *beepElement) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = ClampVolume(v)
	if e.volume != nil {
		speaker.Lock()
		e.applyVolumeLocked()
		speaker.Unlock()
	}
	return nil
}

// applyVolumeLocked maps the linear level onto effects.Volume's base-2 exponent.
func (e *beepElement) applyVolumeLocked() {
	e.volume.Silent = e.level == 0
	if e.level > 0 {
		e.volume.Volume = math.Log2(e.level)
	}
}

func (e *beepElement) SetOnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

func (e *beepElement) SetOnError(fn func(error)) {
	e.mu.Lock()
	e.onError = fn
	e.mu.Unlock()
}

func (e *beepElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeStreamLocked()
	return nil
}

func (e *beepElement) ended(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	onEnded, onError := e.onEnded, e.onError
	var streamErr error
	if e.streamer != nil {
		streamErr = e.streamer.Err()
	}
	e.mu.Unlock()

	if streamErr != nil {
		if onError != nil {
			onError(errors.Wrap(streamErr, "decode stream"))
		}
		return
	}
	if onEnded != nil {
		onEnded()
	}
}

func (e *beepElement) closeStreamLocked() {
	if e.ctrl == nil && e.streamer == nil {
		return
	}
	speaker.Clear()
	if e.streamer != nil {
		e.streamer.Close()
	}
	e.ctrl = nil
	e.volume = nil
	e.streamer = nil
}
