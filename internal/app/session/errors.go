package session

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/api"
)

var (
	// ErrLoginRequired is returned by operations that need a signed-in user.
	ErrLoginRequired = errors.New("login required")
	// ErrNothingToPlay is returned when a list to play has no playable track.
	ErrNothingToPlay = errors.New("nothing to play")
)

// RejectedError is returned when an enqueue filter rejects a song.
type RejectedError struct {
	SongID string
	Result filter.Result
}

func (e *RejectedError) Error() string {
	return "song " + e.SongID + " rejected by " + e.Result.Filter + ": " + e.Result.Code
}

// RejectionCode returns the filter code carried by err, or "".
func RejectionCode(err error) string {
	var rerr *RejectedError
	if errors.As(err, &rerr) {
		return rerr.Result.Code
	}
	return ""
}

// report turns a failed operation into a message notification and returns err.
// Cancellations are not reported.
func (m *Manager) report(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	level, code := classify(err)
	text := m.config.GetMessage(code)
	if code == "default_error" {
		var herr *api.HTTPError
		switch {
		case errors.As(err, &herr) && herr.Message != "":
			text = herr.Message
		case errors.Is(err, api.ErrAuthRejected):
			text = errors.UnwrapAll(err).Error()
		}
	}
	m.notifyText(level, code, text)
	return err
}

func classify(err error) (notification.Level, string) {
	if code := RejectionCode(err); code != "" {
		return notification.LevelWarning, code
	}
	switch {
	case errors.Is(err, ErrLoginRequired):
		return notification.LevelWarning, "login_required"
	case errors.Is(err, user.ErrInvalidRegistration):
		return notification.LevelWarning, "invalid_registration"
	case errors.Is(err, playback.ErrNoActiveTrack), errors.Is(err, ErrNothingToPlay):
		return notification.LevelWarning, "no_active_track"
	case errors.Is(err, playback.ErrPlayback):
		return notification.LevelError, "playback_failed"
	case errors.Is(err, queue.ErrOutOfRange):
		return notification.LevelWarning, "default_error"
	case errors.Is(err, context.DeadlineExceeded):
		return notification.LevelError, "network"
	case api.HTTPStatus(err) != 0, errors.Is(err, api.ErrAuthRejected):
		return notification.LevelError, "default_error"
	default:
		return notification.LevelError, "network"
	}
}
