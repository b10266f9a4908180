package rest

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/app/playback"
	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/app/session"
	"github.com/osa030/streambox/internal/app/session/state"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/api"
)

// ErrBadRequest marks request bodies that failed to decode or validate.
var ErrBadRequest = errors.New("bad request")

// statusError maps err to an HTTP status and a machine-readable code.
func statusError(err error) (int, string) {
	if code := session.RejectionCode(err); code != "" {
		return http.StatusConflict, code
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, queue.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case errors.Is(err, user.ErrInvalidRegistration):
		return http.StatusBadRequest, "invalid_registration"
	case errors.Is(err, state.ErrInvalidTheme), errors.Is(err, queue.ErrUnknownRepeatMode):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, session.ErrLoginRequired):
		return http.StatusUnauthorized, "login_required"
	case errors.Is(err, api.ErrAuthRejected), errors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized, "auth_rejected"
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, playback.ErrNoActiveTrack):
		return http.StatusConflict, "no_active_track"
	case errors.Is(err, session.ErrNothingToPlay):
		return http.StatusConflict, "nothing_to_play"
	case errors.Is(err, playback.ErrPlayback):
		return http.StatusUnprocessableEntity, "playback_failed"
	case errors.Is(err, playback.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case api.HTTPStatus(err) != 0:
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// errorText is the message shown to API callers. Backend messages pass through.
func errorText(err error) string {
	var he *api.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	if errors.Is(err, api.ErrAuthRejected) {
		return errors.UnwrapAll(err).Error()
	}
	return err.Error()
}
