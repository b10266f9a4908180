// Package rest provides the HTTP control surface of the player.
package rest

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/session"
	"github.com/osa030/streambox/internal/infra/config"
)

const (
	// ControlTokenHeader is the header carrying the control token on mutating requests.
	ControlTokenHeader = "X-Control-Token"

	// Prefix is the path prefix of every route.
	Prefix = "/api/v1"

	maxRequestBody = 1 << 20
)

// handlerFunc returns the response body or an error. A nil body yields 204.
type handlerFunc func(w http.ResponseWriter, r *http.Request) (any, error)

// Server serves the control API over a session.
type Server struct {
	session      *session.Manager
	config       *config.Config
	validate     *validator.Validate
	pingInterval time.Duration
}

// NewServer creates a new Server.
func NewServer(sess *session.Manager, cfg *config.Config) *Server {
	return &Server{
		session:      sess,
		config:       cfg,
		validate:     validator.New(),
		pingInterval: 15 * time.Second,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	read := func(pattern string, h handlerFunc) {
		mux.Handle(pattern, s.wrap(h))
	}
	write := func(pattern string, h handlerFunc) {
		mux.Handle(pattern, s.requireToken(s.wrap(h)))
	}

	read("GET "+Prefix+"/status", s.getStatus)
	read("GET "+Prefix+"/queue", s.getQueue)
	read("GET "+Prefix+"/filters", s.getFilters)
	mux.HandleFunc("GET "+Prefix+"/events", s.streamEvents)

	write("POST "+Prefix+"/player/play", s.play)
	write("POST "+Prefix+"/player/toggle", s.transport(s.togglePlayPause))
	write("POST "+Prefix+"/player/pause", s.transport(s.pause))
	write("POST "+Prefix+"/player/resume", s.transport(s.resume))
	write("POST "+Prefix+"/player/stop", s.transport(s.stop))
	write("POST "+Prefix+"/player/next", s.transport(s.next))
	write("POST "+Prefix+"/player/previous", s.transport(s.previous))
	write("POST "+Prefix+"/player/seek", s.seek)
	write("POST "+Prefix+"/player/volume", s.volume)
	write("POST "+Prefix+"/player/mute", s.transport(s.mute))
	write("POST "+Prefix+"/player/shuffle", s.shuffle)
	write("POST "+Prefix+"/player/repeat", s.repeat)
	write("POST "+Prefix+"/player/jump", s.jump)

	write("POST "+Prefix+"/queue", s.enqueue)
	write("DELETE "+Prefix+"/queue/{index}", s.removeFromQueue)
	write("DELETE "+Prefix+"/queue", s.clearQueue)

	read("GET "+Prefix+"/songs", s.searchSongs)
	read("GET "+Prefix+"/songs/{id}", s.getSong)
	read("GET "+Prefix+"/genres", s.getGenres)
	read("GET "+Prefix+"/artists", s.getArtists)
	read("GET "+Prefix+"/albums", s.getAlbums)
	read("GET "+Prefix+"/lyrics/current", s.getCurrentLyrics)
	read("GET "+Prefix+"/lyrics/{id}", s.getLyrics)

	read("GET "+Prefix+"/playlists", s.getPlaylists)
	read("GET "+Prefix+"/playlists/{id}/songs", s.getPlaylistSongs)
	write("POST "+Prefix+"/playlists", s.createPlaylist)
	write("DELETE "+Prefix+"/playlists/{id}", s.deletePlaylist)
	write("POST "+Prefix+"/playlists/{id}/songs", s.addToPlaylist)
	write("DELETE "+Prefix+"/playlists/{id}/songs/{songID}", s.removeFromPlaylist)
	write("POST "+Prefix+"/playlists/{id}/play", s.playPlaylist)

	read("GET "+Prefix+"/favorites", s.getFavorites)
	write("POST "+Prefix+"/favorites/{id}/toggle", s.toggleFavorite)
	write("POST "+Prefix+"/favorites/play", s.playFavorites)

	read("GET "+Prefix+"/history", s.getHistory)
	read("GET "+Prefix+"/history/local", s.getLocalHistory)

	write("POST "+Prefix+"/auth/login", s.login)
	write("POST "+Prefix+"/auth/register", s.register)
	write("POST "+Prefix+"/auth/forgot", s.forgotPassword)
	write("POST "+Prefix+"/auth/logout", s.logout)
	write("POST "+Prefix+"/theme/toggle", s.toggleTheme)

	return logRequests(mux)
}

// requireToken rejects requests without the configured control token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	want := []byte(s.config.Server.ControlToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(ControlTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			writeJSON(w, http.StatusUnauthorized, &ErrorResponse{Error: "invalid control token", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) wrap(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := h(w, r)
		if err != nil {
			status, code := statusError(err)
			if status >= http.StatusInternalServerError {
				zlog.Error().Msgf("rest: %s %s: %+v", r.Method, r.URL.Path, err)
			} else {
				zlog.Debug().Msgf("rest: %s %s: %v", r.Method, r.URL.Path, err)
			}
			writeJSON(w, status, &ErrorResponse{Error: errorText(err), Code: code})
			return
		}
		if body == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, body)
	})
}

// decode reads a JSON body into dst and validates it. An empty body leaves dst
// at its zero value.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.Mark(errors.Wrap(err, "decode request"), ErrBadRequest)
	}
	if err := s.validate.Struct(dst); err != nil {
		return errors.Mark(errors.Wrap(err, "validate request"), ErrBadRequest)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Debug().Msgf("rest: write response: %v", err)
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zlog.Debug().Msgf("rest: %s %s %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
