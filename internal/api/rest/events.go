package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/notification"
)

// eventBuffer is the per-subscriber notification buffer.
const eventBuffer = 64

// streamEvents sends the current state followed by every notification as
// Server-Sent Events until the client goes away or the session closes.
// The optional types query parameter is a comma-separated list of
// notification types to receive after the initial state.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, &ErrorResponse{Error: "streaming unsupported", Code: "internal"})
		return
	}

	var types []notification.Type
	if raw := r.URL.Query().Get("types"); raw != "" {
		var err error
		if types, err = notification.ParseTypes(strings.Split(raw, ",")); err != nil {
			writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: err.Error(), Code: "bad_request"})
			return
		}
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream := notification.NewChanStream(eventBuffer)
	notifications := s.session.Notifications()
	id := notifications.Subscribe(stream, types...)
	defer func() {
		notifications.Unsubscribe(id)
		stream.Close()
	}()
	zlog.Info().Msgf("rest: event subscriber %s connected from %s", id, r.RemoteAddr)

	if err := writeEvent(w, s.session.StateNotification()); err != nil {
		return
	}
	flusher.Flush()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case n := <-stream.C():
			if err := writeEvent(w, n); err != nil {
				zlog.Debug().Msgf("rest: event subscriber %s: %v", id, err)
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			zlog.Info().Msgf("rest: event subscriber %s disconnected", id)
			return
		case <-s.session.Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, n *notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.SequenceNo, n.Type, data)
	return err
}
