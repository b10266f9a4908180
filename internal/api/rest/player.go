package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/app/queue"
)

func (s *Server) getStatus(_ http.ResponseWriter, _ *http.Request) (any, error) {
	return toStatusResponse(s.session.GetStatus()), nil
}

func (s *Server) getQueue(_ http.ResponseWriter, _ *http.Request) (any, error) {
	info := s.playerInfo()
	return &QueueResponse{Cursor: info.Cursor, Tracks: info.Queue}, nil
}

func (s *Server) getFilters(_ http.ResponseWriter, _ *http.Request) (any, error) {
	filters := s.session.Filters()
	out := make([]FilterInfo, 0, len(filters))
	for _, f := range filters {
		out = append(out, FilterInfo{Name: f.Name(), Description: f.Description(), Codes: f.ReturnCodes()})
	}
	return out, nil
}

func (s *Server) playerInfo() PlayerInfo {
	p := s.session.Player()
	return toPlayerInfo(p.Snapshot(), p.Progress())
}

// transport adapts a player command without a body. The response is the
// resulting player state.
func (s *Server) transport(fn func(ctx context.Context) error) handlerFunc {
	return func(_ http.ResponseWriter, r *http.Request) (any, error) {
		if err := fn(r.Context()); err != nil {
			return nil, err
		}
		return s.playerInfo(), nil
	}
}

func (s *Server) togglePlayPause(ctx context.Context) error { return s.session.Player().TogglePlayPause(ctx) }
func (s *Server) pause(ctx context.Context) error           { return s.session.Player().Pause(ctx) }
func (s *Server) resume(ctx context.Context) error          { return s.session.Player().Resume(ctx) }
func (s *Server) stop(ctx context.Context) error            { return s.session.Player().Stop(ctx) }
func (s *Server) next(ctx context.Context) error            { return s.session.Player().Next(ctx) }
func (s *Server) previous(ctx context.Context) error        { return s.session.Player().Previous(ctx) }
func (s *Server) mute(ctx context.Context) error            { return s.session.Player().ToggleMute(ctx) }

func (s *Server) play(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req SongRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.session.PlaySong(r.Context(), req.SongID); err != nil {
		return nil, err
	}
	return s.playerInfo(), nil
}

func (s *Server) seek(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req SeekRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	player := s.session.Player()
	var err error
	switch {
	case req.PositionMs != nil:
		err = player.Seek(r.Context(), time.Duration(*req.PositionMs)*time.Millisecond)
	case req.Percent != nil:
		err = player.SeekPercent(r.Context(), *req.Percent/100)
	case req.Steps != nil:
		err = player.SeekStep(r.Context(), *req.Steps)
	default:
		err = errors.Mark(errors.New("one of positionMs, percent or steps is required"), ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	return s.playerInfo(), nil
}

func (s *Server) volume(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req VolumeRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	player := s.session.Player()
	ctx := r.Context()
	var err error
	switch {
	case req.Volume != nil:
		err = player.SetVolume(ctx, *req.Volume)
	case req.Steps != nil:
		for i := 0; i < abs(*req.Steps) && err == nil; i++ {
			if *req.Steps > 0 {
				err = player.VolumeUp(ctx)
			} else {
				err = player.VolumeDown(ctx)
			}
		}
	default:
		err = errors.Mark(errors.New("volume or steps is required"), ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	return s.playerInfo(), nil
}

func (s *Server) shuffle(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req ShuffleRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if req.On != nil && *req.On == s.session.Player().Snapshot().Shuffled {
		return &ShuffleResponse{Shuffled: *req.On}, nil
	}
	on, err := s.session.ToggleShuffle(r.Context())
	if err != nil {
		return nil, err
	}
	return &ShuffleResponse{Shuffled: on}, nil
}

func (s *Server) repeat(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req RepeatRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if req.Mode == "" {
		mode, err := s.session.CycleRepeatMode(r.Context())
		if err != nil {
			return nil, err
		}
		return &RepeatResponse{Mode: mode.String()}, nil
	}
	mode, err := queue.ParseRepeatMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if err := s.session.Player().SetRepeatMode(r.Context(), mode); err != nil {
		return nil, err
	}
	return &RepeatResponse{Mode: mode.String()}, nil
}

func (s *Server) jump(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req JumpRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.session.Player().JumpTo(r.Context(), req.Index); err != nil {
		return nil, err
	}
	return s.playerInfo(), nil
}

func (s *Server) enqueue(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req SongRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.session.EnqueueSong(r.Context(), req.SongID); err != nil {
		return nil, err
	}
	return s.getQueue(nil, r)
}

func (s *Server) removeFromQueue(_ http.ResponseWriter, r *http.Request) (any, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "queue index %q", r.PathValue("index")), ErrBadRequest)
	}
	if _, err := s.session.Player().RemoveAt(r.Context(), index); err != nil {
		return nil, err
	}
	return s.getQueue(nil, r)
}

func (s *Server) clearQueue(_ http.ResponseWriter, r *http.Request) (any, error) {
	if err := s.session.ClearQueue(r.Context()); err != nil {
		return nil, err
	}
	return s.getQueue(nil, r)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
