package rest

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/infra/api"
)

const defaultHistoryLimit = 20

func (s *Server) searchSongs(_ http.ResponseWriter, r *http.Request) (any, error) {
	q := r.URL.Query()
	songs, err := s.session.Search(r.Context(), api.SongQuery{
		SearchTerm: q.Get("q"),
		Genre:      q.Get("genre"),
		Artist:     q.Get("artist"),
	})
	if err != nil {
		return nil, err
	}
	return nonNil(songs), nil
}

func (s *Server) getSong(_ http.ResponseWriter, r *http.Request) (any, error) {
	return s.session.Song(r.Context(), r.PathValue("id"))
}

func (s *Server) getGenres(_ http.ResponseWriter, r *http.Request) (any, error) {
	genres, err := s.session.Genres(r.Context())
	if err != nil {
		return nil, err
	}
	return nonNil(genres), nil
}

func (s *Server) getArtists(_ http.ResponseWriter, r *http.Request) (any, error) {
	artists, err := s.session.Artists(r.Context())
	if err != nil {
		return nil, err
	}
	return nonNil(artists), nil
}

func (s *Server) getAlbums(_ http.ResponseWriter, r *http.Request) (any, error) {
	albums, err := s.session.Albums(r.Context())
	if err != nil {
		return nil, err
	}
	return nonNil(albums), nil
}

func (s *Server) getLyrics(_ http.ResponseWriter, r *http.Request) (any, error) {
	return s.session.Lyrics(r.Context(), r.PathValue("id"))
}

func (s *Server) getCurrentLyrics(_ http.ResponseWriter, _ *http.Request) (any, error) {
	synced := s.session.CurrentLyrics()
	if synced == nil {
		return nil, errors.Mark(errors.New("no synced lyrics for the current track"), api.ErrNotFound)
	}
	return synced, nil
}

func (s *Server) getPlaylists(_ http.ResponseWriter, r *http.Request) (any, error) {
	playlists, err := s.session.Playlists(r.Context())
	if err != nil {
		return nil, err
	}
	return nonNil(playlists), nil
}

func (s *Server) getPlaylistSongs(_ http.ResponseWriter, r *http.Request) (any, error) {
	songs, err := s.session.PlaylistTracks(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	return nonNil(songs), nil
}

func (s *Server) createPlaylist(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req PlaylistRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return s.session.CreatePlaylist(r.Context(), req.Name, req.Description)
}

func (s *Server) deletePlaylist(_ http.ResponseWriter, r *http.Request) (any, error) {
	return nil, s.session.DeletePlaylist(r.Context(), r.PathValue("id"))
}

func (s *Server) addToPlaylist(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req SongRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return nil, s.session.AddToPlaylist(r.Context(), r.PathValue("id"), req.SongID)
}

func (s *Server) removeFromPlaylist(_ http.ResponseWriter, r *http.Request) (any, error) {
	return nil, s.session.RemoveFromPlaylist(r.Context(), r.PathValue("id"), r.PathValue("songID"))
}

func (s *Server) playPlaylist(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req PlayPlaylistRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.session.PlayPlaylist(r.Context(), r.PathValue("id"), req.Start); err != nil {
		return nil, err
	}
	return s.playerInfo(), nil
}

func (s *Server) getFavorites(_ http.ResponseWriter, r *http.Request) (any, error) {
	songs, err := s.session.Favorites(r.Context())
	if err != nil {
		return nil, err
	}
	return nonNil(songs), nil
}

func (s *Server) toggleFavorite(_ http.ResponseWriter, r *http.Request) (any, error) {
	id := r.PathValue("id")
	on, err := s.session.ToggleFavorite(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &FavoriteResponse{SongID: id, Favorite: on}, nil
}

func (s *Server) playFavorites(_ http.ResponseWriter, r *http.Request) (any, error) {
	if err := s.session.PlayFavorites(r.Context()); err != nil {
		return nil, err
	}
	return s.playerInfo(), nil
}

func (s *Server) getHistory(_ http.ResponseWriter, r *http.Request) (any, error) {
	entries, err := s.session.History(r.Context())
	if err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}

func (s *Server) getLocalHistory(_ http.ResponseWriter, r *http.Request) (any, error) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.Mark(errors.Newf("invalid limit %q", v), ErrBadRequest)
		}
		limit = n
	}
	plays, err := s.session.RecentPlays(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]PlayEntry, 0, len(plays))
	for _, p := range plays {
		out = append(out, PlayEntry{SongID: p.SongID, UserID: p.UserID, PlayedAt: p.PlayedAt})
	}
	return out, nil
}

// nonNil keeps empty listings as [] in JSON.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
