package radio

import (
	"context"
	"strings"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/infra/api"
)

// resolver matches external (name, artist) recommendations to catalog songs.
// Misses are cached too so unknown songs are searched only once.
type resolver struct {
	catalog Catalog

	mu      sync.RWMutex
	cache   map[string]*track.Track
	artists map[string]string // lower-cased name -> artist ID, loaded once
}

func newResolver(catalog Catalog) *resolver {
	return &resolver{
		catalog: catalog,
		cache:   make(map[string]*track.Track),
	}
}

func (r *resolver) resolve(ctx context.Context, name, artist string) *track.Track {
	key := strings.ToLower(name) + "\x00" + strings.ToLower(artist)

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	songs, err := r.catalog.Songs(ctx, api.SongQuery{SearchTerm: name})
	if err != nil {
		// transient, do not cache
		zlog.Debug().Msgf("radio: catalog search failed: name=%s error=%v", name, err)
		return nil
	}

	found := bestMatch(songs, name, artist)

	r.mu.Lock()
	r.cache[key] = found
	r.mu.Unlock()
	return found
}

// songsByArtist lists catalog songs by the named artist, or nothing if the catalog does not know them.
func (r *resolver) songsByArtist(ctx context.Context, name string) []*track.Track {
	id, ok := r.artistID(ctx, name)
	if !ok {
		return nil
	}
	songs, err := r.catalog.Songs(ctx, api.SongQuery{Artist: id})
	if err != nil {
		zlog.Debug().Msgf("radio: catalog artist listing failed: artist=%s error=%v", name, err)
		return nil
	}
	return songs
}

func (r *resolver) artistID(ctx context.Context, name string) (string, bool) {
	r.mu.RLock()
	loaded := r.artists != nil
	id, ok := r.artists[strings.ToLower(name)]
	r.mu.RUnlock()
	if loaded {
		return id, ok
	}

	artists, err := r.catalog.Artists(ctx)
	if err != nil {
		zlog.Debug().Msgf("radio: failed to list artists: %v", err)
		return "", false
	}
	index := make(map[string]string, len(artists))
	for _, a := range artists {
		index[strings.ToLower(a.Name)] = a.ID
	}

	r.mu.Lock()
	r.artists = index
	r.mu.Unlock()

	id, ok = index[strings.ToLower(name)]
	return id, ok
}

// bestMatch prefers an exact title and artist match, then a title match by the same artist.
func bestMatch(songs []*track.Track, name, artist string) *track.Track {
	var byArtist *track.Track
	for _, s := range songs {
		if !strings.EqualFold(s.ArtistName(), artist) {
			continue
		}
		if strings.EqualFold(s.Title, name) {
			return s
		}
		if byArtist == nil && strings.Contains(strings.ToLower(s.Title), strings.ToLower(name)) {
			byArtist = s
		}
	}
	return byArtist
}
