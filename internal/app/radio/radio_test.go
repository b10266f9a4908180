package radio

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/config"
	"github.com/osa030/streambox/internal/infra/lastfm"
	"github.com/osa030/streambox/internal/infra/spotify"
)

func song(id, title, artistID, artist, genreID string) *track.Track {
	return &track.Track{
		ID:       id,
		Title:    title,
		Artist:   track.ArtistRef{ID: artistID, Name: artist},
		GenreID:  genreID,
		AudioURL: "http://catalog/" + id + ".mp3",
	}
}

type fakeCatalog struct {
	mu      sync.Mutex
	songs   []*track.Track
	queries []api.SongQuery
	err     error
}

func (f *fakeCatalog) Songs(ctx context.Context, q api.SongQuery) ([]*track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []*track.Track
	for _, s := range f.songs {
		switch {
		case q.Genre != "" && s.GenreID != q.Genre:
		case q.Artist != "" && s.Artist.ID != q.Artist:
		case q.SearchTerm != "" && s.Title != q.SearchTerm:
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Artists(ctx context.Context) ([]api.Artist, error) {
	seen := map[string]bool{}
	var out []api.Artist
	for _, s := range f.songs {
		if !seen[s.Artist.ID] {
			seen[s.Artist.ID] = true
			out = append(out, api.Artist{ID: s.Artist.ID, Name: s.Artist.Name})
		}
	}
	return out, nil
}

func (f *fakeCatalog) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.SearchTerm != "" {
			n++
		}
	}
	return n
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{songs: []*track.Track{
		song("1", "Karma Police", "a1", "Radiohead", "g1"),
		song("2", "No Surprises", "a1", "Radiohead", "g1"),
		song("3", "Teardrop", "a2", "Massive Attack", "g2"),
		song("4", "Angel", "a2", "Massive Attack", "g2"),
		song("5", "Glory Box", "a3", "Portishead", "g2"),
	}}
}

type fakeLastFm struct {
	similar        []lastfm.SimilarTrack
	tags           []lastfm.Tag
	topTracks      []lastfm.TopTrack
	similarArtists []string
	chart          []lastfm.TopTrack
	err            error
}

func (f *fakeLastFm) GetSimilarTracks(ctx context.Context, name, artist string, limit int) ([]lastfm.SimilarTrack, error) {
	return f.similar, f.err
}

func (f *fakeLastFm) GetTopTags(ctx context.Context, name, artist string, limit int) ([]lastfm.Tag, error) {
	return f.tags, f.err
}

func (f *fakeLastFm) GetTopTracks(ctx context.Context, tag string, limit int) ([]lastfm.TopTrack, error) {
	return f.topTracks, f.err
}

func (f *fakeLastFm) GetSimilarArtists(ctx context.Context, artist string, limit int) ([]string, error) {
	return f.similarArtists, f.err
}

func (f *fakeLastFm) GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error) {
	return append([]lastfm.TopTrack(nil), f.chart...), f.err
}

type fakeSpotify struct {
	refs  []spotify.TrackRef
	calls int
	err   error
}

func (f *fakeSpotify) PlaylistTracksRandom(ctx context.Context, url string, count int) ([]spotify.TrackRef, error) {
	f.calls++
	return f.refs, f.err
}

func (f *fakeSpotify) CheckPlaylistExists(ctx context.Context, url string) error {
	return f.err
}

func ids(tracks []*track.Track) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

func TestCatalogProvider_SameGenre(t *testing.T) {
	catalog := testCatalog()
	p, err := NewCatalogProvider(catalog, nil)
	require.NoError(t, err)

	got, err := p.Candidates(context.Background(), 5, []*track.Track{song("3", "Teardrop", "a2", "Massive Attack", "g2")},
		map[string]bool{"3": true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"4", "5"}, ids(got))
	assert.Equal(t, []api.SongQuery{{Genre: "g2"}}, catalog.queries)
}

func TestCatalogProvider_FallsBackToWholeCatalog(t *testing.T) {
	catalog := testCatalog()
	p, err := NewCatalogProvider(catalog, map[string]any{"same_genre": false})
	require.NoError(t, err)

	got, err := p.Candidates(context.Background(), 2, nil, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []api.SongQuery{{}}, catalog.queries)
}

func TestCatalogProvider_SameArtist(t *testing.T) {
	catalog := testCatalog()
	p, err := NewCatalogProvider(catalog, map[string]any{"same_genre": false, "same_artist": true})
	require.NoError(t, err)

	got, err := p.Candidates(context.Background(), 5, []*track.Track{song("1", "Karma Police", "a1", "Radiohead", "g1")},
		map[string]bool{"1": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestLastFmProvider_Config(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{"defaults", map[string]any{"api_key": "k"}, false},
		{"missing key", map[string]any{"tag_count": 3}, true},
		{"empty", nil, true},
		{"weights off", map[string]any{"api_key": "k", "tag_weight": 0.5, "similar_weight": 0.5, "artist_weight": 0.5}, true},
		{"custom weights", map[string]any{"api_key": "k", "tag_weight": 0.2, "similar_weight": 0.8, "artist_weight": 0.0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLastFmProvider(&fakeLastFm{}, testCatalog(), tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLastFmProvider_ChartFallback(t *testing.T) {
	lfm := &fakeLastFm{chart: []lastfm.TopTrack{
		{Name: "Glory Box", Artist: "Portishead"},
		{Name: "Unknown Song", Artist: "Nobody"},
	}}
	p, err := NewLastFmProvider(lfm, testCatalog(), map[string]any{"api_key": "k"})
	require.NoError(t, err)

	got, err := p.Candidates(context.Background(), 3, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, ids(got))
}

func TestLastFmProvider_HybridCandidates(t *testing.T) {
	catalog := testCatalog()
	lfm := &fakeLastFm{
		similar:        []lastfm.SimilarTrack{{Name: "Teardrop", Artist: "Massive Attack", Match: 0.9}},
		tags:           []lastfm.Tag{{Name: "trip-hop", Count: 100}},
		topTracks:      []lastfm.TopTrack{{Name: "Teardrop", Artist: "massive attack"}, {Name: "Glory Box", Artist: "Portishead"}},
		similarArtists: []string{"Portishead"},
	}
	p, err := NewLastFmProvider(lfm, catalog, map[string]any{"api_key": "k"})
	require.NoError(t, err)

	seed := song("1", "Karma Police", "a1", "Radiohead", "g1")
	got, err := p.Candidates(context.Background(), 5, []*track.Track{seed}, map[string]bool{"1": true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3", "5"}, ids(got))

	// Teardrop matches tag and similar strategies, Glory Box tag and artist
	scored := p.scoreAndMerge(
		[]*track.Track{catalog.songs[2], catalog.songs[4]},
		[]*track.Track{catalog.songs[2]},
		[]*track.Track{catalog.songs[4]},
	)
	require.Len(t, scored, 2)
	assert.InDelta(t, 0.8, scored[0].Score, 1e-9)
	assert.InDelta(t, 0.5, scored[1].Score, 1e-9)
}

func TestResolver_CachesMisses(t *testing.T) {
	catalog := testCatalog()
	r := newResolver(catalog)

	assert.Nil(t, r.resolve(context.Background(), "Missing", "Nobody"))
	assert.Nil(t, r.resolve(context.Background(), "missing", "nobody"))
	assert.Equal(t, 1, catalog.searchCount())

	found := r.resolve(context.Background(), "Angel", "Massive Attack")
	require.NotNil(t, found)
	assert.Equal(t, "4", found.ID)
}

func TestPlaylistProvider_UsesCache(t *testing.T) {
	sp := &fakeSpotify{refs: []spotify.TrackRef{
		{ID: "sp1", Name: "Teardrop", Artist: "Massive Attack"},
		{ID: "sp2", Name: "Angel", Artist: "Massive Attack"},
		{ID: "sp3", Name: "Not In Catalog", Artist: "Nobody"},
	}}
	p, err := NewPlaylistProvider(sp, testCatalog(), 5, map[string]any{"playlist_url": "https://open.spotify.com/playlist/abc"})
	require.NoError(t, err)

	first, err := p.Candidates(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(first))

	second, err := p.Candidates(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(second))
	assert.Equal(t, 1, sp.calls, "second call is served from the cache")

	assert.NoError(t, p.Validate(context.Background()))
}

func TestPlaylistProvider_RequiresURL(t *testing.T) {
	_, err := NewPlaylistProvider(&fakeSpotify{}, testCatalog(), 5, map[string]any{})
	assert.Error(t, err)
}

type staticProvider struct {
	name   string
	tracks []*track.Track
	err    error
}

func (s *staticProvider) Candidates(ctx context.Context, count int, seeds []*track.Track, exclude map[string]bool) ([]*track.Track, error) {
	var out []*track.Track
	for _, t := range s.tracks {
		if !exclude[t.ID] {
			out = append(out, t)
		}
	}
	return out, s.err
}

func (s *staticProvider) Name() string { return s.name }

func TestProviderChain_Candidates(t *testing.T) {
	a := song("1", "A", "x", "X", "")
	b := song("2", "B", "y", "Y", "")

	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &staticProvider{name: "broken", err: errors.New("boom")}, DisplayName: "Broken"},
		{Provider: &staticProvider{name: "first", tracks: []*track.Track{a}}, DisplayName: "First"},
		{Provider: &staticProvider{name: "second", tracks: []*track.Track{a, b}}, DisplayName: "Second"},
	})

	got, err := chain.Candidates(context.Background(), 5, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0].DisplayName)
	assert.Equal(t, "2", got[1].Track.ID)
	assert.Equal(t, "Second", got[1].DisplayName)

	empty := NewProviderChain([]ProviderWithMetadata{
		{Provider: &staticProvider{name: "broken", err: errors.New("boom")}, DisplayName: "Broken"},
	})
	_, err = empty.Candidates(context.Background(), 5, nil, nil)
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

type rejectIDs map[string]bool

func (r rejectIDs) Execute(ctx context.Context, req filter.TrackRequest, t *track.Track, u *user.Session) filter.Result {
	if req.Source != track.SourceRadio {
		return filter.Reject("wrong_source")
	}
	if r[t.ID] {
		return filter.Reject("nope")
	}
	return filter.Accept()
}

func TestStation_Next(t *testing.T) {
	tracks := []*track.Track{
		song("1", "A", "x", "Recent Artist", ""),
		song("2", "B", "y", "Rejected", ""),
		song("3", "C", "z", "Fine", ""),
	}
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &staticProvider{name: "static", tracks: tracks}, DisplayName: "Static"},
	})
	station := NewStation(chain, rejectIDs{"2": true}, 5, 2)
	station.NoteArtist("Recent Artist")

	got, err := station.Next(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", got.Track.ID)
	assert.Equal(t, "Static", got.DisplayName)

	// Queued tracks are excluded, leaving only the recent and rejected ones
	_, err = station.Next(context.Background(), nil, []track.QueuedTrack{track.NewQueued(tracks[2], track.SourceRadio)}, nil)
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestStation_ForgetsArtistsWhenNothingElseFits(t *testing.T) {
	only := song("1", "A", "x", "Same", "")
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &staticProvider{name: "static", tracks: []*track.Track{only}}, DisplayName: "Static"},
	})
	station := NewStation(chain, nil, 5, 3)
	station.NoteArtist("same")

	got, err := station.Next(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Track.ID)
	assert.Empty(t, station.RecentArtists())
}

func TestStation_NoSuitableCandidates(t *testing.T) {
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &staticProvider{name: "static", tracks: []*track.Track{song("1", "A", "x", "X", "")}}, DisplayName: "Static"},
	})
	station := NewStation(chain, rejectIDs{"1": true}, 5, 0)

	_, err := station.Next(context.Background(), nil, nil, nil)
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestStation_NoteArtist(t *testing.T) {
	station := NewStation(NewProviderChain(nil), nil, 5, 2)
	station.NoteArtist("A")
	station.NoteArtist("B")
	station.NoteArtist("a")
	station.NoteArtist("C")
	station.NoteArtist("")

	assert.Equal(t, []string{"C", "a"}, station.RecentArtists())
}

func TestNewProviderChainFromConfig(t *testing.T) {
	cfg := &config.Config{Radio: config.RadioConfig{
		Enabled:        true,
		CandidateCount: 5,
		Providers: []config.ProviderConfig{
			{Type: "catalog", DisplayName: "Catalog"},
			{Type: "lastfm", DisplayName: "Last.fm", Settings: map[string]any{"api_key": "k"}},
			{Type: "spotify_playlist", DisplayName: "Spotify", Settings: map[string]any{"playlist_url": "abc"}},
		},
	}}

	chain, err := NewProviderChainFromConfig(context.Background(), cfg, Clients{
		Catalog: testCatalog(),
		LastFm:  &fakeLastFm{},
		Spotify: &fakeSpotify{},
	})
	require.NoError(t, err)

	var names []string
	for _, p := range chain.Providers() {
		names = append(names, p.Provider.Name())
	}
	assert.Equal(t, []string{"catalog", "lastfm", "spotify_playlist"}, names)
	assert.NoError(t, ValidateProviders(context.Background(), chain))

	cfg.Radio.Providers = []config.ProviderConfig{{Type: "youtube", DisplayName: "YT"}}
	_, err = NewProviderChainFromConfig(context.Background(), cfg, Clients{Catalog: testCatalog()})
	assert.Error(t, err)

	cfg.Radio.Providers = nil
	_, err = NewProviderChainFromConfig(context.Background(), cfg, Clients{Catalog: testCatalog()})
	assert.Error(t, err)
}
