package radio

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/streambox/internal/domain/track"
)

type LastFmProviderConfig struct {
	APIKey         string  `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SeedTrackCount int     `yaml:"seed_track_count" mapstructure:"seed_track_count" default:"3" validate:"gte=1"`
	TagCount       int     `yaml:"tag_count" mapstructure:"tag_count" default:"5" validate:"gte=1"`
	TagWeight      float64 `yaml:"tag_weight" mapstructure:"tag_weight" default:"0.3" validate:"gte=0,lte=1.0"`
	SimilarWeight  float64 `yaml:"similar_weight" mapstructure:"similar_weight" default:"0.5" validate:"gte=0,lte=1.0"`
	ArtistWeight   float64 `yaml:"artist_weight" mapstructure:"artist_weight" default:"0.2" validate:"gte=0,lte=1.0"`
}

// LastFmProvider provides radio tracks using Last.fm recommendations with hybrid scoring.
// Combines tag-based, similar-track and similar-artist strategies with configurable weights.
type LastFmProvider struct {
	lastfm   LastFmClient
	resolver *resolver

	config *LastFmProviderConfig
}

// ScoredTrack represents a track with its hybrid score.
type ScoredTrack struct {
	Track *track.Track
	Score float64
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(lfm LastFmClient, catalog Catalog, settings map[string]any) (*LastFmProvider, error) {
	if lfm == nil {
		return nil, errors.New("last.fm client is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog client is required")
	}
	config, err := decodeLastFmConfig(settings)
	if err != nil {
		return nil, err
	}

	return &LastFmProvider{
		lastfm:   lfm,
		resolver: newResolver(catalog),
		config:   config,
	}, nil
}

func decodeLastFmConfig(settings map[string]any) (*LastFmProviderConfig, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	// defaults first so explicit zero weights survive
	var config LastFmProviderConfig
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if sum := config.TagWeight + config.SimilarWeight + config.ArtistWeight; math.Abs(sum-1.0) > 1e-6 {
		return nil, errors.Newf("tag, similar and artist weights must sum to 1.0 (got %.2f)", sum)
	}
	return &config, nil
}

// Candidates retrieves radio track candidates using hybrid scoring.
func (p *LastFmProvider) Candidates(ctx context.Context, count int, seeds []*track.Track, exclude map[string]bool) ([]*track.Track, error) {
	if count <= 0 {
		return []*track.Track{}, nil
	}

	// Limit seed tracks
	if len(seeds) > p.config.SeedTrackCount {
		seeds = seeds[:p.config.SeedTrackCount]
	}

	if len(seeds) == 0 {
		// No seed tracks available, use global charts as fallback
		return p.chartCandidates(ctx, count, exclude)
	}

	var (
		tagCandidates     []*track.Track
		similarCandidates []*track.Track
		artistCandidates  []*track.Track
		wg                sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		tagCandidates = p.tagCandidates(ctx, seeds, exclude)
	}()
	go func() {
		defer wg.Done()
		similarCandidates = p.similarCandidates(ctx, seeds, exclude)
	}()
	go func() {
		defer wg.Done()
		artistCandidates = p.artistCandidates(ctx, seeds, exclude)
	}()
	wg.Wait()

	scored := p.scoreAndMerge(tagCandidates, similarCandidates, artistCandidates)
	if len(scored) == 0 {
		return []*track.Track{}, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Pick randomly from the top N*2 to add variety
	poolSize := count * 2
	if poolSize > len(scored) {
		poolSize = len(scored)
	}
	top := scored[:poolSize]

	rng := rand.New(rand.NewSource(cryptoSeed()))
	rng.Shuffle(len(top), func(i, j int) {
		top[i], top[j] = top[j], top[i]
	})

	result := make([]*track.Track, 0, count)
	for i := 0; i < count && i < len(top); i++ {
		result = append(result, top[i].Track)
	}
	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// tagCandidates retrieves candidates using the seeds' most common tags.
func (p *LastFmProvider) tagCandidates(ctx context.Context, seeds []*track.Track, exclude map[string]bool) []*track.Track {
	tagCounts := make(map[string]int)
	for _, seed := range seeds {
		if seed.ArtistName() == "" {
			continue
		}
		tags, err := p.lastfm.GetTopTags(ctx, seed.Title, seed.ArtistName(), 10)
		if err != nil {
			continue
		}
		for _, tag := range tags {
			tagCounts[tag.Name] += tag.Count
		}
	}
	if len(tagCounts) == 0 {
		return []*track.Track{}
	}

	collector := newCollector(exclude)
	var wg sync.WaitGroup
	for _, tagName := range topTags(tagCounts, p.config.TagCount) {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			tracks, err := p.lastfm.GetTopTracks(ctx, tag, 20)
			if err != nil {
				return
			}
			for _, t := range tracks {
				collector.add(p.resolver.resolve(ctx, t.Name, t.Artist))
			}
		}(tagName)
	}
	wg.Wait()
	return collector.tracks()
}

// similarCandidates retrieves candidates using Last.fm similar tracks.
func (p *LastFmProvider) similarCandidates(ctx context.Context, seeds []*track.Track, exclude map[string]bool) []*track.Track {
	collector := newCollector(exclude)
	var wg sync.WaitGroup
	for _, seed := range seeds {
		if seed.ArtistName() == "" {
			continue
		}
		wg.Add(1)
		go func(s *track.Track) {
			defer wg.Done()
			similar, err := p.lastfm.GetSimilarTracks(ctx, s.Title, s.ArtistName(), 10)
			if err != nil {
				return
			}
			for _, sim := range similar {
				collector.add(p.resolver.resolve(ctx, sim.Name, sim.Artist))
			}
		}(seed)
	}
	wg.Wait()
	return collector.tracks()
}

// artistCandidates retrieves catalog songs by artists similar to the seed artists.
func (p *LastFmProvider) artistCandidates(ctx context.Context, seeds []*track.Track, exclude map[string]bool) []*track.Track {
	collector := newCollector(exclude)
	seen := make(map[string]bool)
	for _, seed := range seeds {
		artist := seed.ArtistName()
		if artist == "" || seen[artist] {
			continue
		}
		seen[artist] = true

		similar, err := p.lastfm.GetSimilarArtists(ctx, artist, 5)
		if err != nil {
			continue
		}
		for _, name := range similar {
			for _, s := range p.resolver.songsByArtist(ctx, name) {
				collector.add(s)
			}
		}
	}
	return collector.tracks()
}

// scoreAndMerge scores and merges the strategy results; tracks found by several strategies add up.
func (p *LastFmProvider) scoreAndMerge(tagCandidates, similarCandidates, artistCandidates []*track.Track) []ScoredTrack {
	scoreMap := make(map[string]*ScoredTrack)
	order := make([]string, 0)

	add := func(tracks []*track.Track, weight float64) {
		for _, t := range tracks {
			if existing, ok := scoreMap[t.ID]; ok {
				existing.Score += weight
				continue
			}
			scoreMap[t.ID] = &ScoredTrack{Track: t, Score: weight}
			order = append(order, t.ID)
		}
	}
	add(tagCandidates, p.config.TagWeight)
	add(similarCandidates, p.config.SimilarWeight)
	add(artistCandidates, p.config.ArtistWeight)

	result := make([]ScoredTrack, 0, len(scoreMap))
	for _, id := range order {
		result = append(result, *scoreMap[id])
	}
	return result
}

// chartCandidates is the fallback when no seed tracks are available (e.g. right after login).
func (p *LastFmProvider) chartCandidates(ctx context.Context, count int, exclude map[string]bool) ([]*track.Track, error) {
	chart, err := p.lastfm.GetChartTopTracks(ctx, 50)
	if err != nil {
		return []*track.Track{}, errors.Wrap(err, "failed to get chart")
	}

	rng := rand.New(rand.NewSource(cryptoSeed()))
	rng.Shuffle(len(chart), func(i, j int) {
		chart[i], chart[j] = chart[j], chart[i]
	})

	collector := newCollector(exclude)
	for _, t := range chart {
		collector.add(p.resolver.resolve(ctx, t.Name, t.Artist))
		if collector.len() >= count*2 {
			break
		}
	}
	return collector.tracks(), nil
}

// topTags sorts tags by count and returns the top N tag names.
func topTags(tagCounts map[string]int, topN int) []string {
	type tagCount struct {
		name  string
		count int
	}

	tags := make([]tagCount, 0, len(tagCounts))
	for name, count := range tagCounts {
		tags = append(tags, tagCount{name: name, count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].count != tags[j].count {
			return tags[i].count > tags[j].count
		}
		return tags[i].name < tags[j].name
	})

	result := make([]string, 0, topN)
	for i := 0; i < topN && i < len(tags); i++ {
		result = append(result, tags[i].name)
	}
	return result
}

// collector gathers resolved tracks from concurrent lookups, skipping excluded and repeated IDs.
type collector struct {
	mu      sync.Mutex
	exclude map[string]bool
	seen    map[string]bool
	list    []*track.Track
}

func newCollector(exclude map[string]bool) *collector {
	return &collector{exclude: exclude, seen: make(map[string]bool)}
}

func (c *collector) add(t *track.Track) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exclude[t.ID] || c.seen[t.ID] {
		return
	}
	c.seen[t.ID] = true
	c.list = append(c.list, t)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

func (c *collector) tracks() []*track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*track.Track(nil), c.list...)
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return time.Now().UnixNano()
}
