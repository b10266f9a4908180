// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Last.fm API endpoint.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

const defaultCacheTTL = 30 * time.Minute

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	CacheTTL   time.Duration
}

// SimilarTrack represents a similar track from Last.fm.
type SimilarTrack struct {
	Name   string
	Artist string
	Match  float64
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag count/frequency
}

// TopTrack represents a top track for a tag.
type TopTrack struct {
	Name   string
	Artist string
}

type artistName struct {
	Name string `json:"name"`
}

type similarTracksResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string     `json:"name"`
			Match  float64    `json:"match"`
			Artist artistName `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string     `json:"name"`
			Artist artistName `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
}

type similarArtistsResponse struct {
	SimilarArtists struct {
		Artist []artistName `json:"artist"`
	} `json:"similarartists"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		cacheTTL:   ttl,
		cache:      make(map[string]cacheEntry),
	}, nil
}

// GetSimilarTracks retrieves similar tracks based on track name and artist.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artist string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artist == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 20)

	key := fmt.Sprintf("similar:%s:%s:%d", artist, trackName, limit)
	if v, ok := c.cached(key); ok {
		return v.([]SimilarTrack), nil
	}

	var resp similarTracksResponse
	err := c.call(ctx, url.Values{
		"method":      {"track.getSimilar"},
		"artist":      {artist},
		"track":       {trackName},
		"limit":       {strconv.Itoa(limit)},
		"autocorrect": {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	tracks := make([]SimilarTrack, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		tracks = append(tracks, SimilarTrack{Name: t.Name, Artist: t.Artist.Name, Match: t.Match})
	}
	c.store(key, tracks)
	return tracks, nil
}

// GetTopTags retrieves top tags for a track.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artist string, limit int) ([]Tag, error) {
	if trackName == "" || artist == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 10)

	key := fmt.Sprintf("tracktag:%s:%s", artist, trackName)
	if v, ok := c.cached(key); ok {
		return truncate(v.([]Tag), limit), nil
	}

	var resp topTagsResponse
	err := c.call(ctx, url.Values{
		"method":      {"track.getTopTags"},
		"artist":      {artist},
		"track":       {trackName},
		"autocorrect": {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(resp.TopTags.Tag))
	for _, t := range resp.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}
	c.store(key, tags)
	return truncate(tags, limit), nil
}

// GetTopTracks retrieves top tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tag string, limit int) ([]TopTrack, error) {
	if tag == "" {
		return nil, errors.New("tag name is required")
	}
	limit = clampLimit(limit, 20)

	key := fmt.Sprintf("tagtracks:%s:%d", tag, limit)
	if v, ok := c.cached(key); ok {
		return v.([]TopTrack), nil
	}

	var resp topTracksResponse
	err := c.call(ctx, url.Values{
		"method": {"tag.getTopTracks"},
		"tag":    {tag},
		"limit":  {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	tracks := toTopTracks(resp)
	c.store(key, tracks)
	return tracks, nil
}

// GetSimilarArtists retrieves artists similar to the given one.
// Reference: https://www.last.fm/api/show/artist.getSimilar
func (c *Client) GetSimilarArtists(ctx context.Context, artist string, limit int) ([]string, error) {
	if artist == "" {
		return nil, errors.New("artist name is required")
	}
	limit = clampLimit(limit, 10)

	key := fmt.Sprintf("similarartists:%s:%d", artist, limit)
	if v, ok := c.cached(key); ok {
		return v.([]string), nil
	}

	var resp similarArtistsResponse
	err := c.call(ctx, url.Values{
		"method":      {"artist.getSimilar"},
		"artist":      {artist},
		"limit":       {strconv.Itoa(limit)},
		"autocorrect": {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.SimilarArtists.Artist))
	for _, a := range resp.SimilarArtists.Artist {
		names = append(names, a.Name)
	}
	c.store(key, names)
	return names, nil
}

// GetChartTopTracks retrieves global top tracks from Last.fm charts. Not cached.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	var resp topTracksResponse
	err := c.call(ctx, url.Values{
		"method": {"chart.getTopTracks"},
		"limit":  {strconv.Itoa(clampLimit(limit, 20))},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return toTopTracks(resp), nil
}

// call performs a GET against the API and decodes the JSON response into dst.
func (c *Client) call(ctx context.Context, params url.Values, dst any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Last.fm reports errors in the body, sometimes with 200
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func (c *Client) cached(key string) (any, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	zlog.Debug().Msgf("lastfm: cache hit %s", key)
	return entry.value, true
}

func (c *Client) store(key string, value any) {
	c.cacheMu.Lock()
	c.cache[key] = cacheEntry{value: value, expires: time.Now().Add(c.cacheTTL)}
	c.cacheMu.Unlock()
}

func toTopTracks(resp topTracksResponse) []TopTrack {
	tracks := make([]TopTrack, 0, len(resp.Tracks.Track))
	for _, t := range resp.Tracks.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return tracks
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
