// Package spotify provides a read-only Spotify client used to seed radio from playlists.
package spotify

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// pageLimit is the Spotify API maximum per playlist page.
const pageLimit = 100

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
	rng        *rand.Rand
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string // optional; without it only public playlists are reachable
	Market       string

	// BaseURL and HTTPClient override the API endpoint and transport (tests).
	BaseURL    string
	HTTPClient *http.Client
}

// TrackRef identifies a Spotify track by name and artist, for matching against the catalog.
type TrackRef struct {
	ID       string
	Name     string
	Artist   string
	Duration time.Duration
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, errors.New("spotify credentials are required")
		}
		if cfg.RefreshToken != "" {
			// user token with auto-refresh, reaches private playlists
			auth := spotifyauth.New(
				spotifyauth.WithClientID(cfg.ClientID),
				spotifyauth.WithClientSecret(cfg.ClientSecret),
				spotifyauth.WithScopes(spotifyauth.ScopePlaylistReadPrivate),
			)
			httpClient = auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		} else {
			cc := &clientcredentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenURL:     spotifyauth.TokenURL,
			}
			httpClient = cc.Client(ctx)
		}
	}

	var opts []spotify.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:     spotify.New(httpClient, opts...),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
		rng:        rand.New(rand.NewSource(cryptoSeed())),
	}, nil
}

// CheckPlaylistExists checks if a playlist is reachable without fetching all tracks.
func (c *Client) CheckPlaylistExists(ctx context.Context, playlistURL string) error {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return errors.New("invalid playlist URL")
	}

	err := c.retry(ctx, func() error {
		_, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "playlist does not exist or is not accessible")
	}
	return nil
}

// PlaylistTracksRandom returns up to count tracks from a random page of a playlist.
func (c *Client) PlaylistTracksRandom(ctx context.Context, playlistURL string, count int) ([]TrackRef, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}
	if count <= 0 {
		return nil, nil
	}

	// First page of one item gives the total
	var firstPage *spotify.PlaylistItemPage
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		firstPage = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist info")
	}

	total := int(firstPage.Total)
	if total == 0 {
		return []TrackRef{}, nil
	}

	offset := 0
	if maxOffset := total - pageLimit; maxOffset > 0 {
		offset = c.rng.Intn(maxOffset + 1)
	}

	var page *spotify.PlaylistItemPage
	err = c.retry(ctx, func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(pageLimit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist items")
	}

	refs := make([]TrackRef, 0, len(page.Items))
	for _, item := range page.Items {
		// Only tracks, episodes are skipped
		if item.Track.Track == nil || item.Track.Track.ID == "" {
			continue
		}
		refs = append(refs, toRef(item.Track.Track))
	}

	c.rng.Shuffle(len(refs), func(i, j int) { refs[i], refs[j] = refs[j], refs[i] })
	if len(refs) > count {
		refs = refs[:count]
	}
	return refs, nil
}

func toRef(t *spotify.FullTrack) TrackRef {
	ref := TrackRef{
		ID:       string(t.ID),
		Name:     t.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
	if len(t.Artists) > 0 {
		ref.Artist = t.Artists[0].Name
	}
	return ref
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var serr spotify.Error
	if errors.As(err, &serr) {
		return serr.Status == http.StatusTooManyRequests || serr.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	// spotify:playlist:PLAYLIST_ID
	if strings.HasPrefix(input, "spotify:playlist:") {
		return strings.TrimPrefix(input, "spotify:playlist:")
	}

	// https://open.spotify.com/playlist/PLAYLIST_ID or https://open.spotify.com/intl-XX/playlist/PLAYLIST_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return time.Now().UnixNano()
}
