// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	API      APIConfig               `yaml:"api"`
	Storage  StorageConfig           `yaml:"storage"`
	Media    MediaConfig             `yaml:"media"`
	Playback PlaybackConfig          `yaml:"playback"`
	Radio    RadioConfig             `yaml:"radio"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
}

// ServerConfig represents the control server configuration.
type ServerConfig struct {
	Addr         string      `yaml:"addr" default:":8090"`
	ControlToken string      `yaml:"control_token" validate:"required"`
	Hooks        HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// APIConfig represents the catalog backend configuration.
type APIConfig struct {
	BaseURL    string  `yaml:"base_url" default:"http://localhost:9188/api" validate:"required,url"`
	TimeoutMs  int     `yaml:"timeout_ms" default:"10000" validate:"gte=100,lte=120000"`
	RatePerSec float64 `yaml:"rate_per_sec" default:"10" validate:"gt=0"`
	Burst      int     `yaml:"burst" default:"5" validate:"gte=1"`
}

// StorageConfig represents persistence configuration.
type StorageConfig struct {
	Driver string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite memory"`
	Path   string `yaml:"path" default:"data/streambox.db"`
}

// MediaConfig represents audio output configuration.
type MediaConfig struct {
	Driver string `yaml:"driver" default:"simulated" validate:"oneof=simulated mpv beep"`
	Probe  bool   `yaml:"probe"`
}

// PlaybackConfig represents transport configuration.
type PlaybackConfig struct {
	DefaultVolume       float64 `yaml:"default_volume" default:"0.5" validate:"gt=0,lte=1"`
	VolumeStep          float64 `yaml:"volume_step" default:"0.1" validate:"gt=0,lte=1"`
	SeekStepSec         int     `yaml:"seek_step_sec" default:"10" validate:"gte=1,lte=300"`
	RestartThresholdSec int     `yaml:"restart_threshold_sec" default:"3" validate:"gte=0,lte=60"`
	ProgressIntervalMs  int     `yaml:"progress_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	PlayTimeoutMs       int     `yaml:"play_timeout_ms" default:"15000" validate:"gte=0,lte=120000"`
}

// RadioConfig represents autoplay configuration.
type RadioConfig struct {
	Enabled           bool             `yaml:"enabled"`
	CandidateCount    int              `yaml:"candidate_count" default:"5" validate:"gte=1,lte=50"`
	RecentArtistCount int              `yaml:"recent_artist_count" default:"3" validate:"gte=0,lte=50"`
	Providers         []ProviderConfig `yaml:"providers" validate:"required_if=Enabled true,dive"`
}

// ProviderConfig represents a single radio provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=catalog lastfm spotify_playlist"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success               string `yaml:"success" default:"Done"`
	DefaultError          string `yaml:"default_error" default:"An error occurred. Please try again."`
	LoginSuccess          string `yaml:"login_success" default:"Login successful!"`
	LoginRequired         string `yaml:"login_required" default:"Please login first"`
	RegisterSuccess       string `yaml:"register_success" default:"Registration successful! Please login."`
	LoggedOut             string `yaml:"logged_out" default:"Logged out successfully"`
	TrackUnplayable       string `yaml:"track_unplayable" default:"Audio file not available for this song"`
	PlaybackFailed        string `yaml:"playback_failed" default:"Error playing song"`
	NoActiveTrack         string `yaml:"no_active_track" default:"No song is loaded"`
	DuplicateTrack        string `yaml:"duplicate_track" default:"Song is already in the queue"`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"Song length is outside the allowed range"`
	QueueFull             string `yaml:"queue_full" default:"The queue is full"`
	AddedToQueue          string `yaml:"added_to_queue" default:"Added to queue"`
	AddedToFavorites      string `yaml:"added_to_favorites" default:"Added to favorites"`
	RemovedFromFavorites  string `yaml:"removed_from_favorites" default:"Removed from favorites"`
	QueueEnded            string `yaml:"queue_ended" default:"End of queue"`
	RadioStarted          string `yaml:"radio_started" default:"Playing similar songs"`
	QueueCleared          string `yaml:"queue_cleared" default:"Queue cleared"`
	ShuffleOn             string `yaml:"shuffle_on" default:"Shuffle on"`
	ShuffleOff            string `yaml:"shuffle_off" default:"Shuffle off"`
	RepeatNone            string `yaml:"repeat_none" default:"Repeat off"`
	RepeatAll             string `yaml:"repeat_all" default:"Repeat all"`
	RepeatOne             string `yaml:"repeat_one" default:"Repeat one"`
	PasswordResetSent     string `yaml:"password_reset_sent" default:"If the account exists, a reset link has been sent"`
	InvalidRegistration   string `yaml:"invalid_registration" default:"Please check your username, email and password (at least 6 characters)"`
	PlaylistUpdated       string `yaml:"playlist_updated" default:"Playlist updated"`
	ThemeChanged          string `yaml:"theme_changed" default:"Switched to %s theme"`
	Network               string `yaml:"network" default:"Network error. Please check your connection."`
}

// SpotifyConfig represents Spotify API configuration used by the spotify_playlist radio provider.
// Without a refresh token the client-credentials flow is used, which only reaches public playlists.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds the configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("STREAMBOX_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("STREAMBOX_CONTROL_TOKEN"); v != "" {
		c.Server.ControlToken = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Radio.Providers {
			if c.Radio.Providers[i].Type == "lastfm" {
				if c.Radio.Providers[i].Settings == nil {
					c.Radio.Providers[i].Settings = make(map[string]any)
				}
				c.Radio.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "login_success":
		return c.Messages.LoginSuccess
	case "login_required":
		return c.Messages.LoginRequired
	case "register_success":
		return c.Messages.RegisterSuccess
	case "logged_out":
		return c.Messages.LoggedOut
	case "track_unplayable":
		return c.Messages.TrackUnplayable
	case "playback_failed":
		return c.Messages.PlaybackFailed
	case "no_active_track":
		return c.Messages.NoActiveTrack
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "queue_full":
		return c.Messages.QueueFull
	case "added_to_queue":
		return c.Messages.AddedToQueue
	case "added_to_favorites":
		return c.Messages.AddedToFavorites
	case "removed_from_favorites":
		return c.Messages.RemovedFromFavorites
	case "queue_ended":
		return c.Messages.QueueEnded
	case "radio_started":
		return c.Messages.RadioStarted
	case "queue_cleared":
		return c.Messages.QueueCleared
	case "shuffle_on":
		return c.Messages.ShuffleOn
	case "shuffle_off":
		return c.Messages.ShuffleOff
	case "repeat_none":
		return c.Messages.RepeatNone
	case "repeat_all":
		return c.Messages.RepeatAll
	case "repeat_one":
		return c.Messages.RepeatOne
	case "password_reset_sent":
		return c.Messages.PasswordResetSent
	case "invalid_registration":
		return c.Messages.InvalidRegistration
	case "playlist_updated":
		return c.Messages.PlaylistUpdated
	case "theme_changed":
		return c.Messages.ThemeChanged
	case "network":
		return c.Messages.Network
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for _, p := range c.Radio.Providers {
		if p.Type == "spotify_playlist" && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
			return errors.Newf("radio provider %q requires spotify client_id and client_secret", p.DisplayName)
		}
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// EnabledFilters returns the settings of every enabled filter, keyed by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	enabled := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if !f.Enabled {
			continue
		}
		settings := f.Settings
		if settings == nil {
			settings = map[string]any{}
		}
		enabled[name] = settings
	}
	return enabled
}

// APITimeout returns the catalog request timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutMs) * time.Millisecond
}

// ProgressInterval returns the progress notification interval.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Playback.ProgressIntervalMs) * time.Millisecond
}

// SeekStep returns the seek step.
func (c *Config) SeekStep() time.Duration {
	return time.Duration(c.Playback.SeekStepSec) * time.Second
}

// RestartThreshold returns the position after which "previous" restarts the track.
func (c *Config) RestartThreshold() time.Duration {
	return time.Duration(c.Playback.RestartThresholdSec) * time.Second
}

// PlayTimeout returns the media play timeout.
func (c *Config) PlayTimeout() time.Duration {
	return time.Duration(c.Playback.PlayTimeoutMs) * time.Millisecond
}
