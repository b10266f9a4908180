// Package filter provides the filter chain that validates tracks before they enter the queue.
package filter

import (
	"context"
	"sort"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// Rejection codes. They double as message codes in the configuration.
const (
	CodeTrackUnplayable       = "track_unplayable"
	CodeDuplicateTrack        = "duplicate_track"
	CodeDurationLimitExceeded = "duration_limit_exceeded"
	CodeLoginRequired         = "login_required"
	CodeQueueFull             = "queue_full"
)

// TrackRequest represents a request to enqueue a track.
type TrackRequest struct {
	UserID  string       // empty when nobody is signed in
	TrackID string       // catalog song ID
	Source  track.Source // where the request came from
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "track_unplayable", "duplicate_track"
	Filter   string // name of the rejecting filter
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// QueueReader exposes the tracks currently queued.
type QueueReader interface {
	Tracks() []track.QueuedTrack
}

// Deps carries the collaborators some filters need.
type Deps struct {
	Queue QueueReader
}

// Filter is the interface for enqueue filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should run for tracks from the given source.
	AppliesTo(source track.Source) bool
	// Check performs the filter check. u is nil when nobody is signed in.
	Check(ctx context.Context, req TrackRequest, t *track.Track, u *user.Session) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func(Deps) Filter)

// Register registers a filter factory.
func Register(name string, factory func(Deps) Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func(Deps) Filter {
	return registry
}

// Names returns the registered filter names in ascending order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isOneOf(source track.Source, sources ...track.Source) bool {
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}
