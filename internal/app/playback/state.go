// Package playback provides the transport controller that drives a media
// element from the playback queue.
package playback

// State represents the transport state.
type State int

const (
	StateIdle    State = iota // No current track
	StateLoaded               // Current track set but not playing
	StatePlaying              // Current track is playing
	StatePaused               // Current track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// HasTrack reports whether the state implies a current track.
func (s State) HasTrack() bool {
	return s != StateIdle
}
