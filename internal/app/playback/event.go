package playback

import (
	"github.com/osa030/streambox/internal/app/queue"
	"github.com/osa030/streambox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged   EventType = iota // Current track changed (nil Track when cleared)
	EventStateChanged                    // Transport state changed
	EventQueueChanged                    // Queue contents or order changed
	EventVolumeChanged                   // Volume or mute changed
	EventModeChanged                     // Shuffle or repeat mode changed
	EventQueueEnded                      // Playback ran past the last track
	EventPlaybackFailed                  // The media element could not play the current track
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventQueueEnded:
		return "queue_ended"
	case EventPlaybackFailed:
		return "playback_failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Track    *track.QueuedTrack  // Current track (nil when there is none)
	Queue    []track.QueuedTrack // Queue after the change, set for EventQueueChanged
	Cursor   int
	State    State
	Volume   float64
	Muted    bool
	Shuffled bool
	Repeat   queue.RepeatMode
	Err      error // Set for EventPlaybackFailed
}
