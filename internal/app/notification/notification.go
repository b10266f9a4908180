package notification

import (
	"time"

	"github.com/osa030/streambox/internal/domain/track"
)

// Type identifies a notification.
type Type string

const (
	TypeTrackChanged Type = "track_changed"
	TypeStateChanged Type = "state_changed"
	TypeQueueChanged Type = "queue_changed"
	TypeProgress     Type = "progress"
	TypeMessage      Type = "message"
)

// Level is the severity of a message notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// PlayerState is the transport state carried by state_changed notifications.
type PlayerState struct {
	Status   string  `json:"status"` // idle, loaded, playing, paused
	Cursor   int     `json:"cursor"`
	Volume   float64 `json:"volume"`
	Muted    bool    `json:"muted"`
	Shuffled bool    `json:"shuffled"`
	Repeat   string  `json:"repeat"`
}

// Progress is the playback position of the current track.
type Progress struct {
	TrackID    string  `json:"trackId"`
	PositionMs int64   `json:"positionMs"`
	DurationMs int64   `json:"durationMs"`
	Percent    float64 `json:"percent"`
	LyricLine  string  `json:"lyricLine,omitempty"`
}

// Message is a user-facing text.
type Message struct {
	Level Level  `json:"level"`
	Code  string `json:"code,omitempty"`
	Text  string `json:"text"`
}

// Notification is a single event sent to subscribers.
// SequenceNo is assigned by Manager.Broadcast.
type Notification struct {
	SequenceNo uint64              `json:"sequenceNo"`
	Type       Type                `json:"type"`
	Time       time.Time           `json:"time"`
	State      *PlayerState        `json:"state,omitempty"`
	Track      *track.QueuedTrack  `json:"track,omitempty"`
	Queue      []track.QueuedTrack `json:"queue,omitempty"`
	Progress   *Progress           `json:"progress,omitempty"`
	Message    *Message            `json:"message,omitempty"`
}

// New creates a notification of type t stamped with the current time.
func New(t Type) *Notification {
	return &Notification{Type: t, Time: time.Now()}
}

// NewMessage creates a message notification.
func NewMessage(level Level, code, text string) *Notification {
	n := New(TypeMessage)
	n.Message = &Message{Level: level, Code: code, Text: text}
	return n
}
