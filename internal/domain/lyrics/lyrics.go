// Package lyrics provides plain and time-synced song lyrics.
package lyrics

import (
	"sort"
	"time"
)

// Lyrics holds the plain text lyrics of a song.
type Lyrics struct {
	SongID string `json:"songId"`
	Text   string `json:"text"`
}

// Line is a single synced lyric line.
type Line struct {
	At   time.Duration `json:"at"`
	Text string        `json:"text"`
}

// Synced holds time-synced lyrics ordered by start time.
type Synced struct {
	SongID string `json:"songId"`
	Lines  []Line `json:"lines"`
}

// NewSynced sorts lines by start time. Lines with the same start keep their order.
func NewSynced(songID string, lines []Line) *Synced {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return &Synced{SongID: songID, Lines: sorted}
}

// LineAt returns the index of the line active at pos, or -1 before the first line.
func (s *Synced) LineAt(pos time.Duration) int {
	if s == nil {
		return -1
	}
	// first line starting after pos
	i := sort.Search(len(s.Lines), func(i int) bool { return s.Lines[i].At > pos })
	return i - 1
}

// TextAt returns the text of the line active at pos.
func (s *Synced) TextAt(pos time.Duration) (string, bool) {
	i := s.LineAt(pos)
	if i < 0 {
		return "", false
	}
	return s.Lines[i].Text, true
}

// IsEmpty reports whether there are no lines.
func (s *Synced) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}
