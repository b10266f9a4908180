package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

// DuplicateTrackFilter rejects songs already queued, either by ID or as another
// release of the same recording by the same artist. Covers are allowed.
type DuplicateTrackFilter struct {
	queue QueueReader
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queue QueueReader) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{queue: queue}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects songs already in the queue, including remasters. Covers by other artists are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{CodeDuplicateTrack}
}

// AppliesTo returns which sources this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(source track.Source) bool {
	// Bulk loads replace the queue, so only single additions are checked
	return isOneOf(source, track.SourceUser, track.SourceRadio)
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req TrackRequest, requested *track.Track, u *user.Session) Result {
	if f.queue == nil || requested == nil {
		return Accept()
	}

	for _, queued := range f.queue.Tracks() {
		if queued.Track == nil {
			continue
		}
		if queued.Track.ID == requested.ID || isRemaster(queued.Track, requested) {
			return Reject(CodeDuplicateTrack)
		}
	}
	return Accept()
}

func isRemaster(a, b *track.Track) bool {
	return isSameArtist(a, b) && normalizeTitle(a.Title) == normalizeTitle(b.Title)
}

var (
	// words marking a re-release of the same recording; "mix" and "remix" are distinct songs
	versionWord = regexp.MustCompile(`\b(remaster(ed)?|version|edit|live|mono|stereo)\b`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// normalizeTitle lowercases title and strips trailing decorations such as
// "(Remastered 2023)", "[Live]" or "- Radio Edit".
func normalizeTitle(title string) string {
	t := whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), " ")
	for {
		head, tail, ok := trailingDecoration(t)
		if !ok || head == "" || !versionWord.MatchString(tail) {
			return t
		}
		t = head
	}
}

// trailingDecoration splits a trailing "(...)", "[...]" or " - ..." segment off t.
func trailingDecoration(t string) (head, tail string, ok bool) {
	if t == "" {
		return "", "", false
	}
	if closer := t[len(t)-1:]; closer == ")" || closer == "]" {
		opener := "("
		if closer == "]" {
			opener = "["
		}
		if i := strings.LastIndex(t, opener); i >= 0 {
			return strings.TrimRight(t[:i], " -"), t[i+1 : len(t)-1], true
		}
		return "", "", false
	}
	if i := strings.LastIndex(t, " - "); i >= 0 {
		return strings.TrimSpace(t[:i]), t[i+3:], true
	}
	return "", "", false
}

// isSameArtist compares artists case-insensitively. Unknown artists never match.
func isSameArtist(a, b *track.Track) bool {
	if a.ArtistName() == "" || b.ArtistName() == "" {
		return false
	}
	return strings.EqualFold(a.ArtistName(), b.ArtistName())
}

func init() {
	Register("duplicate_track_filter", func(d Deps) Filter {
		return NewDuplicateTrackFilter(d.Queue)
	})
}
