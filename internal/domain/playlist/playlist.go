// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/streambox/internal/domain/track"
)

// Playlist represents a user playlist stored in the catalog backend.
type Playlist struct {
	ID          string         // Catalog playlist ID
	Name        string         // Playlist name
	Description string         // Playlist description
	OwnerID     string         // ID of the owning user (empty for public playlists)
	Tracks      []*track.Track // Tracks in the playlist, when loaded
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// Contains reports whether the playlist holds the given track.
func (p *Playlist) Contains(trackID string) bool {
	for _, t := range p.Tracks {
		if t.ID == trackID {
			return true
		}
	}
	return false
}

// IsOwnedBy reports whether the user may edit the playlist.
func (p *Playlist) IsOwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}
