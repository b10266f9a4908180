package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/streambox/internal/domain/track"
)

func TestPlaylist_TrackIDs(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []*track.Track
		expected []string
	}{
		{
			name:     "empty playlist",
			tracks:   []*track.Track{},
			expected: []string{},
		},
		{
			name: "single track",
			tracks: []*track.Track{
				{ID: "track-1"},
			},
			expected: []string{"track-1"},
		},
		{
			name: "multiple tracks",
			tracks: []*track.Track{
				{ID: "track-1"},
				{ID: "track-2"},
				{ID: "track-3"},
			},
			expected: []string{"track-1", "track-2", "track-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{
				ID:     "playlist-1",
				Tracks: tt.tracks,
			}

			result := p.TrackIDs()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPlaylist_TotalDuration(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []*track.Track
		expected time.Duration
	}{
		{
			name:     "empty playlist",
			tracks:   nil,
			expected: 0,
		},
		{
			name: "mixed durations",
			tracks: []*track.Track{
				{ID: "1", Duration: 3 * time.Minute},
				{ID: "2", Duration: 4*time.Minute + 30*time.Second},
			},
			expected: 7*time.Minute + 30*time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{Tracks: tt.tracks}
			assert.Equal(t, tt.expected, p.TotalDuration())
		})
	}
}

func TestPlaylist_ContainsAndOwnership(t *testing.T) {
	p := &Playlist{
		ID:      "9",
		OwnerID: "user-1",
		Tracks:  []*track.Track{{ID: "a"}, {ID: "b"}},
	}

	assert.True(t, p.Contains("a"))
	assert.False(t, p.Contains("z"))
	assert.True(t, p.IsOwnedBy("user-1"))
	assert.False(t, p.IsOwnedBy("user-2"))
	assert.False(t, (&Playlist{}).IsOwnedBy(""))
}
