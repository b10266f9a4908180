package lyrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSynced_LineAt(t *testing.T) {
	s := NewSynced("1", []Line{
		{At: 10 * time.Second, Text: "second"},
		{At: 2 * time.Second, Text: "first"},
		{At: 20 * time.Second, Text: "third"},
	})

	tests := []struct {
		name string
		pos  time.Duration
		want int
		text string
	}{
		{"before first line", time.Second, -1, ""},
		{"exactly at first line", 2 * time.Second, 0, "first"},
		{"between lines", 15 * time.Second, 1, "second"},
		{"after last line", time.Minute, 2, "third"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.LineAt(tt.pos))
			text, ok := s.TextAt(tt.pos)
			assert.Equal(t, tt.want >= 0, ok)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestSynced_Empty(t *testing.T) {
	var nilSynced *Synced
	assert.True(t, nilSynced.IsEmpty())
	assert.Equal(t, -1, nilSynced.LineAt(time.Second))

	s := NewSynced("1", nil)
	assert.True(t, s.IsEmpty())
	_, ok := s.TextAt(time.Second)
	assert.False(t, ok)
}
