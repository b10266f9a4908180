// Package queue provides the playback queue: track order, current position,
// and the shuffle and repeat policies that decide what plays next.
//
// A Queue is not safe for concurrent use. It is owned by the playback
// controller, which serializes every call.
package queue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/domain/track"
)

// ErrOutOfRange is returned for an invalid queue index.
var ErrOutOfRange = errors.New("queue index out of range")

// DefaultRestartThreshold is how far into a track "previous" restarts it instead of going back.
const DefaultRestartThreshold = 3 * time.Second

// Queue holds the ordered tracks and the cursor.
type Queue struct {
	order         []track.QueuedTrack
	originalOrder []track.QueuedTrack // pre-shuffle order, only kept while shuffled
	cursor        int

	shuffled bool
	repeat   RepeatMode

	restartThreshold time.Duration
	rng              *rand.Rand
}

// Option configures a Queue.
type Option func(*Queue)

// WithRand sets the random source used for shuffling.
func WithRand(rng *rand.Rand) Option {
	return func(q *Queue) {
		q.rng = rng
	}
}

// WithRestartThreshold overrides DefaultRestartThreshold.
func WithRestartThreshold(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.restartThreshold = d
		}
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		restartThreshold: DefaultRestartThreshold,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.rng == nil {
		q.rng = newRand()
	}
	return q
}

func newRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.order)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.order) == 0
}

// Cursor returns the index of the current track. Meaningless when empty.
func (q *Queue) Cursor() int {
	return q.cursor
}

// Shuffled reports whether shuffle is on.
func (q *Queue) Shuffled() bool {
	return q.shuffled
}

// RepeatMode returns the current repeat mode.
func (q *Queue) RepeatMode() RepeatMode {
	return q.repeat
}

// Current returns the track at the cursor.
func (q *Queue) Current() (track.QueuedTrack, bool) {
	if q.IsEmpty() {
		return track.QueuedTrack{}, false
	}
	return q.order[q.cursor], true
}

// Tracks returns a copy of the play order.
func (q *Queue) Tracks() []track.QueuedTrack {
	return slices.Clone(q.order)
}

// OriginalOrder returns a copy of the pre-shuffle order, or nil when not shuffled.
func (q *Queue) OriginalOrder() []track.QueuedTrack {
	if !q.shuffled {
		return nil
	}
	return slices.Clone(q.originalOrder)
}

// IndexOf returns the position of the track in the play order, or -1.
func (q *Queue) IndexOf(id string) int {
	return indexOf(q.order, id)
}

func indexOf(list []track.QueuedTrack, id string) int {
	if id == "" {
		return -1
	}
	for i, qt := range list {
		if qt.ID() == id {
			return i
		}
	}
	return -1
}

// Append adds the track at the end of the queue.
// Returns false if a track with the same ID is already queued.
// While shuffled the track is appended to the pre-shuffle order too, so that
// unshuffling keeps it.
func (q *Queue) Append(qt track.QueuedTrack) bool {
	if qt.Track == nil || q.IndexOf(qt.ID()) >= 0 {
		return false
	}
	q.order = append(q.order, qt)
	if q.shuffled {
		q.originalOrder = append(q.originalOrder, qt)
	}
	return true
}

// RemoveAt removes the track at index.
// Removing a track before the cursor shifts the cursor back; removing the
// current track leaves the cursor on the following track, clamped to the end.
func (q *Queue) RemoveAt(index int) (track.QueuedTrack, error) {
	if index < 0 || index >= len(q.order) {
		return track.QueuedTrack{}, errors.Wrapf(ErrOutOfRange, "index %d, length %d", index, len(q.order))
	}

	removed := q.order[index]
	q.order = slices.Delete(q.order, index, index+1)
	if q.shuffled {
		if i := indexOf(q.originalOrder, removed.ID()); i >= 0 {
			q.originalOrder = slices.Delete(q.originalOrder, i, i+1)
		}
	}

	switch {
	case len(q.order) == 0:
		q.cursor = 0
	case index < q.cursor:
		q.cursor--
	case q.cursor >= len(q.order):
		q.cursor = len(q.order) - 1
	}

	return removed, nil
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.order = nil
	q.originalOrder = nil
	q.cursor = 0
}

// JumpTo moves the cursor to index.
func (q *Queue) JumpTo(index int) error {
	if index < 0 || index >= len(q.order) {
		return errors.Wrapf(ErrOutOfRange, "index %d, length %d", index, len(q.order))
	}
	q.cursor = index
	return nil
}

// SetShuffled turns shuffle on or off.
//
// Turning it on remembers the current order, keeps the current track first and
// permutes the rest uniformly. Turning it off restores the remembered order and
// puts the cursor back on the track that was current, or on 0 if it is gone.
func (q *Queue) SetShuffled(on bool) {
	if on == q.shuffled {
		return
	}

	if on {
		q.originalOrder = slices.Clone(q.order)
		if len(q.order) > 0 {
			current := q.order[q.cursor]
			rest := make([]track.QueuedTrack, 0, len(q.order)-1)
			rest = append(rest, q.order[:q.cursor]...)
			rest = append(rest, q.order[q.cursor+1:]...)
			q.rng.Shuffle(len(rest), func(i, j int) {
				rest[i], rest[j] = rest[j], rest[i]
			})
			q.order = append([]track.QueuedTrack{current}, rest...)
		}
		q.cursor = 0
		q.shuffled = true
		return
	}

	var currentID string
	if cur, ok := q.Current(); ok {
		currentID = cur.ID()
	}
	q.order = q.originalOrder
	q.originalOrder = nil
	q.shuffled = false
	q.cursor = q.IndexOf(currentID)
	if q.cursor < 0 {
		q.cursor = 0
	}
}

// SetRepeatMode sets the repeat mode.
func (q *Queue) SetRepeatMode(mode RepeatMode) {
	q.repeat = mode
}

// CycleRepeatMode advances none → all → one → none and returns the new mode.
func (q *Queue) CycleRepeatMode() RepeatMode {
	q.repeat = q.repeat.Next()
	return q.repeat
}

// Advance moves to the track that should play after the current one ends or is skipped.
func (q *Queue) Advance() Step {
	if q.IsEmpty() {
		return StepEnd
	}
	if q.repeat == RepeatOne {
		return StepRestart
	}
	if q.cursor < len(q.order)-1 {
		q.cursor++
		return StepMoved
	}
	if q.repeat == RepeatAll {
		q.cursor = 0
		return StepMoved
	}
	return StepEnd
}

// Retreat handles "previous". elapsed is the playback position of the current track.
func (q *Queue) Retreat(elapsed time.Duration) Step {
	if q.IsEmpty() {
		return StepEnd
	}
	if elapsed > q.restartThreshold {
		return StepRestart
	}
	if q.cursor > 0 {
		q.cursor--
		return StepMoved
	}
	if q.repeat == RepeatAll {
		q.cursor = len(q.order) - 1
		return StepMoved
	}
	return StepRestart
}

// Restore replaces the queue state, typically from persisted data.
// Duplicate IDs are dropped, the cursor is clamped, and the pre-shuffle order is
// rebuilt from originalIDs with any unlisted tracks appended.
func (q *Queue) Restore(order []track.QueuedTrack, originalIDs []string, cursor int, shuffled bool, mode RepeatMode) {
	q.order = nil
	for _, qt := range order {
		if qt.Track == nil || indexOf(q.order, qt.ID()) >= 0 {
			continue
		}
		q.order = append(q.order, qt)
	}

	q.originalOrder = nil
	q.shuffled = shuffled
	if shuffled {
		for _, id := range originalIDs {
			if i := q.IndexOf(id); i >= 0 && indexOf(q.originalOrder, id) < 0 {
				q.originalOrder = append(q.originalOrder, q.order[i])
			}
		}
		for _, qt := range q.order {
			if indexOf(q.originalOrder, qt.ID()) < 0 {
				q.originalOrder = append(q.originalOrder, qt)
			}
		}
	}

	switch {
	case len(q.order) == 0, cursor < 0:
		q.cursor = 0
	case cursor >= len(q.order):
		q.cursor = len(q.order) - 1
	default:
		q.cursor = cursor
	}
	q.repeat = mode
}
