package queue

import "github.com/cockroachdb/errors"

// ErrUnknownRepeatMode is returned when a repeat mode string cannot be parsed.
var ErrUnknownRepeatMode = errors.New("unknown repeat mode")

// RepeatMode represents the end-of-track / end-of-queue policy.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota // Stop at the end of the queue
	RepeatAll                    // Wrap around to the first track
	RepeatOne                    // Restart the current track
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "none"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// Next returns the mode that follows m in the none → all → one cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatNone
	}
}

// ParseRepeatMode converts a string to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "none", "":
		return RepeatNone, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatNone, errors.Wrapf(ErrUnknownRepeatMode, "%q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RepeatMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RepeatMode) UnmarshalText(b []byte) error {
	parsed, err := ParseRepeatMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Step is the outcome of a cursor movement.
type Step int

const (
	StepMoved   Step = iota // Cursor moved; load the new current track
	StepRestart             // Cursor unchanged; restart the current track
	StepEnd                 // No track to move to
)

// String returns the string representation of the step.
func (s Step) String() string {
	switch s {
	case StepMoved:
		return "moved"
	case StepRestart:
		return "restart"
	case StepEnd:
		return "end"
	default:
		return "unknown"
	}
}
