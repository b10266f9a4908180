// Package state keeps the signed-in account and UI preferences and persists
// them through the key/value store.
package state

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Phase is the account phase.
type Phase int

const (
	PhaseSignedOut Phase = iota
	PhaseSignedIn
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseSignedOut:
		return "signed_out"
	case PhaseSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned by ParseTheme for an unknown name.
var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme parses "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", errors.Wrapf(ErrInvalidTheme, "%q", s)
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
