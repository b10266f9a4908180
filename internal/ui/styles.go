package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/osa030/streambox/internal/app/notification"
)

var styles = newPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

type palette struct {
	title   lipgloss.Style
	artist  lipgloss.Style
	current lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
}

func newPalette(accent, success, failure, warning, dim string) *palette {
	return &palette{
		title:   newBold(accent),
		artist:  newStyle(dim),
		current: newBold(accent),
		ok:      newBold(success),
		err:     newBold(failure),
		warn:    newStyle(warning),
		muted:   newStyle(dim).Italic(true),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(accent)).
			Padding(0, 1),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

// messageStyle picks the style for a message level.
func (p *palette) messageStyle(level notification.Level) lipgloss.Style {
	switch level {
	case notification.LevelSuccess:
		return p.ok
	case notification.LevelWarning:
		return p.warn
	case notification.LevelError:
		return p.err
	default:
		return p.muted
	}
}
