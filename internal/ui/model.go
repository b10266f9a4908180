package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/osa030/streambox/internal/api/rest"
	"github.com/osa030/streambox/internal/app/notification"
	"github.com/osa030/streambox/internal/domain/track"
)

// queuePreview is the number of upcoming tracks listed below the current one.
const queuePreview = 5

// Remote performs transport commands.
type Remote interface {
	TogglePlayPause(ctx context.Context) (*rest.PlayerInfo, error)
	Next(ctx context.Context) (*rest.PlayerInfo, error)
	Previous(ctx context.Context) (*rest.PlayerInfo, error)
	SeekSteps(ctx context.Context, steps int) (*rest.PlayerInfo, error)
	VolumeSteps(ctx context.Context, steps int) (*rest.PlayerInfo, error)
	ToggleMute(ctx context.Context) (*rest.PlayerInfo, error)
	SetShuffle(ctx context.Context, on *bool) (bool, error)
	SetRepeat(ctx context.Context, mode string) (string, error)
}

type eventMsg struct {
	n *notification.Notification
}

type streamClosedMsg struct{}

type commandDoneMsg struct {
	err error
}

// Model is the now-playing view.
type Model struct {
	ctx    context.Context
	remote Remote
	events <-chan *notification.Notification

	state    notification.PlayerState
	current  *track.QueuedTrack
	queue    []track.QueuedTrack
	progress notification.Progress
	message  *notification.Message
	err      error
	closed   bool

	width int
	bar   progress.Model
	help  help.Model
	keys  keyMap
}

// NewModel creates a view reading notifications from events. The view shows a
// disconnect once events is closed.
func NewModel(ctx context.Context, remote Remote, events <-chan *notification.Notification) *Model {
	return &Model{
		ctx:    ctx,
		remote: remote,
		events: events,
		state:  notification.PlayerState{Status: "idle"},
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init starts waiting for notifications.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 10)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.apply(msg.n)
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.closed = true
		return m, nil

	case commandDoneMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.playPause):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.TogglePlayPause(ctx); return err })
	case key.Matches(msg, m.keys.next):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.Next(ctx); return err })
	case key.Matches(msg, m.keys.previous):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.Previous(ctx); return err })
	case key.Matches(msg, m.keys.seekBack):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.SeekSteps(ctx, -1); return err })
	case key.Matches(msg, m.keys.seekFwd):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.SeekSteps(ctx, 1); return err })
	case key.Matches(msg, m.keys.volUp):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.VolumeSteps(ctx, 1); return err })
	case key.Matches(msg, m.keys.volDown):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.VolumeSteps(ctx, -1); return err })
	case key.Matches(msg, m.keys.mute):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.ToggleMute(ctx); return err })
	case key.Matches(msg, m.keys.shuffle):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.SetShuffle(ctx, nil); return err })
	case key.Matches(msg, m.keys.repeat):
		return m, m.command(func(ctx context.Context) error { _, err := m.remote.SetRepeat(ctx, ""); return err })
	}
	return m, nil
}

// apply folds a notification into the view state.
func (m *Model) apply(n *notification.Notification) {
	if n.State != nil {
		m.state = *n.State
	}
	switch n.Type {
	case notification.TypeStateChanged:
		if n.Track != nil {
			m.current = n.Track
		}
		if n.Queue != nil {
			m.queue = n.Queue
		}
	case notification.TypeTrackChanged:
		m.current = n.Track
		m.progress = notification.Progress{}
	case notification.TypeQueueChanged:
		m.queue = n.Queue
	case notification.TypeProgress:
		if n.Progress != nil {
			m.progress = *n.Progress
		}
	case notification.TypeMessage:
		m.message = n.Message
	}
}

func (m *Model) command(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		return commandDoneMsg{err: fn(ctx)}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{n: n}
	}
}

// View renders the now-playing screen.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n")
	b.WriteString(m.renderQueue())
	b.WriteString("\n")

	switch {
	case m.closed:
		b.WriteString(styles.err.Render("Disconnected from server. Press q to quit."))
	case m.err != nil:
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
	case m.message != nil:
		b.WriteString(styles.messageStyle(m.message.Level).Render(m.message.Text))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderNowPlaying() string {
	var lines []string
	if m.current == nil || m.current.Track == nil {
		lines = append(lines, styles.muted.Render("Nothing playing"))
	} else {
		t := m.current.Track
		lines = append(lines, styles.title.Render(t.Title), styles.artist.Render(t.ArtistName()))
		if m.progress.TrackID == t.ID {
			total := time.Duration(m.progress.DurationMs) * time.Millisecond
			if total <= 0 {
				total = t.Duration
			}
			pos := time.Duration(m.progress.PositionMs) * time.Millisecond
			lines = append(lines, fmt.Sprintf("%s %s %s", clock(pos), m.bar.ViewAs(m.progress.Percent/100), clock(total)))
			if m.progress.LyricLine != "" {
				lines = append(lines, styles.muted.Render("♪ "+m.progress.LyricLine))
			}
		}
	}
	lines = append(lines, m.renderModes())
	return styles.box.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderModes() string {
	volume := fmt.Sprintf("vol %d%%", int(m.state.Volume*100+0.5))
	if m.state.Muted {
		volume = "muted"
	}
	shuffle := "shuffle off"
	if m.state.Shuffled {
		shuffle = "shuffle on"
	}
	return fmt.Sprintf("[%s] %s · %s · repeat %s", m.state.Status, volume, shuffle, m.state.Repeat)
}

func (m *Model) renderQueue() string {
	if len(m.queue) == 0 {
		return styles.muted.Render("Queue is empty")
	}
	start := m.state.Cursor
	if start < 0 || start >= len(m.queue) {
		start = 0
	}
	end := min(start+queuePreview+1, len(m.queue))

	var b strings.Builder
	fmt.Fprintf(&b, "Queue (%d/%d)\n", start+1, len(m.queue))
	for i := start; i < end; i++ {
		t := m.queue[i].Track
		if t == nil {
			continue
		}
		line := fmt.Sprintf("%2d. %s - %s", i+1, t.Title, t.ArtistName())
		if i == m.state.Cursor {
			line = styles.current.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
