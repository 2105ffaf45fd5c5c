// Package status renders the connection status bar.
package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/theme"
)

// Model holds the status bar state. The app copies the connection
// manager's read-only accessors into it after every update.
type Model struct {
	SessionID   string
	State       client.State
	Attempts    int
	MaxAttempts int
	LastError   string
	Delay       time.Duration
	Silence     bool
	Width       int

	spinner spinner.Model
}

// New creates a status bar model.
func New() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.StyleSpinner
	return Model{spinner: s}
}

// Sync copies the manager's observable state.
func (m *Model) Sync(mgr *client.Manager, maxAttempts int) {
	m.SessionID = mgr.SessionID()
	m.State = mgr.State()
	m.Attempts = mgr.Attempts()
	m.LastError = mgr.LastError()
	m.Delay = mgr.PendingDelay()
	m.MaxAttempts = maxAttempts
}

// Busy reports whether the spinner should be animating.
func (m Model) Busy() bool {
	return m.State == client.StateConnecting || m.State == client.StateReconnecting
}

// Tick starts the spinner.
func (m Model) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner. Ticks stop being re-issued once the
// connection settles, and Tick restarts them.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	if !m.Busy() {
		return m, nil
	}
	return m, cmd
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	color := theme.StateColor(m.State.String())
	var connStr string
	switch m.State {
	case client.StateConnected:
		connStr = lipgloss.NewStyle().Foreground(color).Render("● Connected")
	case client.StateConnecting:
		connStr = m.spinner.View() + lipgloss.NewStyle().Foreground(color).Render(" Connecting")
	case client.StateReconnecting:
		label := fmt.Sprintf(" Reconnecting (attempt %d/%d", m.Attempts, m.MaxAttempts)
		if m.Delay > 0 {
			label += fmt.Sprintf(", retry in %s", m.Delay)
		}
		connStr = m.spinner.View() + lipgloss.NewStyle().Foreground(color).Render(label+")")
	case client.StateError:
		connStr = lipgloss.NewStyle().Foreground(color).Render("✗ Error")
	default:
		connStr = lipgloss.NewStyle().Foreground(color).Render("○ Disconnected")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	session := m.SessionID
	if session == "" {
		session = "no session"
	}
	content := connStr + sep + theme.StyleDimmed.Render("session ") + session

	silence := "off"
	if m.Silence {
		silence = "on"
	}
	content += sep + theme.StyleDimmed.Render("silence detection ") + silence

	if m.LastError != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(m.LastError)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
