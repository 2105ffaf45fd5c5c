// Package summary renders the post-session summary as terminal markdown.
package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/theme"
)

// Markdown formats s as a markdown document.
func Markdown(s *client.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session summary\n\n")
	fmt.Fprintf(&b, "*%d minutes, %d interventions*\n\n", s.DurationMinutes, s.InterventionCount)

	if s.ConsensusSummary != "" {
		b.WriteString("## Where you landed\n\n")
		b.WriteString(s.ConsensusSummary + "\n\n")
	}

	if len(s.KeyAgreements) > 0 {
		b.WriteString("## Key agreements\n\n")
		for _, a := range s.KeyAgreements {
			if a.Description != "" {
				fmt.Fprintf(&b, "- **%s**: %s\n", a.Title, a.Description)
			} else {
				fmt.Fprintf(&b, "- **%s**\n", a.Title)
			}
		}
		b.WriteString("\n")
	}

	if len(s.ActionItems) > 0 {
		b.WriteString("## Action items\n\n")
		for _, item := range s.ActionItems {
			fmt.Fprintf(&b, "- [ ] %s\n", item)
		}
		b.WriteString("\n")
	}

	bal := s.Balance
	if bal.ParticipantA.ID != "" || bal.ParticipantB.ID != "" {
		b.WriteString("## Talk balance\n\n")
		b.WriteString("| Participant | Share |\n|---|---|\n")
		fmt.Fprintf(&b, "| %s | %.0f%% |\n", shareName(bal.ParticipantA.Name, bal.ParticipantA.ID), bal.ParticipantA.Percentage)
		fmt.Fprintf(&b, "| %s | %.0f%% |\n", shareName(bal.ParticipantB.Name, bal.ParticipantB.ID), bal.ParticipantB.Percentage)
		if bal.Status != "" {
			fmt.Fprintf(&b, "\nOverall: %s\n", strings.ReplaceAll(string(bal.Status), "_", " "))
		}
	}
	return b.String()
}

func shareName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// Render renders markdown for a terminal of the given width. style is a
// glamour standard style name ("dark", "light", "notty", ...) or "auto".
func Render(md string, width int, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("summary renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return out, nil
}

// Model is the scrollable summary overlay.
type Model struct {
	Style string

	viewport viewport.Model
	summary  *client.Summary
	loading  bool
	err      error
}

// New creates an empty summary view.
func New(style string) Model {
	return Model{Style: style, viewport: viewport.New(80, 20)}
}

// SetLoading marks a fetch in flight.
func (m *Model) SetLoading() {
	m.loading = true
	m.err = nil
}

// SetSummary renders s into the viewport.
func (m *Model) SetSummary(s *client.Summary) {
	m.loading = false
	m.summary = s
	m.err = nil
	m.refresh()
}

// SetError records a failed fetch.
func (m *Model) SetError(err error) {
	m.loading = false
	m.err = err
}

// SetSize resizes the viewport and re-wraps the content.
func (m *Model) SetSize(width, height int) {
	m.viewport.Width = max(20, width-4)
	m.viewport.Height = max(5, height-6)
	m.refresh()
}

func (m *Model) refresh() {
	if m.summary == nil {
		return
	}
	out, err := Render(Markdown(m.summary), m.viewport.Width, m.Style)
	if err != nil {
		m.err = err
		return
	}
	m.viewport.SetContent(out)
	m.viewport.GotoTop()
}

// Update forwards scrolling keys to the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the overlay.
func (m Model) View() string {
	title := theme.StyleHeader.Render(" SUMMARY ")
	help := theme.StyleDimmed.Render("j/k:scroll  esc:close")

	var body string
	switch {
	case m.loading:
		body = theme.StyleDimmed.Render("  Loading summary...")
	case m.err != nil:
		body = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("  " + m.err.Error())
	case m.summary == nil:
		body = theme.StyleDimmed.Render("  No summary yet.")
	default:
		body = m.viewport.View()
	}

	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body, help))
}
