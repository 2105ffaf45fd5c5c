// Package overlay renders the intervention flyout shown over the metrics
// panel while an intervention is current.
package overlay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/interventions"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/theme"
)

const (
	panelWidth = 64
	labelWidth = 10
)

var (
	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleMessage = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright).
			Width(panelWidth - 4)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model is the read model the overlay draws from.
type Model struct {
	Current     events.InterventionWithMeta
	Visible     bool
	QueueDepth  int
	Cooldown    bool
	AutoDismiss time.Duration
}

// FromScheduler captures the scheduler's read model.
func FromScheduler(s *interventions.Scheduler) Model {
	cur, ok := s.Current()
	return Model{
		Current:     cur,
		Visible:     ok,
		QueueDepth:  len(s.Queue()),
		Cooldown:    s.InCooldown(),
		AutoDismiss: s.AutoDismissPending(),
	}
}

// View renders the panel, or an empty string when nothing is current.
func (m Model) View() string {
	if !m.Visible {
		return ""
	}
	iv := m.Current
	color := theme.PriorityColor(iv.Priority.String())

	var b strings.Builder
	title := lipgloss.NewStyle().Bold(true).Foreground(color).
		Render(strings.ToUpper(strings.ReplaceAll(string(iv.Type), "_", " ")))
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")
	b.WriteString(styleMessage.Render(iv.Message) + "\n\n")

	writeRow(&b, "Priority", lipgloss.NewStyle().Foreground(color).Render(iv.Priority.String()))
	writeRow(&b, "Modality", string(iv.Modality))
	if iv.TargetParticipant != "" {
		writeRow(&b, "For", iv.TargetParticipant)
	}
	if !iv.CreatedAt.IsZero() {
		writeRow(&b, "Sent", iv.CreatedAt.Local().Format("15:04:05"))
	}
	if m.AutoDismiss > 0 {
		writeRow(&b, "Closes", fmt.Sprintf("after %s", m.AutoDismiss))
	}

	var notes []string
	if m.QueueDepth > 0 {
		notes = append(notes, fmt.Sprintf("+%d queued", m.QueueDepth))
	}
	if m.Cooldown {
		notes = append(notes, "cooldown")
	}
	if len(notes) > 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(strings.Join(notes, "  ")) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render("[a] acknowledge  [x] dismiss"))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(panelWidth).
		Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}
