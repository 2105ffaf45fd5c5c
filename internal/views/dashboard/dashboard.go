// Package dashboard renders the live metrics panel: talk balance, facilitator
// activity, time, goal drift and participant presence.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/metrics"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/theme"
)

const (
	fps        = 60
	labelWidth = 12
	settleGap  = 0.05
)

// FrameMsg advances the balance bar animation.
type FrameMsg struct{}

// Model holds the dashboard state.
type Model struct {
	Width int
	Now   func() time.Time

	snap metrics.Snapshot

	spring    harmonica.Spring
	shareA    float64 // animated position, 0-100
	velocity  float64
	target    float64
	animating bool
}

// New creates a dashboard model.
func New() Model {
	return Model{
		Now:    time.Now,
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.6),
		shareA: 50,
		target: 50,
	}
}

// SetSnapshot replaces the displayed metrics. A changed balance starts the
// bar animation.
func (m *Model) SetSnapshot(s metrics.Snapshot) tea.Cmd {
	m.snap = s
	target := 50.0
	if s.Balance != nil && s.Balance.ParticipantA != nil {
		target = s.Balance.ParticipantA.Percentage
	}
	m.target = target
	if math.Abs(m.shareA-target) < settleGap {
		m.shareA = target
		return nil
	}
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// Update steps the spring on each FrameMsg until it settles.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.animating {
		return m, nil
	}
	m.shareA, m.velocity = m.spring.Update(m.shareA, m.velocity, m.target)
	if math.Abs(m.shareA-m.target) < settleGap && math.Abs(m.velocity) < settleGap {
		m.shareA, m.velocity = m.target, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

// Animating reports whether the balance bar is still moving.
func (m Model) Animating() bool {
	return m.animating
}

// BarPosition is the share of participant A currently drawn.
func (m Model) BarPosition() float64 {
	return m.shareA
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// View renders the panel.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	s := m.snap

	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render(headline(s)) + "\n")
	b.WriteString(m.renderBalance(width-4) + "\n")
	writeRow(&b, "Facilitator", m.renderAI())
	writeRow(&b, "Time left", renderRemaining(s.TimeRemaining))
	writeRow(&b, "Elapsed", formatClock(s.ElapsedSeconds))
	writeRow(&b, "Goal", renderDrift(s))
	writeRow(&b, "People", renderPeople(s))
	writeRow(&b, "Last event", m.renderAge(s.LastEventAt))

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(b.String(), "\n"))
}

func headline(s metrics.Snapshot) string {
	status := string(s.Status)
	if status == "" {
		status = "unknown"
	}
	line := "Session " + status
	if s.FacilitatorPaused {
		line += "  (facilitator paused)"
	}
	return line
}

func (m Model) renderBalance(width int) string {
	bal := m.snap.Balance
	if bal == nil || bal.ParticipantA == nil || bal.ParticipantB == nil {
		status := "waiting for both speakers"
		return lipgloss.NewStyle().Foreground(theme.ColorWaiting).Render("Balance     " + status)
	}

	barWidth := width - 2*labelWidth - 4
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(math.Round(m.shareA / 100 * float64(barWidth)))
	filled = max(0, min(filled, barWidth))

	left := lipgloss.NewStyle().Foreground(theme.ColorSpeakerA).Width(labelWidth).
		Render(fmt.Sprintf("%s %.0f%%", truncate(name(bal.ParticipantA), 7), bal.ParticipantA.Percentage))
	right := lipgloss.NewStyle().Foreground(theme.ColorSpeakerB).Width(labelWidth).Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%% %s", bal.ParticipantB.Percentage, truncate(name(bal.ParticipantB), 7)))
	bar := lipgloss.NewStyle().Foreground(theme.ColorSpeakerA).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.ColorSpeakerB).Render(strings.Repeat("█", barWidth-filled))
	status := lipgloss.NewStyle().Foreground(theme.BalanceColor(string(bal.Status))).
		Render(strings.ReplaceAll(string(bal.Status), "_", " "))

	return left + " " + bar + " " + right + "  " + status
}

func name(p *events.ParticipantShare) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func (m Model) renderAI() string {
	st := string(m.snap.AIStatus.Status)
	if st == "" {
		st = string(events.AIIdle)
	}
	out := lipgloss.NewStyle().Foreground(theme.AIColor(st)).Render(theme.AIGlyph(st) + " " + st)
	if m.snap.AIStatus.Message != "" {
		out += theme.StyleDimmed.Render("  " + m.snap.AIStatus.Message)
	}
	return out
}

func renderRemaining(tr *events.TimeRemaining) string {
	if tr == nil {
		return theme.StyleDimmed.Render("--:--")
	}
	clock := fmt.Sprintf("%02d:%02d", tr.Minutes, tr.Seconds)
	return lipgloss.NewStyle().Foreground(theme.RemainingColor(tr.PercentComplete)).Render(clock) +
		theme.StyleDimmed.Render(fmt.Sprintf("  %.0f%% complete", tr.PercentComplete))
}

func renderDrift(s metrics.Snapshot) string {
	goal := s.Goal
	if s.GoalDrift != nil && s.GoalDrift.OriginalGoal != "" {
		goal = s.GoalDrift.OriginalGoal
	}
	if goal == "" {
		goal = "(none)"
	}
	switch {
	case s.GoalDrift == nil:
		return goal
	case s.GoalDrift.IsOnGoal:
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("on track") + "  " + goal
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorWarning).
			Render("drifting "+formatClock(s.GoalDrift.DriftDurationSeconds)) + "  " + goal
	}
}

func renderPeople(s metrics.Snapshot) string {
	if len(s.Participants) == 0 {
		if len(s.Members) == 0 {
			return theme.StyleDimmed.Render("none yet")
		}
		names := make([]string, 0, len(s.Members))
		for _, p := range s.Members {
			names = append(names, p.Name)
		}
		return theme.StyleDimmed.Render(strings.Join(names, ", "))
	}

	ids := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var parts []string
	for _, id := range ids {
		p := s.Participants[id]
		label := p.Name
		if label == "" {
			label = id
		}
		switch {
		case !p.IsConnected:
			parts = append(parts, theme.StyleDimmed.Render("○ "+label))
		case p.IsSpeaking:
			parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("◉ "+label))
		default:
			parts = append(parts, "● "+label)
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderAge(t time.Time) string {
	if t.IsZero() {
		return theme.StyleDimmed.Render("never")
	}
	return formatAge(m.Now().Sub(t))
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(theme.StyleDimmed.Width(labelWidth).Render(label) + value + "\n")
}

func formatClock(secs int) string {
	if secs < 0 {
		secs = 0
	}
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm ago", int(d.Hours()), int(d.Minutes())%60)
	}
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-1]) + "…"
}
