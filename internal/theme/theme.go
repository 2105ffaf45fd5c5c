// Package theme provides the Lip Gloss color palette and reusable styles
// for the live session TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#3b82f6")
	ColorReconnecting = lipgloss.Color("#d97706")
	ColorFailed       = lipgloss.Color("#dc2626")
	ColorOffline      = lipgloss.Color("#6b7280")
)

// Talk balance colors.
var (
	ColorBalanced  = lipgloss.Color("#22c55e")
	ColorMild      = lipgloss.Color("#d97706")
	ColorSevere    = lipgloss.Color("#dc2626")
	ColorWaiting   = lipgloss.Color("#6b7280")
	ColorSpeakerA  = lipgloss.Color("#a855f7")
	ColorSpeakerB  = lipgloss.Color("#06b6d4")
)

// Facilitator activity colors.
var (
	ColorListening   = lipgloss.Color("#2563eb")
	ColorPreparing   = lipgloss.Color("#7c3aed")
	ColorIntervening = lipgloss.Color("#f59e0b")
	ColorAIPaused    = lipgloss.Color("#4b5563")
)

// Intervention priority colors.
var (
	ColorCritical = lipgloss.Color("#dc2626")
	ColorHigh     = lipgloss.Color("#f59e0b")
	ColorMedium   = lipgloss.Color("#3b82f6")
	ColorLow      = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	case "reconnecting":
		return ColorReconnecting
	case "error":
		return ColorFailed
	default:
		return ColorOffline
	}
}

// BalanceColor returns the color for a balance status.
func BalanceColor(status string) lipgloss.Color {
	switch status {
	case "balanced":
		return ColorBalanced
	case "mild_imbalance":
		return ColorMild
	case "severe_imbalance":
		return ColorSevere
	default:
		return ColorWaiting
	}
}

// AIColor returns the color for a facilitator activity.
func AIColor(status string) lipgloss.Color {
	switch status {
	case "listening":
		return ColorListening
	case "preparing":
		return ColorPreparing
	case "intervening":
		return ColorIntervening
	case "paused":
		return ColorAIPaused
	default:
		return ColorDefault
	}
}

// AIGlyph returns a Unicode glyph for a facilitator activity.
func AIGlyph(status string) string {
	switch status {
	case "listening":
		return "◉"
	case "preparing":
		return "◎"
	case "intervening":
		return "●>"
	case "paused":
		return "॥"
	default:
		return "○"
	}
}

// PriorityColor returns the color for a priority name.
func PriorityColor(priority string) lipgloss.Color {
	switch priority {
	case "critical":
		return ColorCritical
	case "high":
		return ColorHigh
	case "medium":
		return ColorMedium
	default:
		return ColorLow
	}
}

// RemainingColor shades the time-remaining readout as the session nears its end.
func RemainingColor(percentComplete float64) lipgloss.Color {
	switch {
	case percentComplete >= 90:
		return ColorDanger
	case percentComplete >= 75:
		return ColorWarning
	default:
		return ColorBright
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleSpinner = lipgloss.NewStyle().
			Foreground(ColorConnecting)
)
