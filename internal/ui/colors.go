package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication. ANSI codes keep output readable on
// both light and dark terminals.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Shared text styles.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	dirStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary)
	linkStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
)

// DisableColors switches every renderer to plain text (--no-color, pipes).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// thresholdColor maps a usage percentage to green, yellow (>=60) or red (>=80).
func thresholdColor(percent float64) lipgloss.Color {
	switch {
	case percent >= 80:
		return ColorError
	case percent >= 60:
		return ColorWarning
	default:
		return ColorSuccess
	}
}
