package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	barFilled = '█'
	barEmpty  = '░'
)

// sparkLevels are the eight sparkline heights, lowest first.
var sparkLevels = []rune("▁▂▃▄▅▆▇█")

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// UsageBar renders percent as a width-cell bar followed by the number:
//
//	[████████░░░░]  67%
//
// The bar is colored by threshold. A non-positive width renders nothing.
func UsageBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	percent = clampPercent(percent)
	filled := int(percent / 100 * float64(width))

	var sb strings.Builder
	sb.WriteRune('[')
	sb.WriteString(strings.Repeat(string(barFilled), filled))
	sb.WriteString(strings.Repeat(string(barEmpty), width-filled))
	sb.WriteRune(']')

	style := lipgloss.NewStyle().Foreground(thresholdColor(percent))
	return style.Render(sb.String()) + fmt.Sprintf(" %3.0f%%", percent)
}

// Sparkline renders the last width percentages of history on a fixed 0-100
// scale, colored by the most recent value.
func Sparkline(history []float64, width int) string {
	if len(history) == 0 || width <= 0 {
		return ""
	}
	if len(history) > width {
		history = history[len(history)-width:]
	}

	top := len(sparkLevels) - 1
	var sb strings.Builder
	for _, v := range history {
		level := int(clampPercent(v) / 100 * float64(top))
		sb.WriteRune(sparkLevels[level])
	}

	last := history[len(history)-1]
	return lipgloss.NewStyle().Foreground(thresholdColor(last)).Render(sb.String())
}
