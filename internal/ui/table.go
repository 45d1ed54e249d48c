package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table is a static, column-aligned table for CLI output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow appends a row. Cells may carry lipgloss styling; widths are
// measured on the visible text.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render lays the table out with two spaces between columns and a rule
// under the header. The last column is never padded.
func (t *Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var sb strings.Builder
	header := make([]string, len(t.Headers))
	total := 0
	for i, h := range t.Headers {
		header[i] = headerStyle.Render(h)
		total += widths[i]
	}
	total += 2 * (len(widths) - 1)
	sb.WriteString(joinRow(header, widths))
	sb.WriteString(mutedStyle.Render(strings.Repeat("─", max(total, 0))))
	sb.WriteString("\n")

	for _, row := range t.Rows {
		sb.WriteString(joinRow(row, widths))
	}
	return sb.String()
}

func joinRow(cells []string, widths []int) string {
	var sb strings.Builder
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		if i > 0 {
			sb.WriteString("  ")
		}
		if i == len(widths)-1 || i == len(cells)-1 {
			sb.WriteString(cell)
			continue
		}
		sb.WriteString(padRight(cell, widths[i]))
	}
	sb.WriteString("\n")
	return sb.String()
}

// padRight pads s to width visible cells, ignoring ANSI escape codes.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
