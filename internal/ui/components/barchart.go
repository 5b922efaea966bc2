package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/ui/theme"
)

// BarChart renders a horizontal bar per error type.
type BarChart struct {
	Bars  []feedback.Bar
	Width int
}

// NewBarChart builds a chart from an error-type distribution.
func NewBarChart(dist map[string]int, width int) BarChart {
	return BarChart{Bars: feedback.Bars(dist), Width: width}
}

// View renders the chart. Bars scale to the largest count.
func (c BarChart) View() string {
	if len(c.Bars) == 0 {
		return lipgloss.NewStyle().Foreground(theme.TextDim).Render("No mistakes logged yet.")
	}

	labelWidth, maxCount := 0, 0
	for _, b := range c.Bars {
		labelWidth = max(labelWidth, lipgloss.Width(b.Label))
		maxCount = max(maxCount, b.Count)
	}

	barWidth := c.Width - labelWidth - 8
	if barWidth < 4 {
		barWidth = 4
	}

	lines := make([]string, 0, len(c.Bars))
	for _, b := range c.Bars {
		filled := 0
		if maxCount > 0 {
			filled = b.Count * barWidth / maxCount
		}
		if b.Count > 0 && filled == 0 {
			filled = 1
		}

		label := lipgloss.NewStyle().Foreground(theme.Text).Width(labelWidth).Render(b.Label)
		bar := lipgloss.NewStyle().Foreground(theme.ErrorTypeColor(b.Label)).Render(strings.Repeat("█", filled))
		count := lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf(" %d", b.Count))
		lines = append(lines, label+"  "+bar+count)
	}
	return strings.Join(lines, "\n")
}
