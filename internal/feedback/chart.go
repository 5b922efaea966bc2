package feedback

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/parla/internal/store"
)

// Bar is one row of the distribution chart.
type Bar struct {
	Label string
	Count int
}

// Bars orders a distribution for display: known error types first in their
// canonical order, then anything else alphabetically.
func Bars(dist map[string]int) []Bar {
	var bars []Bar
	for _, t := range store.ErrorTypes {
		if n := dist[t]; n > 0 {
			bars = append(bars, Bar{Label: t, Count: n})
		}
	}

	var extra []string
	for t, n := range dist {
		if n > 0 && !store.ValidErrorType(t) {
			extra = append(extra, t)
		}
	}
	slices.Sort(extra)
	for _, t := range extra {
		bars = append(bars, Bar{Label: t, Count: dist[t]})
	}
	return bars
}

// PlainChart renders a distribution as a fixed-width text bar chart.
func PlainChart(dist map[string]int, width int) string {
	bars := Bars(dist)
	if len(bars) == 0 {
		return ""
	}

	maxCount, labelWidth := 0, 0
	for _, b := range bars {
		maxCount = max(maxCount, b.Count)
		labelWidth = max(labelWidth, len(b.Label))
	}

	var sb strings.Builder
	for _, b := range bars {
		n := max(b.Count*width/maxCount, 1)
		sb.WriteString(fmt.Sprintf("%-*s %s %d\n", labelWidth, b.Label, strings.Repeat("█", n), b.Count))
	}
	return sb.String()
}
