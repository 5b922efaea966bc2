// Package report shows the feedback report built from the mistake log.
package report

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/screen"
	"github.com/abhisek/parla/internal/ui/components"
	"github.com/abhisek/parla/internal/ui/layout"
	"github.com/abhisek/parla/internal/ui/theme"
)

// Generator produces a feedback report. An empty session ID asks for the
// report without touching any lesson.
type Generator interface {
	Feedback(ctx context.Context, sessionID string) (*feedback.Report, error)
}

type reportMsg struct {
	Report *feedback.Report
	Err    error
}

// ReportScreen implements screen.Screen for the feedback report.
type ReportScreen struct {
	gen    Generator
	report *feedback.Report
	err    error
	busy   bool
	scroll int
}

var (
	_ screen.Screen          = (*ReportScreen)(nil)
	_ screen.KeyHintProvider = (*ReportScreen)(nil)
)

func New(gen Generator) *ReportScreen {
	return &ReportScreen{gen: gen}
}

func (r *ReportScreen) Init() tea.Cmd {
	return r.generate()
}

func (r *ReportScreen) generate() tea.Cmd {
	r.busy = true
	r.err = nil
	gen := r.gen
	return func() tea.Msg {
		rep, err := gen.Feedback(context.Background(), "")
		return reportMsg{Report: rep, Err: err}
	}
}

func (r *ReportScreen) Title() string {
	return "Feedback Report"
}

func (r *ReportScreen) KeyHints() []layout.KeyHint {
	if r.busy {
		return []layout.KeyHint{{Key: "Esc", Description: "Back"}}
	}
	return []layout.KeyHint{
		{Key: "R", Description: "Regenerate"},
		{Key: "↑↓", Description: "Scroll"},
		{Key: "Esc", Description: "Back"},
	}
}

func (r *ReportScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case reportMsg:
		r.busy = false
		r.report, r.err = msg.Report, msg.Err
		r.scroll = 0
	case tea.KeyMsg:
		if r.busy {
			return r, nil
		}
		switch msg.String() {
		case "r":
			return r, r.generate()
		case "up", "k":
			r.scroll = max(r.scroll-1, 0)
		case "down", "j":
			r.scroll++
		}
	}
	return r, nil
}

func (r *ReportScreen) View(width, height int) string {
	cw := layout.ContentWidth(width)

	switch {
	case r.busy:
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			theme.Hint.Render("Reviewing your mistakes..."))
	case r.err != nil:
		return theme.ErrorText.Render("\n  Could not generate feedback: " + r.err.Error())
	case r.report == nil:
		return ""
	}

	lines := r.lines(cw)
	r.scroll = min(r.scroll, max(len(lines)-height, 0))
	end := min(r.scroll+height, len(lines))
	return strings.Join(lines[r.scroll:end], "\n")
}

func (r *ReportScreen) lines(cw int) []string {
	rep := r.report
	var b strings.Builder
	b.WriteString("\n")

	if !rep.Empty() {
		score := lipgloss.NewStyle().Bold(true).Foreground(scoreColor(rep.Score)).
			Render(fmt.Sprintf("%d/100", rep.Score))
		b.WriteString(fmt.Sprintf("  Score: %s  %s\n\n", score,
			theme.Hint.Render(fmt.Sprintf("based on %d mistakes", rep.MistakeCount))))
	}

	for _, line := range strings.Split(layout.Wrap(rep.Text, cw-4), "\n") {
		b.WriteString("  " + theme.Body.Render(line) + "\n")
	}

	if len(rep.Distribution) > 0 {
		b.WriteString("\n" + theme.Body.Bold(true).Render("  Error distribution") + "\n\n")
		for _, line := range strings.Split(components.NewBarChart(rep.Distribution, cw-4).View(), "\n") {
			b.WriteString("  " + line + "\n")
		}
	}
	return strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
}

func scoreColor(score int) color.Color {
	switch {
	case score >= 80:
		return theme.Success
	case score >= 50:
		return theme.Accent
	default:
		return theme.Error
	}
}
