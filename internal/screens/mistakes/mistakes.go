// Package mistakes lists the most recent entries of the mistake log.
package mistakes

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/screen"
	"github.com/abhisek/parla/internal/store"
	"github.com/abhisek/parla/internal/ui/components"
	"github.com/abhisek/parla/internal/ui/layout"
	"github.com/abhisek/parla/internal/ui/theme"
)

// Limit is how many mistakes the screen shows.
const Limit = 10

// Reader reads the mistake log.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]store.MistakeRecord, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

type loadedMsg struct {
	Records []store.MistakeRecord
	Dist    map[string]int
	Err     error
}

// MistakesScreen implements screen.Screen for the mistake list.
type MistakesScreen struct {
	reader  Reader
	records []store.MistakeRecord
	dist    map[string]int
	loaded  bool
	err     error
}

var (
	_ screen.Screen          = (*MistakesScreen)(nil)
	_ screen.KeyHintProvider = (*MistakesScreen)(nil)
)

func New(reader Reader) *MistakesScreen {
	return &MistakesScreen{reader: reader}
}

func (m *MistakesScreen) Init() tea.Cmd {
	return m.load()
}

func (m *MistakesScreen) load() tea.Cmd {
	reader := m.reader
	return func() tea.Msg {
		ctx := context.Background()
		records, err := reader.Recent(ctx, Limit)
		if err != nil {
			return loadedMsg{Err: err}
		}
		dist, err := reader.CountByType(ctx)
		return loadedMsg{Records: records, Dist: dist, Err: err}
	}
}

func (m *MistakesScreen) Title() string {
	return "Recent Mistakes"
}

func (m *MistakesScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "R", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

func (m *MistakesScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loaded = true
		m.records, m.dist, m.err = msg.Records, msg.Dist, msg.Err
	case tea.KeyMsg:
		if msg.String() == "r" {
			m.loaded = false
			return m, m.load()
		}
	}
	return m, nil
}

func (m *MistakesScreen) View(width, height int) string {
	cw := layout.ContentWidth(width)

	switch {
	case !m.loaded:
		return theme.Hint.Render("\n  Loading mistakes...")
	case m.err != nil:
		return theme.ErrorText.Render("\n  Could not load mistakes: " + m.err.Error())
	case len(m.records) == 0:
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			theme.Subtitle.Render("No mistakes logged yet. Start a lesson to practice!"))
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, r := range m.records {
		head := fmt.Sprintf("  %2d. ", i+1)
		wrong := theme.ErrorText.Render("✗ " + r.ErrorSentence)
		right := lipgloss.NewStyle().Foreground(theme.Success).Render("✓ " + r.CorrectedSentence)
		meta := theme.Hint.Render(fmt.Sprintf("[%s] %s → %s · %s",
			r.ErrorType, r.NativeLanguage, r.TargetLanguage, r.Timestamp.Local().Format("Jan 2 15:04")))

		b.WriteString(head + wrong + "\n")
		b.WriteString("      " + right + "\n")
		b.WriteString("      " + meta + "\n\n")
	}

	b.WriteString(theme.Body.Bold(true).Render("  All-time by type") + "\n\n")
	chart := components.NewBarChart(m.dist, cw-4).View()
	for _, line := range strings.Split(chart, "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}
