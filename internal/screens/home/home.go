// Package home is the main menu of the tutor.
package home

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/router"
	"github.com/abhisek/parla/internal/screen"
	"github.com/abhisek/parla/internal/screens/chat"
	"github.com/abhisek/parla/internal/screens/mistakes"
	"github.com/abhisek/parla/internal/screens/report"
	"github.com/abhisek/parla/internal/screens/setup"
	"github.com/abhisek/parla/internal/ui/components"
	"github.com/abhisek/parla/internal/ui/layout"
	"github.com/abhisek/parla/internal/ui/theme"
)

const banner = `█▀█ ▄▀█ █▀█ █   ▄▀█
█▀▀ █▀█ █▀▄ █▄▄ █▀█`

const tagline = "Practice a language by talking. Mistakes get logged, not lectured."

// Service is everything the menu entries need.
type Service interface {
	chat.Lessons
	report.Generator
}

// HomeScreen is the main menu.
type HomeScreen struct {
	menu components.Menu
}

var (
	_ screen.Screen          = (*HomeScreen)(nil)
	_ screen.KeyHintProvider = (*HomeScreen)(nil)
)

// New creates the home menu. A nil reader disables the mistake list.
func New(svc Service, reader mistakes.Reader, defaults lessons.Config) *HomeScreen {
	push := func(s screen.Screen) tea.Cmd {
		return func() tea.Msg { return router.PushScreenMsg{Screen: s} }
	}

	items := []components.MenuItem{
		{Label: "Start a lesson", Action: func() tea.Cmd {
			return push(setup.New(svc, defaults))
		}},
		{Label: "Recent mistakes", Disabled: reader == nil, Action: func() tea.Cmd {
			return push(mistakes.New(reader))
		}},
		{Label: "Feedback report", Action: func() tea.Cmd {
			return push(report.New(svc))
		}},
		{Label: "Quit", Action: func() tea.Cmd {
			return tea.Quit
		}},
	}

	return &HomeScreen{menu: components.NewMenu(items)}
}

func (h *HomeScreen) Init() tea.Cmd {
	return nil
}

func (h *HomeScreen) Title() string {
	return "Home"
}

func (h *HomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	title := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(banner)

	sections := []string{
		title,
		theme.Subtitle.Render(tagline),
		theme.Card.Render(strings.TrimRight(h.menu.View(), "\n")),
	}
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
