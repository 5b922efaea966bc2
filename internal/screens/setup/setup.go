// Package setup is the lesson form: languages, proficiency and scenario.
package setup

import (
	"context"
	"errors"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/router"
	"github.com/abhisek/parla/internal/screen"
	"github.com/abhisek/parla/internal/screens/chat"
	"github.com/abhisek/parla/internal/tutor"
	"github.com/abhisek/parla/internal/ui/components"
	"github.com/abhisek/parla/internal/ui/layout"
	"github.com/abhisek/parla/internal/ui/theme"
)

// CustomScenario is the scenario option that reveals a free-text field.
const CustomScenario = "Custom..."

type field int

const (
	fieldNative field = iota
	fieldLearning
	fieldProficiency
	fieldScenario
	fieldCustom
)

// lessonStartedMsg is sent when StartLesson returns.
type lessonStartedMsg struct {
	Lesson *tutor.Lesson
	Err    error
}

// SetupScreen implements screen.Screen for the lesson form.
type SetupScreen struct {
	lessons chat.Lessons

	native      components.TextInput
	learning    components.TextInput
	proficiency components.Choice
	scenario    components.Choice
	custom      components.TextInput

	focus    field
	starting bool
	errMsg   string
}

var (
	_ screen.Screen          = (*SetupScreen)(nil)
	_ screen.KeyHintProvider = (*SetupScreen)(nil)
)

// New creates the form with defaults filled in.
func New(svc chat.Lessons, defaults lessons.Config) *SetupScreen {
	profs := make([]string, len(lessons.Proficiencies))
	for i, p := range lessons.Proficiencies {
		profs[i] = string(p)
	}
	scenarios := append(append([]string{}, lessons.Scenarios...), CustomScenario)

	s := &SetupScreen{
		lessons:     svc,
		native:      components.NewTextInput("e.g. English", 64),
		learning:    components.NewTextInput("e.g. Spanish", 64),
		proficiency: components.NewChoice(profs, string(defaults.Proficiency)),
		scenario:    components.NewChoice(scenarios, defaults.Scenario),
		custom:      components.NewTextInput("Describe a situation to role-play", 200),
	}
	s.native.SetValue(defaults.NativeLanguage)
	s.learning.SetValue(defaults.LearningLanguage)
	s.learning.Blur()
	s.custom.Blur()
	if defaults.Scenario != "" && s.scenario.Value() != defaults.Scenario {
		s.scenario = components.NewChoice(scenarios, CustomScenario)
		s.custom.SetValue(defaults.Scenario)
	}
	return s
}

func (s *SetupScreen) Init() tea.Cmd {
	return s.native.Init()
}

func (s *SetupScreen) Title() string {
	return "New Lesson"
}

func (s *SetupScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Tab/↑↓", Description: "Move"},
		{Key: "←→", Description: "Choose"},
		{Key: "Enter", Description: "Start"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *SetupScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case lessonStartedMsg:
		s.starting = false
		if msg.Err != nil {
			s.errMsg = describeError(msg.Err)
			return s, nil
		}
		return s, func() tea.Msg {
			return router.ReplaceScreenMsg{Screen: chat.New(s.lessons, msg.Lesson)}
		}

	case tea.KeyMsg:
		if s.starting {
			return s, nil
		}
		switch msg.String() {
		case "tab", "down":
			return s, s.move(1)
		case "shift+tab", "up":
			return s, s.move(-1)
		case "enter":
			return s, s.submit()
		}
	}

	var cmd tea.Cmd
	switch s.focus {
	case fieldNative:
		s.native, cmd = s.native.Update(msg)
	case fieldLearning:
		s.learning, cmd = s.learning.Update(msg)
	case fieldProficiency:
		s.proficiency, cmd = s.proficiency.Update(msg)
	case fieldScenario:
		s.scenario, cmd = s.scenario.Update(msg)
	case fieldCustom:
		s.custom, cmd = s.custom.Update(msg)
	}
	return s, cmd
}

func (s *SetupScreen) lastField() field {
	if s.scenario.Value() == CustomScenario {
		return fieldCustom
	}
	return fieldScenario
}

// move shifts focus by delta, wrapping around the visible fields.
func (s *SetupScreen) move(delta int) tea.Cmd {
	n := int(s.lastField()) + 1
	s.focus = field((int(s.focus) + delta + n) % n)

	s.native.Blur()
	s.learning.Blur()
	s.custom.Blur()
	switch s.focus {
	case fieldNative:
		return s.native.Focus()
	case fieldLearning:
		return s.learning.Focus()
	case fieldCustom:
		return s.custom.Focus()
	}
	return nil
}

// Config returns the lesson described by the form.
func (s *SetupScreen) Config() lessons.Config {
	scenario := s.scenario.Value()
	if scenario == CustomScenario {
		scenario = strings.TrimSpace(s.custom.Value())
	}
	return lessons.Config{
		NativeLanguage:   s.native.Value(),
		LearningLanguage: s.learning.Value(),
		Proficiency:      lessons.Proficiency(s.proficiency.Value()),
		Scenario:         scenario,
	}
}

func (s *SetupScreen) submit() tea.Cmd {
	cfg := s.Config()
	if _, err := cfg.Normalize(); err != nil {
		s.errMsg = describeError(err)
		return nil
	}

	s.starting = true
	s.errMsg = ""
	svc := s.lessons
	return func() tea.Msg {
		lesson, err := svc.StartLesson(context.Background(), cfg)
		return lessonStartedMsg{Lesson: lesson, Err: err}
	}
}

func (s *SetupScreen) View(width, height int) string {
	cw := min(layout.ContentWidth(width), 72)

	label := func(f field, text string) string {
		if s.focus == f {
			return theme.Selected.Render("▸ " + text)
		}
		return theme.Unselected.Render("  " + text)
	}

	var b strings.Builder
	b.WriteString(theme.Title.Width(cw).Render("Set up your lesson"))
	b.WriteString("\n\n")
	b.WriteString(label(fieldNative, "I speak") + "\n    " + s.native.View() + "\n\n")
	b.WriteString(label(fieldLearning, "I'm learning") + "\n    " + s.learning.View() + "\n\n")
	b.WriteString(label(fieldProficiency, "Level") + "\n    " + s.proficiency.View(s.focus == fieldProficiency) + "\n\n")
	b.WriteString(label(fieldScenario, "Scenario") + "\n    " + s.scenario.View(s.focus == fieldScenario) + "\n")
	if s.scenario.Value() == CustomScenario {
		b.WriteString("\n" + label(fieldCustom, "Custom scenario") + "\n    " + s.custom.View() + "\n")
	}

	b.WriteString("\n")
	switch {
	case s.starting:
		b.WriteString(theme.Hint.Render("  Starting your lesson..."))
	case s.errMsg != "":
		b.WriteString(theme.ErrorText.Render("  " + s.errMsg))
	default:
		b.WriteString(theme.Hint.Render("  Press Enter to begin."))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		theme.Card.Width(cw).Render(b.String()))
}

func describeError(err error) string {
	var (
		cfgErr   *lessons.ConfigurationError
		modelErr *tutor.ModelInvocationError
	)
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Message
	case errors.As(err, &modelErr):
		return "The tutor couldn't start the lesson. Please try again."
	default:
		return "Could not start the lesson: " + err.Error()
	}
}
