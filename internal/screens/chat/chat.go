// Package chat is the lesson screen: a transcript, an input line and a
// thinking indicator while the tutor answers.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/screen"
	"github.com/abhisek/parla/internal/store"
	"github.com/abhisek/parla/internal/tutor"
	"github.com/abhisek/parla/internal/ui/components"
	"github.com/abhisek/parla/internal/ui/layout"
)

// Lessons is the part of tutor.Service the lesson screens drive.
type Lessons interface {
	StartLesson(ctx context.Context, cfg lessons.Config) (*tutor.Lesson, error)
	Turn(ctx context.Context, sessionID, text string) (*tutor.TurnResult, error)
	Feedback(ctx context.Context, sessionID string) (*feedback.Report, error)
	EndLesson(ctx context.Context, sessionID string) error
}

var _ Lessons = (*tutor.Service)(nil)

// entry is one rendered transcript line group.
type entry struct {
	Role   llm.Role
	Text   string
	Logged []store.MistakeRecord
}

// ChatScreen implements screen.Screen for a running lesson.
type ChatScreen struct {
	lessons   Lessons
	sessionID string
	cfg       lessons.Config

	entries []entry
	input   components.TextInput
	busy    bool
	frame   int
	scroll  int
	errMsg  string
	closed  bool

	logger *zap.Logger
}

var (
	_ screen.Screen          = (*ChatScreen)(nil)
	_ screen.KeyHintProvider = (*ChatScreen)(nil)
	_ screen.Closer          = (*ChatScreen)(nil)
)

// New creates a ChatScreen for a lesson that StartLesson already opened.
func New(svc Lessons, lesson *tutor.Lesson) *ChatScreen {
	c := &ChatScreen{
		lessons:   svc,
		sessionID: lesson.SessionID,
		cfg:       lesson.Config,
		input:     components.NewTextInput("Type in "+lesson.Config.LearningLanguage+"...", 500),
		logger:    zap.L(),
	}
	for _, m := range lesson.Messages {
		c.entries = append(c.entries, entry{Role: m.Role, Text: m.Content})
	}
	return c
}

func (c *ChatScreen) Init() tea.Cmd {
	return c.input.Init()
}

func (c *ChatScreen) Title() string {
	return "Lesson"
}

func (c *ChatScreen) KeyHints() []layout.KeyHint {
	if c.busy {
		return []layout.KeyHint{
			{Key: "Esc", Description: "End lesson"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Ctrl+F", Description: "Feedback"},
		{Key: "PgUp/PgDn", Description: "Scroll"},
		{Key: "Esc", Description: "End lesson"},
	}
}

func (c *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case turnDoneMsg:
		return c.handleTurnDone(msg)

	case feedbackDoneMsg:
		return c.handleFeedbackDone(msg)

	case spinnerTickMsg:
		if !c.busy {
			return c, nil
		}
		c.frame++
		return c, spinnerTick()

	case tea.KeyMsg:
		return c.handleKey(msg)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "pgup":
		c.scroll += 5
		return c, nil
	case "pgdown":
		c.scroll = max(c.scroll-5, 0)
		return c, nil
	}

	if c.busy {
		return c, nil
	}

	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(c.input.Value())
		if text == "" {
			return c, nil
		}
		c.input.Reset()
		c.entries = append(c.entries, entry{Role: llm.RoleUser, Text: text})
		return c, c.startCall(c.turnCmd(text))

	case "ctrl+f":
		return c, c.startCall(c.feedbackCmd())
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ChatScreen) startCall(call tea.Cmd) tea.Cmd {
	c.busy = true
	c.frame = 0
	c.scroll = 0
	c.errMsg = ""
	return tea.Batch(call, spinnerTick())
}

func (c *ChatScreen) handleTurnDone(msg turnDoneMsg) (screen.Screen, tea.Cmd) {
	c.busy = false
	if msg.Err != nil {
		c.errMsg = describeError(msg.Err)
		return c, nil
	}
	c.entries = append(c.entries, entry{
		Role:   llm.RoleAssistant,
		Text:   msg.Result.Reply,
		Logged: msg.Result.Logged,
	})
	return c, nil
}

// handleFeedbackDone mirrors the service: the lesson history is replaced by
// the report, so the transcript is too.
func (c *ChatScreen) handleFeedbackDone(msg feedbackDoneMsg) (screen.Screen, tea.Cmd) {
	c.busy = false
	if msg.Err != nil {
		c.errMsg = describeError(msg.Err)
		return c, nil
	}
	c.entries = []entry{{Role: llm.RoleAssistant, Text: msg.Report.Text}}
	return c, nil
}

// Close ends the lesson on the service. Safe to call more than once.
func (c *ChatScreen) Close() tea.Cmd {
	if c.closed {
		return nil
	}
	c.closed = true
	svc, id, logger := c.lessons, c.sessionID, c.logger
	return func() tea.Msg {
		if err := svc.EndLesson(context.Background(), id); err != nil {
			logger.Warn("failed to end lesson", zap.String("session_id", id), zap.Error(err))
		}
		return nil
	}
}

func (c *ChatScreen) turnCmd(text string) tea.Cmd {
	svc, id := c.lessons, c.sessionID
	return func() tea.Msg {
		result, err := svc.Turn(context.Background(), id, text)
		return turnDoneMsg{Result: result, Err: err}
	}
}

func (c *ChatScreen) feedbackCmd() tea.Cmd {
	svc, id := c.lessons, c.sessionID
	return func() tea.Msg {
		report, err := svc.Feedback(context.Background(), id)
		return feedbackDoneMsg{Report: report, Err: err}
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// describeError turns service errors into one line for the learner.
func describeError(err error) string {
	var modelErr *tutor.ModelInvocationError
	switch {
	case errors.As(err, &modelErr):
		return "The tutor couldn't answer right now. Please try again."
	case errors.Is(err, tutor.ErrEmptyMessage):
		return "Type something first."
	default:
		return "Something went wrong: " + err.Error()
	}
}
