package chat

import (
	"fmt"
	"regexp"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/ui/layout"
	"github.com/abhisek/parla/internal/ui/theme"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// noteRe matches the inline correction format "(Note: wrong → right)".
var noteRe = regexp.MustCompile(`\(Note:[^)]*\)`)

func (c *ChatScreen) View(width, height int) string {
	cw := layout.ContentWidth(width)

	info := lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %s → %s · %s · %s",
		c.cfg.NativeLanguage, c.cfg.LearningLanguage, c.cfg.Proficiency, c.cfg.Scenario))
	rule := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", cw))

	var footer []string
	switch {
	case c.busy:
		footer = append(footer, theme.Hint.Render(fmt.Sprintf("  %s The tutor is thinking...",
			spinnerFrames[c.frame%len(spinnerFrames)])))
	case c.errMsg != "":
		footer = append(footer, theme.ErrorText.Render("  "+c.errMsg))
	default:
		footer = append(footer, "")
	}
	footer = append(footer, rule, "  "+c.input.View())

	bodyHeight := max(height-2-len(footer), 1)
	lines := c.transcriptLines(cw)
	body := visibleWindow(lines, bodyHeight, c.scroll)

	return strings.Join(append(append([]string{info, rule}, body...), footer...), "\n")
}

// transcriptLines renders every entry, wrapped to width.
func (c *ChatScreen) transcriptLines(width int) []string {
	var lines []string
	for _, e := range c.entries {
		var b strings.Builder
		switch e.Role {
		case llm.RoleUser:
			b.WriteString(theme.Learner.Render("You"))
			b.WriteString("\n")
			b.WriteString(theme.Body.Render(layout.Wrap(e.Text, width-2)))
		default:
			b.WriteString(theme.Tutor.Render("Tutor"))
			b.WriteString("\n")
			b.WriteString(highlightNotes(layout.Wrap(e.Text, width-2)))
		}
		for _, m := range e.Logged {
			b.WriteString("\n")
			b.WriteString(theme.Logged.Render(fmt.Sprintf("✎ logged %s: %s → %s",
				m.ErrorType, m.ErrorSentence, m.CorrectedSentence)))
		}
		for _, l := range strings.Split(b.String(), "\n") {
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")
	}
	return lines
}

// highlightNotes styles correction notes; the rest of the text is plain.
func highlightNotes(text string) string {
	return noteRe.ReplaceAllStringFunc(text, func(note string) string {
		return theme.Note.Render(note)
	})
}

// visibleWindow returns the height lines that end scroll lines above the
// bottom, padded at the top when the transcript is short.
func visibleWindow(lines []string, height, scroll int) []string {
	end := max(len(lines)-scroll, min(height, len(lines)))
	start := max(end-height, 0)
	out := make([]string, 0, height)
	for range height - (end - start) {
		out = append(out, "")
	}
	return append(out, lines[start:end]...)
}
