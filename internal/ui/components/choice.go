package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/parla/internal/ui/theme"
)

// Choice is a single-line selector cycled with left and right.
type Choice struct {
	Options  []string
	Selected int
}

// NewChoice creates a selector with the option equal to initial selected,
// or the first option.
func NewChoice(options []string, initial string) Choice {
	c := Choice{Options: options}
	for i, o := range options {
		if o == initial {
			c.Selected = i
			break
		}
	}
	return c
}

// Update handles left/right navigation, wrapping at both ends.
func (c Choice) Update(msg tea.Msg) (Choice, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || len(c.Options) == 0 {
		return c, nil
	}

	switch kmsg.String() {
	case "left", "h":
		c.Selected = (c.Selected - 1 + len(c.Options)) % len(c.Options)
	case "right", "l":
		c.Selected = (c.Selected + 1) % len(c.Options)
	}
	return c, nil
}

// Value returns the selected option.
func (c Choice) Value() string {
	if c.Selected < 0 || c.Selected >= len(c.Options) {
		return ""
	}
	return c.Options[c.Selected]
}

// View renders all options with the selected one highlighted. focused
// controls whether the selection is drawn in the accent color.
func (c Choice) View(focused bool) string {
	parts := make([]string, 0, len(c.Options))
	for i, o := range c.Options {
		switch {
		case i == c.Selected && focused:
			parts = append(parts, theme.Selected.Render("‹ "+o+" ›"))
		case i == c.Selected:
			parts = append(parts, lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(o))
		default:
			parts = append(parts, lipgloss.NewStyle().Foreground(theme.TextDim).Render(o))
		}
	}
	return strings.Join(parts, "  ")
}
