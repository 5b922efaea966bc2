package lessons

import (
	"fmt"
	"strings"

	"github.com/abhisek/parla/internal/llm"
)

// FollowUpPrompt is sent once, without being stored, when the model answers
// a turn with tool calls only.
const FollowUpPrompt = "Continue the conversation naturally"

// KickoffPrompt is the hidden first user turn that makes the tutor open the
// lesson.
func KickoffPrompt(scenario string) string {
	return fmt.Sprintf("Begin the %s scenario", scenario)
}

// SystemPrompt renders the tutor instructions for cfg.
func SystemPrompt(cfg Config) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are a %s language tutor. Follow these rules strictly.\n", cfg.LearningLanguage))

	b.WriteString(fmt.Sprintf(`
1. Mistake handling (highest priority):
   When the learner's message contains an error:
   a. Immediately call the %s tool with the exact erroneous sentence, the full corrected sentence,
      and the error type (grammar, vocabulary, pronunciation or syntax).
   b. Show the correction as: (Note: [Mistake] → [Correction])
   c. Continue the conversation naturally.
`, LogMistakeToolName))

	b.WriteString(fmt.Sprintf(`
2. Response structure:
   (Note: [Mistake] → [Correction]) only when there was a mistake
   [Follow-up in %s]
   ([%s translation])
`, cfg.LearningLanguage, cfg.NativeLanguage))

	b.WriteString(`
3. Prohibited:
   - Never mention that mistakes are being logged.
   - Never wait for confirmation after a correction.
   - Never break the conversation flow for logging.
`)

	b.WriteString(fmt.Sprintf(`
4. Adaptation:
   - Proficiency: %s
   - Scenario: %s (stay within it)
   - Native language: %s
   - Question style: %s
`, cfg.Proficiency, cfg.Scenario, cfg.NativeLanguage, questionStyle(cfg.Proficiency)))

	return b.String()
}

func questionStyle(p Proficiency) string {
	switch p {
	case Intermediate:
		return "fill-in-the-blank questions with one missing word or phrase"
	case Advanced:
		return "open-ended prompts that ask for full-sentence answers"
	default:
		return "multiple-choice questions where exactly one of the options is deliberately wrong"
	}
}

// BuildRequest assembles a tutor turn: system instructions, the full
// history, then the new user message. The log_mistake tool is always
// declared with automatic tool choice.
func BuildRequest(cfg Config, gen GenerationConfig, history []llm.Message, utterance string) llm.Request {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: utterance})

	return llm.Request{
		System:      SystemPrompt(cfg),
		Messages:    msgs,
		Tools:       []llm.Tool{LogMistakeTool},
		ToolChoice:  llm.ToolChoiceAuto,
		MaxTokens:   gen.MaxTokens,
		Temperature: gen.Temperature,
	}
}

// BuildFollowUpRequest asks for visible text after a tool-only reply. The
// tool stays declared so earlier tool calls remain valid, but the model may
// not call it again.
func BuildFollowUpRequest(cfg Config, gen GenerationConfig, history []llm.Message) llm.Request {
	req := BuildRequest(cfg, gen, history, FollowUpPrompt)
	req.ToolChoice = llm.ToolChoiceNone
	return req
}
