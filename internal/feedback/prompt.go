package feedback

import (
	"fmt"
	"strings"

	"github.com/abhisek/parla/internal/store"
)

const feedbackSystemPrompt = `You are an encouraging language teacher reviewing a learner's recent mistakes. You write concise, specific feedback.`

func buildFeedbackUserMessage(records []store.MistakeRecord) string {
	var b strings.Builder

	b.WriteString("Recent mistakes (newest first):\n")
	for _, m := range records {
		b.WriteString(fmt.Sprintf("- [%s] (%s -> %s) %q -> %q\n",
			m.ErrorType, m.NativeLanguage, m.TargetLanguage, m.ErrorSentence, m.CorrectedSentence))
	}

	b.WriteString(`
Instructions:
1. Give an overall score from 0 to 100 based on how many mistakes there are and how serious they are.
2. Annotate each distinct mistake with its correction and a one-sentence explanation of the rule.
3. List best practices that address these kinds of mistakes.
4. Suggest concrete exercises to prevent them in future.
5. End with one short motivational line.
Do not include greetings, salutations or sign-offs.`)

	return b.String()
}
