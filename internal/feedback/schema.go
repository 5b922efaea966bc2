package feedback

import "github.com/abhisek/parla/internal/llm"

// ReportSchema is the structured output requested for a feedback report.
var ReportSchema = &llm.Schema{
	Name:        "feedback-report",
	Description: "Feedback on a language learner's logged mistakes",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"maximum":     100,
				"description": "Overall score from 0 to 100; fewer and milder mistakes score higher",
			},
			"errors": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"mistake": map[string]any{
							"type":        "string",
							"description": "The learner's incorrect sentence",
						},
						"correction": map[string]any{
							"type":        "string",
							"description": "The corrected sentence",
						},
						"explanation": map[string]any{
							"type":        "string",
							"description": "One sentence explaining the rule that was broken",
						},
					},
					"required":             []any{"mistake", "correction", "explanation"},
					"additionalProperties": false,
				},
			},
			"best_practices": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "2-4 habits that help with these kinds of mistakes",
			},
			"suggestions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "2-4 concrete exercises to prevent these mistakes",
			},
			"closing": map[string]any{
				"type":        "string",
				"description": "One motivational closing line, no salutation",
			},
		},
		"required":             []any{"score", "errors", "best_practices", "suggestions", "closing"},
		"additionalProperties": false,
	},
}
