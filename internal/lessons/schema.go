package lessons

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/store"
)

// LogMistakeToolName is the only tool the tutor may call.
const LogMistakeToolName = "log_mistake"

// LogMistakeTool is declared on every tutor turn.
var LogMistakeTool = llm.Tool{
	Name: LogMistakeToolName,
	Description: "Mandatory error logger. Call it immediately whenever the learner's message contains a " +
		"language mistake, before writing the reply.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"native_lang": map[string]any{
				"type":        "string",
				"description": "The learner's native language, e.g. English",
			},
			"target_lang": map[string]any{
				"type":        "string",
				"description": "The language being learned, e.g. Spanish",
			},
			"error_sentence": map[string]any{
				"type":        "string",
				"description": "The learner's original incorrect sentence, in full",
			},
			"corrected_sentence": map[string]any{
				"type":        "string",
				"description": "The full corrected sentence",
			},
			"error_type": map[string]any{
				"type":        "string",
				"enum":        []any{store.ErrorTypeGrammar, store.ErrorTypeVocabulary, store.ErrorTypePronunciation, store.ErrorTypeSyntax},
				"description": "Error category",
			},
		},
		"required": []any{"error_sentence", "corrected_sentence", "error_type"},
	},
}

// MistakeArgs are the decoded arguments of a log_mistake call.
type MistakeArgs struct {
	NativeLang        string `json:"native_lang"`
	TargetLang        string `json:"target_lang"`
	ErrorSentence     string `json:"error_sentence"`
	CorrectedSentence string `json:"corrected_sentence"`
	ErrorType         string `json:"error_type"`
}

// ParseMistakeArgs validates raw tool arguments against LogMistakeTool and
// decodes them. error_type is trimmed and lower-cased first, so "Grammar"
// logs as grammar.
func ParseMistakeArgs(raw json.RawMessage) (MistakeArgs, error) {
	var args MistakeArgs
	raw = normalizeErrorType(raw)
	if err := llm.ValidateToolArguments(LogMistakeTool, raw); err != nil {
		// Keep whatever decodes so the caller can still echo the pair.
		_ = json.Unmarshal(raw, &args)
		return args, err
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("decode %s arguments: %w", LogMistakeToolName, err)
	}
	return args, nil
}

func normalizeErrorType(raw json.RawMessage) json.RawMessage {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}
	t, ok := fields["error_type"].(string)
	if !ok {
		return raw
	}
	fields["error_type"] = strings.ToLower(strings.TrimSpace(t))
	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}

// Record converts the arguments into a row for the mistake log. Languages the
// model left blank fall back to the lesson's.
func (a MistakeArgs) Record(cfg Config) *store.MistakeRecord {
	native, target := a.NativeLang, a.TargetLang
	if native == "" {
		native = cfg.NativeLanguage
	}
	if target == "" {
		target = cfg.LearningLanguage
	}
	return &store.MistakeRecord{
		NativeLanguage:    native,
		TargetLanguage:    target,
		ErrorSentence:     a.ErrorSentence,
		CorrectedSentence: a.CorrectedSentence,
		ErrorType:         a.ErrorType,
	}
}
