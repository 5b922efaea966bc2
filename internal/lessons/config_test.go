package lessons

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    Config
		wantErr bool
	}{
		{
			name: "defaults filled",
			cfg:  Config{NativeLanguage: " English ", LearningLanguage: "Spanish"},
			want: Config{NativeLanguage: "English", LearningLanguage: "Spanish", Proficiency: Beginner, Scenario: "Restaurant"},
		},
		{
			name: "case-insensitive proficiency",
			cfg:  Config{NativeLanguage: "English", LearningLanguage: "French", Proficiency: "advanced", Scenario: "Hotel"},
			want: Config{NativeLanguage: "English", LearningLanguage: "French", Proficiency: Advanced, Scenario: "Hotel"},
		},
		{
			name: "free-form scenario",
			cfg:  Config{NativeLanguage: "German", LearningLanguage: "Italian", Proficiency: Intermediate, Scenario: "Train station"},
			want: Config{NativeLanguage: "German", LearningLanguage: "Italian", Proficiency: Intermediate, Scenario: "Train station"},
		},
		{name: "missing native", cfg: Config{LearningLanguage: "Spanish"}, wantErr: true},
		{name: "missing learning", cfg: Config{NativeLanguage: "English", LearningLanguage: "   "}, wantErr: true},
		{name: "unknown proficiency", cfg: Config{NativeLanguage: "English", LearningLanguage: "Spanish", Proficiency: "Expert"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Normalize()
			if tt.wantErr {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfigNormalize_MissingLanguageMessage(t *testing.T) {
	_, err := Config{NativeLanguage: "English"}.Normalize()
	if err == nil || err.Error() != "Please specify both languages" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestParseMistakeArgs(t *testing.T) {
	raw := json.RawMessage(`{"native_lang":"English","target_lang":"Spanish","error_sentence":"Yo quiero dos cafe","corrected_sentence":"Yo quiero dos cafés","error_type":"grammar"}`)
	args, err := ParseMistakeArgs(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.CorrectedSentence != "Yo quiero dos cafés" || args.ErrorType != "grammar" {
		t.Fatalf("unexpected args: %+v", args)
	}

	args, err = ParseMistakeArgs(json.RawMessage(`{"error_sentence":"x","corrected_sentence":"y","error_type":"spelling"}`))
	if err == nil {
		t.Fatal("expected validation error for unknown error type")
	}
	if args.ErrorSentence != "x" || args.CorrectedSentence != "y" {
		t.Fatalf("expected partial decode on validation failure, got %+v", args)
	}
}

func TestParseMistakeArgs_NormalizesErrorTypeCase(t *testing.T) {
	for _, in := range []string{"Grammar", " VOCABULARY ", "Syntax"} {
		raw, _ := json.Marshal(map[string]string{
			"error_sentence":     "Yo quiero dos cafe",
			"corrected_sentence": "Yo quiero dos cafés",
			"error_type":         in,
		})
		args, err := ParseMistakeArgs(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if want := strings.ToLower(strings.TrimSpace(in)); args.ErrorType != want {
			t.Fatalf("%q: error type = %q, want %q", in, args.ErrorType, want)
		}
	}
}

func TestMistakeArgsRecord_FallsBackToLessonLanguages(t *testing.T) {
	rec := MistakeArgs{ErrorSentence: "a", CorrectedSentence: "b", ErrorType: "syntax"}.Record(spanishLesson())
	if rec.NativeLanguage != "English" || rec.TargetLanguage != "Spanish" {
		t.Fatalf("unexpected languages: %+v", rec)
	}
}
