// Package feedback turns the mistake log into a scored report with an
// error-type distribution.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/store"
)

// RecentLimit bounds how many mistakes feed one report.
const RecentLimit = 50

// NoMistakesMessage is the report text when nothing has been logged.
const NoMistakesMessage = "No errors logged yet. Keep practicing and check back for feedback!"

// AnnotatedError is one mistake explained by the model.
type AnnotatedError struct {
	Mistake     string `json:"mistake"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// Report is the result of Generate.
type Report struct {
	Text          string           `json:"text"`
	Score         int              `json:"score"`
	MistakeCount  int              `json:"mistake_count"`
	Distribution  map[string]int   `json:"distribution"`
	Errors        []AnnotatedError `json:"errors,omitempty"`
	BestPractices []string         `json:"best_practices,omitempty"`
	Suggestions   []string         `json:"suggestions,omitempty"`
	Closing       string           `json:"closing,omitempty"`
}

// Empty reports whether the report was produced without any mistakes.
func (r *Report) Empty() bool {
	return r.MistakeCount == 0
}

// Config holds feedback generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for feedback generation.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.3,
	}
}

// Aggregator builds feedback reports. It only reads from the mistake log.
type Aggregator struct {
	provider llm.Provider
	mistakes store.MistakeLog
	cfg      Config
	logger   *zap.Logger
}

// NewAggregator creates an Aggregator. A nil logger disables logging.
func NewAggregator(provider llm.Provider, mistakes store.MistakeLog, cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{provider: provider, mistakes: mistakes, cfg: cfg, logger: logger}
}

type reportOutput struct {
	Score         int              `json:"score"`
	Errors        []AnnotatedError `json:"errors"`
	BestPractices []string         `json:"best_practices"`
	Suggestions   []string         `json:"suggestions"`
	Closing       string           `json:"closing"`
}

// Generate reads the most recent mistakes and asks the model for a report.
// With no mistakes it returns NoMistakesMessage without calling the model.
func (a *Aggregator) Generate(ctx context.Context) (*Report, error) {
	records, err := a.mistakes.Recent(ctx, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("load mistakes: %w", err)
	}

	if len(records) == 0 {
		return &Report{Text: NoMistakesMessage, Distribution: map[string]int{}}, nil
	}

	ctx = llm.WithPurpose(ctx, "feedback")
	resp, err := a.provider.Generate(ctx, llm.Request{
		System: feedbackSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildFeedbackUserMessage(records)},
		},
		Schema:      ReportSchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("feedback generation: %w", err)
	}

	var out reportOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse feedback response: %w", err)
	}

	report := &Report{
		Score:         clampScore(out.Score),
		MistakeCount:  len(records),
		Distribution:  Distribution(records),
		Errors:        out.Errors,
		BestPractices: out.BestPractices,
		Suggestions:   out.Suggestions,
		Closing:       out.Closing,
	}
	report.Text = Render(report)

	a.logger.Debug("feedback report generated",
		zap.Int("mistakes", report.MistakeCount),
		zap.Int("score", report.Score),
	)
	return report, nil
}

// Distribution counts mistakes per error type.
func Distribution(records []store.MistakeRecord) map[string]int {
	dist := make(map[string]int)
	for _, m := range records {
		dist[m.ErrorType]++
	}
	return dist
}

func clampScore(s int) int {
	return min(max(s, 0), 100)
}

// Render formats a report as markdown.
func Render(r *Report) string {
	if r.Empty() {
		return NoMistakesMessage
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("## Score: %d/100\n", r.Score))

	if len(r.Errors) > 0 {
		b.WriteString("\n### Errors\n")
		for _, e := range r.Errors {
			b.WriteString(fmt.Sprintf("- **%s** → **%s**", e.Mistake, e.Correction))
			if e.Explanation != "" {
				b.WriteString(": " + e.Explanation)
			}
			b.WriteString("\n")
		}
	}

	writeList(&b, "Best practices", r.BestPractices)
	writeList(&b, "How to avoid these mistakes", r.Suggestions)

	if r.Closing != "" {
		b.WriteString("\n" + r.Closing + "\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\n### %s\n", title))
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}
