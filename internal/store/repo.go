package store

import (
	"context"
	"fmt"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int       // max results (0 = unlimited)
	After int64     // id > After
	From  time.Time // timestamp >= From
	To    time.Time // timestamp <= To
}

// Error types accepted by the mistake log.
const (
	ErrorTypeGrammar       = "grammar"
	ErrorTypeVocabulary    = "vocabulary"
	ErrorTypePronunciation = "pronunciation"
	ErrorTypeSyntax        = "syntax"
)

// ErrorTypes lists the error types in display order.
var ErrorTypes = []string{
	ErrorTypeGrammar,
	ErrorTypeVocabulary,
	ErrorTypePronunciation,
	ErrorTypeSyntax,
}

// ValidErrorType reports whether t is one of ErrorTypes.
func ValidErrorType(t string) bool {
	for _, et := range ErrorTypes {
		if et == t {
			return true
		}
	}
	return false
}

// MistakeRecord is one learner mistake. ID and Timestamp are assigned on insert.
type MistakeRecord struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	NativeLanguage    string    `json:"native_language"`
	TargetLanguage    string    `json:"target_language"`
	ErrorSentence     string    `json:"error_sentence"`
	CorrectedSentence string    `json:"corrected_sentence"`
	ErrorType         string    `json:"error_type"`
}

// MistakeLog is the subset of the mistake repository the tutor and the
// feedback aggregator depend on.
type MistakeLog interface {
	Insert(ctx context.Context, m *MistakeRecord) error
	Recent(ctx context.Context, limit int) ([]MistakeRecord, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a persisted LLM request event.
type LLMRequestEventRecord struct {
	ID           int64
	Timestamp    time.Time
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMUsageStats aggregates LLM calls by purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs float64
}

// LLMModelUsage aggregates LLM calls by model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append access to the LLM audit log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// StorageError reports a failed read or write against the database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
