package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/parla/internal/store"
)

func testTool() Tool {
	return Tool{
		Name:        "log_mistake",
		Description: "Record a learner mistake",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"error_sentence":     map[string]any{"type": "string"},
				"corrected_sentence": map[string]any{"type": "string"},
				"error_type": map[string]any{
					"type": "string",
					"enum": []any{"grammar", "vocabulary", "pronunciation", "syntax"},
				},
			},
			"required": []any{"error_sentence", "corrected_sentence"},
		},
	}
}

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`Hola`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{ToolCalls: []ToolCall{MockToolCall("c1", "log_mistake", map[string]string{"error_sentence": "a"})}},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text() != "Hola" {
		t.Fatalf("expected Hola, got %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp2.HasToolCalls() || resp2.ToolCalls[0].ID != "c1" {
		t.Fatalf("expected tool call c1, got %+v", resp2.ToolCalls)
	}
	if resp2.StopReason != "tool_use" {
		t.Fatalf("expected stop reason 'tool_use', got %q", resp2.StopReason)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error from empty queue")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(MockText("ok"))

	msgs := []Message{{Role: RoleUser, Content: "hello"}}
	_, _ = mock.Generate(context.Background(), Request{System: "sys", Messages: msgs})
	msgs[0].Content = "mutated"

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	last := mock.LastCall()
	if last.System != "sys" {
		t.Fatalf("expected system 'sys', got %q", last.System)
	}
	if last.Messages[0].Content != "hello" {
		t.Fatalf("recorded call should not alias caller slice, got %q", last.Messages[0].Content)
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, "tutor-turn")
	if p := PurposeFrom(ctx); p != "tutor-turn" {
		t.Fatalf("expected 'tutor-turn', got %q", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}, false},
		{"openai without key", Config{Provider: "openai"}, true},
		{"openai with key", Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}}, false},
		{"mock needs no key", Config{Provider: "mock"}, false},
		{"unknown provider", Config{Provider: "unknown"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig_SingleRetry(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Retry.MaxAttempts != 2 {
		t.Fatalf("expected 2 attempts (one retry), got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		t.Fatal("expected a bounded timeout")
	}
}

func TestValidateToolArguments(t *testing.T) {
	tool := testTool()

	if err := ValidateToolArguments(tool, json.RawMessage(`{"error_sentence":"dos cafe","corrected_sentence":"dos cafés","error_type":"grammar"}`)); err != nil {
		t.Fatalf("expected valid arguments, got: %v", err)
	}

	err := ValidateToolArguments(tool, json.RawMessage(`{"error_sentence":"dos cafe"}`))
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse for missing field, got: %v", err)
	}

	err = ValidateToolArguments(tool, json.RawMessage(`{"error_sentence":"a","corrected_sentence":"b","error_type":"spelling"}`))
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse for bad enum, got: %v", err)
	}
}

type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 10*time.Millisecond)
	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got: %v", err)
	}

	if WithTimeout(blockingProvider{}, 0) != (blockingProvider{}) {
		t.Fatal("expected zero timeout to return the provider unchanged")
	}
}

type recordingEventRepo struct {
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.events = append(r.events, data)
	return r.err
}

func TestWithLogging_RecordsEvent(t *testing.T) {
	repo := &recordingEventRepo{}
	mock := NewMockProvider(MockResponse{
		ToolCalls: []ToolCall{MockToolCall("c1", "log_mistake", map[string]string{"error_sentence": "dos cafe"})},
		Usage:     Usage{InputTokens: 12, OutputTokens: 3},
	})
	p := WithLogging(mock, repo, nil)

	ctx := WithPurpose(context.Background(), "tutor-turn")
	_, err := p.Generate(ctx, Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "Yo quiero dos cafe"}},
		Tools:    []Tool{testTool()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}
	e := repo.events[0]
	if e.Purpose != "tutor-turn" || !e.Success || e.InputTokens != 12 {
		t.Fatalf("unexpected event: %+v", e)
	}
	if !strings.Contains(e.RequestBody, "[tools: log_mistake, choice: auto]") {
		t.Fatalf("request body missing tools: %q", e.RequestBody)
	}
	if !strings.Contains(e.ResponseBody, "log_mistake(") {
		t.Fatalf("response body missing tool call: %q", e.ResponseBody)
	}
}

func TestWithLogging_RepoFailureDoesNotFailRequest(t *testing.T) {
	repo := &recordingEventRepo{err: errors.New("disk full")}
	p := WithLogging(NewMockProvider(MockText("ok")), repo, nil)

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
}
