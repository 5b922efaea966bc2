package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
)

func spanishLesson() lessons.Config {
	return lessons.Config{
		NativeLanguage:   "English",
		LearningLanguage: "Spanish",
		Proficiency:      lessons.Beginner,
		Scenario:         "Restaurant",
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	reg := session.NewMemoryRegistry(session.Options{})
	t.Cleanup(func() { reg.Close() })
	sess, err := reg.Create(context.Background(), spanishLesson())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func logMistakeCall(id, wrong, right, typ string) llm.ToolCall {
	return llm.MockToolCall(id, lessons.LogMistakeToolName, map[string]string{
		"native_lang":        "English",
		"target_lang":        "Spanish",
		"error_sentence":     wrong,
		"corrected_sentence": right,
		"error_type":         typ,
	})
}

func historyOf(t *testing.T, sess *session.Session) []llm.Message {
	t.Helper()
	msgs, err := sess.History.Messages(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return msgs
}

type failingMistakes struct{}

func (failingMistakes) Insert(context.Context, *store.MistakeRecord) error {
	return &store.StorageError{Op: "insert mistake", Err: errors.New("database is locked")}
}

func (failingMistakes) Recent(context.Context, int) ([]store.MistakeRecord, error) {
	return nil, nil
}

func (failingMistakes) CountByType(context.Context) (map[string]int, error) {
	return nil, nil
}

func TestTurn_PlainReply(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockText("¡Muy bien! ¿Y para comer?"))
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	res, err := c.Turn(context.Background(), sess, "Quiero un café, por favor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reply != "¡Muy bien! ¿Y para comer?" || res.FollowUp || len(res.Logged) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 model call, got %d", mock.CallCount())
	}

	req := mock.LastCall()
	if len(req.Tools) != 1 || req.ToolChoice != llm.ToolChoiceAuto {
		t.Fatalf("expected log_mistake with auto choice, got %+v / %q", req.Tools, req.ToolChoice)
	}
	if !strings.Contains(req.System, "Spanish language tutor") {
		t.Fatal("expected system prompt for the lesson")
	}

	h := historyOf(t, sess)
	if len(h) != 2 || h[0].Role != llm.RoleUser || h[1].Role != llm.RoleAssistant {
		t.Fatalf("unexpected history: %+v", h)
	}
}

func TestTurn_ToolOnlyReplyTriggersFollowUp(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(
		llm.MockResponse{ToolCalls: []llm.ToolCall{logMistakeCall("call_1", "Yo quiero dos cafe", "Yo quiero dos cafés", "grammar")}},
		llm.MockText("(Note: dos cafe → dos cafés) ¿Algo más? (Anything else?)"),
	)
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	res, err := c.Turn(context.Background(), sess, "Yo quiero dos cafe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FollowUp {
		t.Fatal("expected a follow-up call")
	}
	if !strings.Contains(res.Reply, "¿Algo más?") {
		t.Fatalf("unexpected reply %q", res.Reply)
	}
	if len(res.Logged) != 1 || res.Logged[0].CorrectedSentence != "Yo quiero dos cafés" {
		t.Fatalf("unexpected logged mistakes: %+v", res.Logged)
	}

	// Exactly one row was stored.
	recent, err := st.MistakeRepo().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ErrorType != "grammar" || recent[0].TargetLanguage != "Spanish" {
		t.Fatalf("unexpected stored mistakes: %+v", recent)
	}

	// Follow-up request: tool still declared, tool choice none, transient instruction last.
	follow := mock.LastCall()
	if follow.ToolChoice != llm.ToolChoiceNone || len(follow.Tools) != 1 {
		t.Fatalf("unexpected follow-up tool config: %q %+v", follow.ToolChoice, follow.Tools)
	}
	last := follow.Messages[len(follow.Messages)-1]
	if last.Content != lessons.FollowUpPrompt {
		t.Fatalf("expected follow-up instruction last, got %q", last.Content)
	}
	toolMsg := follow.Messages[len(follow.Messages)-2]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Fatalf("expected tool result before the instruction, got %+v", toolMsg)
	}
	if toolMsg.Content != "Logged mistake: Yo quiero dos cafe → Yo quiero dos cafés" {
		t.Fatalf("unexpected tool result %q", toolMsg.Content)
	}

	// History: user, assistant tool call, tool result, visible reply. No follow-up instruction.
	h := historyOf(t, sess)
	if len(h) != 4 {
		t.Fatalf("expected 4 history messages, got %d: %+v", len(h), h)
	}
	if h[1].Role != llm.RoleAssistant || len(h[1].ToolCalls) != 1 {
		t.Fatalf("expected assistant tool call, got %+v", h[1])
	}
	if h[2].Role != llm.RoleTool || h[3].Content != res.Reply {
		t.Fatalf("unexpected tail of history: %+v", h[2:])
	}
	for _, m := range h {
		if m.Content == lessons.FollowUpPrompt {
			t.Fatal("follow-up instruction must not be stored")
		}
	}
}

func TestTurn_DuplicatePairLoggedOnce(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(
		llm.MockResponse{ToolCalls: []llm.ToolCall{
			logMistakeCall("call_1", "Yo quiero dos cafe", "Yo quiero dos cafés", "grammar"),
			logMistakeCall("call_2", "Yo quiero dos cafe", "Yo quiero dos cafés", "grammar"),
			logMistakeCall("call_3", "Ella es cansada", "Ella está cansada", "vocabulary"),
		}},
		llm.MockText("¡Entendido!"),
	)
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	res, err := c.Turn(context.Background(), sess, "Yo quiero dos cafe. Ella es cansada.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Logged) != 2 {
		t.Fatalf("expected 2 logged mistakes, got %d", len(res.Logged))
	}

	n, err := st.MistakeRepo().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored rows, got %d", n)
	}

	h := historyOf(t, sess)
	var results []string
	for _, m := range h {
		if m.Role == llm.RoleTool {
			results = append(results, m.ToolCallID+": "+m.Content)
		}
	}
	want := []string{
		"call_1: Logged mistake: Yo quiero dos cafe → Yo quiero dos cafés",
		"call_2: Already logged: Yo quiero dos cafe → Yo quiero dos cafés",
		"call_3: Logged mistake: Ella es cansada → Ella está cansada",
	}
	if strings.Join(results, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected tool results:\n%s", strings.Join(results, "\n"))
	}
}

func TestTurn_ContentWithToolCallsSkipsFollowUp(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockResponse{
		Content:   []byte("(Note: dos cafe → dos cafés) ¿Con leche? (With milk?)"),
		ToolCalls: []llm.ToolCall{logMistakeCall("call_1", "dos cafe", "dos cafés", "grammar")},
	})
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	res, err := c.Turn(context.Background(), sess, "Quiero dos cafe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FollowUp || mock.CallCount() != 1 {
		t.Fatalf("expected no follow-up, got %d calls", mock.CallCount())
	}
	if !strings.Contains(res.Reply, "¿Con leche?") {
		t.Fatalf("unexpected reply %q", res.Reply)
	}

	h := historyOf(t, sess)
	if len(h) != 3 || h[1].Content != res.Reply || h[2].Role != llm.RoleTool {
		t.Fatalf("unexpected history: %+v", h)
	}
}

func TestTurn_ModelFailureKeepsOnlyUserMessage(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("503")}})
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	_, err := c.Turn(context.Background(), sess, "Hola")
	var mie *ModelInvocationError
	if !errors.As(err, &mie) {
		t.Fatalf("expected ModelInvocationError, got %v", err)
	}
	var unavail *llm.ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatal("expected the provider error to be wrapped")
	}

	h := historyOf(t, sess)
	if len(h) != 1 || h[0].Content != "Hola" {
		t.Fatalf("expected only the user message, got %+v", h)
	}
}

func TestTurn_FollowUpFailureDiscardsToolMessages(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(
		llm.MockResponse{ToolCalls: []llm.ToolCall{logMistakeCall("call_1", "dos cafe", "dos cafés", "grammar")}},
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("timeout")}},
	)
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	_, err := c.Turn(context.Background(), sess, "Quiero dos cafe")
	var mie *ModelInvocationError
	if !errors.As(err, &mie) {
		t.Fatalf("expected ModelInvocationError, got %v", err)
	}

	if h := historyOf(t, sess); len(h) != 1 {
		t.Fatalf("expected only the user message, got %+v", h)
	}
}

func TestTurn_StorageFailureIsReportedToModel(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{ToolCalls: []llm.ToolCall{logMistakeCall("call_1", "dos cafe", "dos cafés", "grammar")}},
		llm.MockText("¿Algo más?"),
	)
	c := NewController(mock, failingMistakes{}, lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	res, err := c.Turn(context.Background(), sess, "Quiero dos cafe")
	if err != nil {
		t.Fatalf("storage failures must not abort the turn: %v", err)
	}
	if len(res.Logged) != 0 {
		t.Fatalf("expected nothing logged, got %+v", res.Logged)
	}

	follow := mock.LastCall()
	toolMsg := follow.Messages[len(follow.Messages)-2]
	if toolMsg.Content != "Could not log mistake: dos cafe → dos cafés" {
		t.Fatalf("unexpected tool result %q", toolMsg.Content)
	}
}

func TestTurn_CapitalisedErrorTypeIsLogged(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(
		llm.MockResponse{ToolCalls: []llm.ToolCall{logMistakeCall("call_1", "dos cafe", "dos cafés", "Grammar")}},
		llm.MockText("¿Algo más?"),
	)
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	res, err := c.Turn(context.Background(), sess, "Quiero dos cafe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Logged) != 1 || res.Logged[0].ErrorType != "grammar" {
		t.Fatalf("expected one grammar mistake, got %+v", res.Logged)
	}
}

func TestTurn_InvalidArgumentsAndUnknownTool(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(
		llm.MockResponse{ToolCalls: []llm.ToolCall{
			llm.MockToolCall("call_1", lessons.LogMistakeToolName, map[string]string{"error_sentence": "x", "corrected_sentence": "y", "error_type": "spelling"}),
			llm.MockToolCall("call_2", "translate", map[string]string{"text": "hola"}),
		}},
		llm.MockText("Sigamos."),
	)
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)

	if _, err := c.Turn(context.Background(), sess, "hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, _ := st.MistakeRepo().Count(context.Background())
	if n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}

	h := historyOf(t, sess)
	if h[2].Content != "Could not log mistake: x → y" {
		t.Fatalf("unexpected result for invalid args: %q", h[2].Content)
	}
	if h[3].Content != "Unknown tool: translate" {
		t.Fatalf("unexpected result for unknown tool: %q", h[3].Content)
	}
}

func TestTurn_HistoryReplayedInFull(t *testing.T) {
	st := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockText("uno"), llm.MockText("dos"))
	c := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, nil)
	sess := newTestSession(t)
	ctx := context.Background()

	if _, err := c.Turn(ctx, sess, "primero"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Turn(ctx, sess, "segundo"); err != nil {
		t.Fatal(err)
	}

	req := mock.LastCall()
	got := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		got[i] = string(m.Role) + ":" + m.Content
	}
	want := "user:primero|assistant:uno|user:segundo"
	if strings.Join(got, "|") != want {
		t.Fatalf("replayed messages = %q, want %q", strings.Join(got, "|"), want)
	}
}
