package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/metrics"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
)

type testEnv struct {
	svc   *Service
	mock  *llm.MockProvider
	store *store.Store
	reg   *session.MemoryRegistry
}

func newTestService(t *testing.T, responses ...llm.MockResponse) *testEnv {
	t.Helper()
	st := openTestStore(t)
	mock := llm.NewMockProvider(responses...)
	reg := session.NewMemoryRegistry(session.Options{})
	t.Cleanup(func() { reg.Close() })

	m := metrics.New()
	ctrl := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, m)
	agg := feedback.NewAggregator(mock, st.MistakeRepo(), feedback.DefaultConfig(), nil)
	return &testEnv{
		svc:   NewService(reg, ctrl, agg, nil, m),
		mock:  mock,
		store: st,
		reg:   reg,
	}
}

func TestStartLesson_RejectsMissingLanguage(t *testing.T) {
	env := newTestService(t)

	_, err := env.svc.StartLesson(context.Background(), lessons.Config{LearningLanguage: "Spanish"})
	var cfgErr *lessons.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if env.mock.CallCount() != 0 {
		t.Fatal("expected no model call for an invalid lesson")
	}
	if env.reg.Len() != 0 {
		t.Fatal("expected no session for an invalid lesson")
	}
}

func TestStartLesson_KickoffIsHidden(t *testing.T) {
	env := newTestService(t, llm.MockText("¡Bienvenido al restaurante! ¿Qué desea? (Welcome! What would you like?)"))

	lesson, err := env.svc.StartLesson(context.Background(), spanishLesson())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.SessionID == "" {
		t.Fatal("expected a session id")
	}

	kickoff := env.mock.LastCall().Messages[0]
	if kickoff.Content != "Begin the Restaurant scenario" {
		t.Fatalf("unexpected kickoff %q", kickoff.Content)
	}

	if len(lesson.Messages) != 1 || lesson.Messages[0].Role != llm.RoleAssistant {
		t.Fatalf("expected only the tutor greeting, got %+v", lesson.Messages)
	}
}

func TestStartLesson_KickoffFailureEndsSession(t *testing.T) {
	env := newTestService(t, llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})

	_, err := env.svc.StartLesson(context.Background(), spanishLesson())
	var mie *ModelInvocationError
	if !errors.As(err, &mie) {
		t.Fatalf("expected ModelInvocationError, got %v", err)
	}
	if env.reg.Len() != 0 {
		t.Fatal("expected the failed session to be removed")
	}
}

// A full lesson: greeting, a mistake that is logged and corrected, feedback.
func TestLessonEndToEnd(t *testing.T) {
	env := newTestService(t,
		llm.MockText("¡Hola! ¿Qué desea tomar? (Hello! What would you like to drink?)"),
		llm.MockResponse{ToolCalls: []llm.ToolCall{logMistakeCall("call_1", "Yo quiero dos cafe", "Yo quiero dos cafés", "grammar")}},
		llm.MockText("(Note: Yo quiero dos cafe → Yo quiero dos cafés) ¿Con azúcar? (With sugar?)"),
		llm.MockResponse{Content: json.RawMessage(`{"score":80,"errors":[{"mistake":"Yo quiero dos cafe","correction":"Yo quiero dos cafés","explanation":"Plural nouns take -s."}],"best_practices":["Check plurals"],"suggestions":["Pluralize ten nouns"],"closing":"¡Sigue así!"}`)},
	)
	ctx := context.Background()

	lesson, err := env.svc.StartLesson(ctx, spanishLesson())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := env.svc.Turn(ctx, lesson.SessionID, "Yo quiero dos cafe")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if len(res.Logged) != 1 || !res.FollowUp {
		t.Fatalf("unexpected turn result: %+v", res)
	}

	transcript, err := env.svc.Transcript(ctx, lesson.SessionID)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("expected greeting, user message and reply, got %+v", transcript)
	}
	if transcript[1].Content != "Yo quiero dos cafe" || transcript[2].Content != res.Reply {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}

	report, err := env.svc.Feedback(ctx, lesson.SessionID)
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if report.Score != 80 || report.Distribution["grammar"] != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	// Feedback reseeds the session with the report.
	transcript, err = env.svc.Transcript(ctx, lesson.SessionID)
	if err != nil {
		t.Fatalf("transcript after feedback: %v", err)
	}
	if len(transcript) != 1 || transcript[0].Content != report.Text {
		t.Fatalf("expected only the report in history, got %+v", transcript)
	}
}

func TestFeedback_NoMistakes(t *testing.T) {
	env := newTestService(t)

	report, err := env.svc.Feedback(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Text != feedback.NoMistakesMessage {
		t.Fatalf("unexpected text %q", report.Text)
	}
}

func TestFeedback_UnknownSession(t *testing.T) {
	env := newTestService(t)

	_, err := env.svc.Feedback(context.Background(), "missing")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeedback_ModelFailure(t *testing.T) {
	env := newTestService(t, llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})
	if err := env.store.MistakeRepo().Insert(context.Background(), &store.MistakeRecord{
		ErrorSentence: "a", CorrectedSentence: "b", ErrorType: "grammar",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := env.svc.Feedback(context.Background(), "")
	var mie *ModelInvocationError
	if !errors.As(err, &mie) {
		t.Fatalf("expected ModelInvocationError, got %v", err)
	}
}

func TestTurn_Errors(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	if _, err := env.svc.Turn(ctx, "missing", "hola"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := env.svc.Turn(ctx, "missing", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestEndLesson(t *testing.T) {
	env := newTestService(t, llm.MockText("¡Hola!"))
	ctx := context.Background()

	lesson, err := env.svc.StartLesson(ctx, spanishLesson())
	if err != nil {
		t.Fatal(err)
	}
	if err := env.svc.EndLesson(ctx, lesson.SessionID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := env.svc.Transcript(ctx, lesson.SessionID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after end, got %v", err)
	}
	if err := env.svc.EndLesson(ctx, lesson.SessionID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second end, got %v", err)
	}
}

func TestTurn_SerializedPerSession(t *testing.T) {
	responses := []llm.MockResponse{llm.MockText("¡Hola!")}
	for i := 0; i < 10; i++ {
		responses = append(responses, llm.MockText("ok"))
	}
	env := newTestService(t, responses...)
	ctx := context.Background()

	lesson, err := env.svc.StartLesson(ctx, spanishLesson())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Turn(ctx, lesson.SessionID, "hola"); err != nil {
				t.Errorf("turn: %v", err)
			}
		}()
	}
	wg.Wait()

	transcript, err := env.svc.Transcript(ctx, lesson.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	// Greeting plus ten user/assistant pairs, strictly alternating.
	if len(transcript) != 21 {
		t.Fatalf("expected 21 messages, got %d", len(transcript))
	}
	for i := 1; i < len(transcript); i += 2 {
		if transcript[i].Role != llm.RoleUser || transcript[i+1].Role != llm.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %+v", i, transcript[i:i+2])
		}
	}
}

func TestEvictedSessionsReleaseState(t *testing.T) {
	st := openTestStore(t)
	var responses []llm.MockResponse
	for range 50 {
		responses = append(responses, llm.MockText("¡Hola!"))
	}
	mock := llm.NewMockProvider(responses...)
	m := metrics.New()

	var svc *Service
	reg := session.NewMemoryRegistry(session.Options{
		MaxSessions: 2,
		OnEvict:     func(id string) { svc.SessionEvicted(id) },
	})
	t.Cleanup(func() { reg.Close() })

	ctrl := NewController(mock, st.MistakeRepo(), lessons.DefaultGenerationConfig(), nil, m)
	agg := feedback.NewAggregator(mock, st.MistakeRepo(), feedback.DefaultConfig(), nil)
	svc = NewService(reg, ctrl, agg, nil, m)

	ctx := context.Background()
	for range 50 {
		if _, err := svc.StartLesson(ctx, spanishLesson()); err != nil {
			t.Fatal(err)
		}
	}

	if reg.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", reg.Len())
	}
	if n := svc.lockCount(); n != 0 {
		t.Fatalf("expected no session locks after turns finish, got %d", n)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 2 {
		t.Fatalf("expected active sessions gauge 2, got %v", got)
	}
}

func TestVisible(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "Begin the Restaurant scenario"},
		{Role: llm.RoleAssistant, Content: "¡Hola!"},
		{Role: llm.RoleUser, Content: "dos cafe"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "log_mistake"}}},
		{Role: llm.RoleTool, ToolCallID: "c1", Content: "Logged mistake: dos cafe → dos cafés"},
		{Role: llm.RoleAssistant, Content: "¿Algo más?"},
	}
	got := Visible(msgs, spanishLesson())
	if len(got) != 3 {
		t.Fatalf("expected 3 visible messages, got %+v", got)
	}
	if got[0].Content != "¡Hola!" || got[2].Content != "¿Algo más?" {
		t.Fatalf("unexpected visible messages: %+v", got)
	}
}
