package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/metrics"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
)

// Lesson is a started session with its visible transcript.
type Lesson struct {
	SessionID string         `json:"session_id"`
	Config    lessons.Config `json:"config"`
	Messages  []llm.Message  `json:"messages"`
}

// Service is the entry point used by the TUI and the HTTP server.
type Service struct {
	registry   session.Registry
	controller *Controller
	aggregator *feedback.Aggregator
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes turns of one session. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires a Service. logger and m may be nil.
func NewService(registry session.Registry, controller *Controller, aggregator *feedback.Aggregator, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:   registry,
		controller: controller,
		aggregator: aggregator,
		logger:     logger,
		metrics:    m,
		locks:      make(map[string]*sessionLock),
	}
}

// StartLesson validates cfg, creates a session and runs the hidden kickoff
// turn so the tutor opens the conversation. Invalid configs return
// *lessons.ConfigurationError before any model call.
func (s *Service) StartLesson(ctx context.Context, cfg lessons.Config) (*Lesson, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	sess, err := s.registry.Create(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.metrics.SessionStarted()

	s.logger.Info("lesson started",
		zap.String("session_id", sess.ID),
		zap.String("native", cfg.NativeLanguage),
		zap.String("learning", cfg.LearningLanguage),
		zap.String("proficiency", string(cfg.Proficiency)),
		zap.String("scenario", cfg.Scenario),
	)

	unlock := s.lock(sess.ID)
	_, err = s.controller.Turn(ctx, sess, lessons.KickoffPrompt(cfg.Scenario))
	unlock()
	if err != nil {
		if endErr := s.EndLesson(context.WithoutCancel(ctx), sess.ID); endErr != nil {
			s.logger.Warn("failed to end lesson after kickoff error",
				zap.String("session_id", sess.ID), zap.Error(endErr))
		}
		return nil, err
	}

	msgs, err := s.Transcript(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return &Lesson{SessionID: sess.ID, Config: cfg, Messages: msgs}, nil
}

// Turn runs one learner turn. Turns of the same session run one at a time.
func (s *Service) Turn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(sessionID)
	defer unlock()
	return s.controller.Turn(ctx, sess, text)
}

// Transcript returns the messages the learner sees: user and assistant
// messages with text, without the kickoff instruction.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]llm.Message, error) {
	sess, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := sess.History.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return Visible(msgs, sess.Config), nil
}

// Visible filters a history down to what the learner sees.
func Visible(msgs []llm.Message, cfg lessons.Config) []llm.Message {
	kickoff := lessons.KickoffPrompt(cfg.Scenario)
	out := make([]llm.Message, 0, len(msgs))
	for i, m := range msgs {
		if m.Content == "" || m.Role == llm.RoleTool {
			continue
		}
		if i == 0 && m.Role == llm.RoleUser && m.Content == kickoff {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Feedback generates a report and, when sessionID is set, replaces that
// session's history with the report as a single assistant message.
func (s *Service) Feedback(ctx context.Context, sessionID string) (*feedback.Report, error) {
	var sess *session.Session
	if sessionID != "" {
		var err error
		if sess, err = s.registry.Get(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	report, err := s.aggregator.Generate(ctx)
	if err != nil {
		var storeErr *store.StorageError
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, &ModelInvocationError{Purpose: "feedback", Err: err}
	}

	if sess == nil {
		return report, nil
	}

	unlock := s.lock(sessionID)
	defer unlock()
	if err := sess.History.Clear(ctx); err != nil {
		return nil, fmt.Errorf("reset history: %w", err)
	}
	if err := sess.History.Add(ctx, llm.Message{Role: llm.RoleAssistant, Content: report.Text}); err != nil {
		return nil, fmt.Errorf("seed history: %w", err)
	}
	return report, nil
}

// EndLesson drops a session.
func (s *Service) EndLesson(ctx context.Context, sessionID string) error {
	if _, err := s.registry.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := s.registry.Delete(ctx, sessionID); err != nil {
		return err
	}

	s.metrics.SessionEnded()
	s.logger.Info("lesson ended", zap.String("session_id", sessionID))
	return nil
}

// SessionEvicted is the session.Options.OnEvict hook: the registry dropped
// a session on its own, so it no longer counts as active.
func (s *Service) SessionEvicted(sessionID string) {
	s.metrics.SessionEnded()
	s.logger.Debug("lesson evicted", zap.String("session_id", sessionID))
}

func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

// lockCount reports how many sessions have a turn running or waiting.
func (s *Service) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
