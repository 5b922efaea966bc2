// Package tutor drives lessons: each learner turn goes to the model with
// the log_mistake tool, requested tool calls are executed against the
// mistake log, and the visible reply is appended to the session history.
package tutor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/metrics"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
)

// TurnResult is what the learner sees after a turn.
type TurnResult struct {
	// Reply is the tutor's visible message.
	Reply string `json:"reply"`

	// Logged lists the mistakes persisted during this turn.
	Logged []store.MistakeRecord `json:"logged"`

	// FollowUp is set when the reply came from the follow-up call.
	FollowUp bool `json:"follow_up"`
}

// Controller runs single turns. It holds no per-session state; callers
// serialize turns of the same session.
type Controller struct {
	provider llm.Provider
	mistakes store.MistakeLog
	gen      lessons.GenerationConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewController creates a Controller. logger and m may be nil.
func NewController(provider llm.Provider, mistakes store.MistakeLog, gen lessons.GenerationConfig, logger *zap.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{provider: provider, mistakes: mistakes, gen: gen, logger: logger, metrics: m}
}

type mistakeKey struct {
	wrong, right string
}

// Turn sends utterance to the model as the next user message of sess.
//
// The user message is committed to the history first and stays there even
// when the turn fails. The model's tool calls, the tool results and the
// visible reply are committed only when the turn succeeds. A failed model
// call returns *ModelInvocationError.
func (c *Controller) Turn(ctx context.Context, sess *session.Session, utterance string) (*TurnResult, error) {
	start := time.Now()
	result, err := c.turn(ctx, sess, utterance)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveTurn(outcome, time.Since(start))
	return result, err
}

func (c *Controller) turn(ctx context.Context, sess *session.Session, utterance string) (*TurnResult, error) {
	history, err := sess.History.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: utterance}
	if err := sess.History.Add(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	ctx = llm.WithPurpose(ctx, "tutor-turn")
	req := lessons.BuildRequest(sess.Config, c.gen, history, utterance)
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("tutor turn failed", zap.String("session_id", sess.ID), zap.Error(err))
		return nil, &ModelInvocationError{Purpose: "tutor turn", Err: err}
	}

	result := &TurnResult{Logged: []store.MistakeRecord{}}
	content := strings.TrimSpace(resp.Text())

	var pending []llm.Message
	if resp.HasToolCalls() {
		pending = append(pending, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   content,
			ToolCalls: resp.ToolCalls,
		})
		pending = append(pending, c.executeToolCalls(ctx, sess, resp.ToolCalls, result)...)
	}

	switch {
	case content == "":
		// Tool calls only: ask once more for visible text. The follow-up
		// instruction itself is never stored.
		c.metrics.FollowUp()
		convo := make([]llm.Message, 0, len(history)+1+len(pending))
		convo = append(convo, history...)
		convo = append(convo, userMsg)
		convo = append(convo, pending...)

		followReq := lessons.BuildFollowUpRequest(sess.Config, c.gen, convo)
		followResp, err := c.provider.Generate(llm.WithPurpose(ctx, "tutor-followup"), followReq)
		if err != nil {
			c.logger.Warn("tutor follow-up failed", zap.String("session_id", sess.ID), zap.Error(err))
			return nil, &ModelInvocationError{Purpose: "tutor follow-up", Err: err}
		}
		result.FollowUp = true
		result.Reply = strings.TrimSpace(followResp.Text())
		pending = append(pending, llm.Message{Role: llm.RoleAssistant, Content: result.Reply})

	case !resp.HasToolCalls():
		result.Reply = content
		pending = append(pending, llm.Message{Role: llm.RoleAssistant, Content: content})

	default:
		// Text and tool calls in one reply: the assistant message already
		// carries the visible content.
		result.Reply = content
	}

	if err := sess.History.Add(ctx, pending...); err != nil {
		return nil, fmt.Errorf("append turn messages: %w", err)
	}

	c.logger.Debug("tutor turn",
		zap.String("session_id", sess.ID),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		zap.Int("logged", len(result.Logged)),
		zap.Bool("follow_up", result.FollowUp),
	)
	return result, nil
}

// executeToolCalls answers every call with a tool message. A given
// (error_sentence, corrected_sentence) pair is inserted at most once per turn.
func (c *Controller) executeToolCalls(ctx context.Context, sess *session.Session, calls []llm.ToolCall, result *TurnResult) []llm.Message {
	processed := make(map[mistakeKey]bool)
	msgs := make([]llm.Message, 0, len(calls))

	for _, call := range calls {
		msgs = append(msgs, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    c.executeToolCall(ctx, sess, call, processed, result),
		})
	}
	return msgs
}

func (c *Controller) executeToolCall(ctx context.Context, sess *session.Session, call llm.ToolCall, processed map[mistakeKey]bool, result *TurnResult) string {
	if call.Name != lessons.LogMistakeToolName {
		c.metrics.ToolCall(metrics.ToolUnsupported)
		c.logger.Warn("model requested unknown tool", zap.String("tool", call.Name))
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}

	args, err := lessons.ParseMistakeArgs(call.Arguments)
	pair := fmt.Sprintf("%s → %s", args.ErrorSentence, args.CorrectedSentence)
	if err != nil {
		c.metrics.ToolCall(metrics.ToolFailed)
		c.logger.Warn("invalid log_mistake arguments", zap.String("session_id", sess.ID), zap.Error(err))
		return "Could not log mistake: " + pair
	}

	key := mistakeKey{args.ErrorSentence, args.CorrectedSentence}
	if processed[key] {
		c.metrics.ToolCall(metrics.ToolDuplicate)
		return "Already logged: " + pair
	}

	rec := args.Record(sess.Config)
	if err := c.mistakes.Insert(ctx, rec); err != nil {
		c.metrics.ToolCall(metrics.ToolFailed)
		c.logger.Warn("failed to log mistake", zap.String("session_id", sess.ID), zap.Error(err))
		return "Could not log mistake: " + pair
	}

	processed[key] = true
	result.Logged = append(result.Logged, *rec)
	c.metrics.ToolCall(metrics.ToolLogged)
	c.metrics.MistakeLogged(rec.ErrorType)
	return "Logged mistake: " + pair
}
