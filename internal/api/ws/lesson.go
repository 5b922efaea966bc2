// Package ws serves lessons over WebSocket: the client sends learner
// messages as JSON frames and receives turn results as they complete.
package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
	"github.com/abhisek/parla/internal/tutor"
)

// Lessons is the part of tutor.Service the socket drives.
type Lessons interface {
	Turn(ctx context.Context, sessionID, text string) (*tutor.TurnResult, error)
	Transcript(ctx context.Context, sessionID string) ([]llm.Message, error)
	Feedback(ctx context.Context, sessionID string) (*feedback.Report, error)
}

// Client frame types.
const (
	FrameTurn     = "turn"
	FrameFeedback = "feedback"
)

// Server frame types.
const (
	EventTranscript = "transcript"
	EventTurn       = "turn"
	EventFeedback   = "feedback"
	EventError      = "error"
)

// ClientFrame is one message from the browser. An empty Type means turn.
type ClientFrame struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// Event is one message to the browser.
type Event struct {
	Type     string            `json:"type"`
	Messages []llm.Message     `json:"messages,omitempty"`
	Turn     *tutor.TurnResult `json:"turn,omitempty"`
	Report   *feedback.Report  `json:"report,omitempty"`
	Error    *ErrorPayload     `json:"error,omitempty"`
}

// ErrorPayload describes a failed frame with its HTTP-equivalent status.
type ErrorPayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Hub accepts lesson sockets.
type Hub struct {
	lessons Lessons
	origins []string
	logger  *zap.Logger
}

// NewHub creates a Hub. origins are the accepted Origin host patterns;
// nil accepts same-origin requests only.
func NewHub(lessons Lessons, origins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{lessons: lessons, origins: origins, logger: logger}
}

// ServeLesson handles GET /ws/lessons/{id}. The current transcript is sent
// first; each client frame is then answered with one event.
func (h *Hub) ServeLesson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msgs, err := h.lessons.Transcript(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		h.logger.Error("websocket transcript", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "failed to load lesson", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, Event{Type: EventTranscript, Messages: msgs}); err != nil {
		h.logger.Debug("websocket write", zap.Error(err))
		return
	}

	for {
		var frame ClientFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				h.logger.Debug("websocket read", zap.String("session_id", id), zap.Error(err))
			}
			return
		}

		event, ended := h.handle(ctx, id, frame)
		if err := wsjson.Write(ctx, conn, event); err != nil {
			h.logger.Debug("websocket write", zap.String("session_id", id), zap.Error(err))
			return
		}
		if ended {
			_ = conn.Close(websocket.StatusNormalClosure, "lesson ended")
			return
		}
	}
}

// handle runs one frame. ended is set when the lesson no longer exists.
func (h *Hub) handle(ctx context.Context, id string, frame ClientFrame) (event Event, ended bool) {
	switch frame.Type {
	case "", FrameTurn:
		result, err := h.lessons.Turn(ctx, id, frame.Text)
		if err != nil {
			return errorEvent(err), errors.Is(err, session.ErrNotFound)
		}
		return Event{Type: EventTurn, Turn: result}, false

	case FrameFeedback:
		report, err := h.lessons.Feedback(ctx, id)
		if err != nil {
			return errorEvent(err), errors.Is(err, session.ErrNotFound)
		}
		return Event{Type: EventFeedback, Report: report}, false

	default:
		return Event{Type: EventError, Error: &ErrorPayload{
			Status:  http.StatusBadRequest,
			Message: "unknown frame type " + frame.Type,
		}}, false
	}
}

// errorEvent uses the same status codes as the HTTP API.
func errorEvent(err error) Event {
	var (
		cfgErr   *lessons.ConfigurationError
		modelErr *tutor.ModelInvocationError
		storeErr *store.StorageError
	)
	p := &ErrorPayload{Status: http.StatusInternalServerError, Message: "internal error"}
	switch {
	case errors.As(err, &cfgErr):
		p.Status, p.Message = http.StatusBadRequest, cfgErr.Message
	case errors.Is(err, tutor.ErrEmptyMessage):
		p.Status, p.Message = http.StatusBadRequest, "text must not be empty"
	case errors.Is(err, session.ErrNotFound):
		p.Status, p.Message = http.StatusNotFound, "lesson not found"
	case errors.As(err, &modelErr):
		p.Status, p.Message = http.StatusBadGateway, "the tutor is unavailable right now, please try again"
	case errors.As(err, &storeErr):
		p.Message = "storage error"
	}
	return Event{Type: EventError, Error: p}
}
