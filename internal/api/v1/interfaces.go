package v1

import (
	"context"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/store"
	"github.com/abhisek/parla/internal/tutor"
)

// LessonService is the subset of tutor.Service the API needs.
type LessonService interface {
	StartLesson(ctx context.Context, cfg lessons.Config) (*tutor.Lesson, error)
	Turn(ctx context.Context, sessionID, text string) (*tutor.TurnResult, error)
	Transcript(ctx context.Context, sessionID string) ([]llm.Message, error)
	Feedback(ctx context.Context, sessionID string) (*feedback.Report, error)
	EndLesson(ctx context.Context, sessionID string) error
}

// MistakeReader reads the persistent mistake log.
type MistakeReader interface {
	Recent(ctx context.Context, limit int) ([]store.MistakeRecord, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

var (
	_ LessonService = (*tutor.Service)(nil)
	_ MistakeReader = (*store.MistakeRepo)(nil)
)
