package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/tutor"
)

type StartLessonInput struct {
	Body struct {
		NativeLanguage   string `json:"native_language,omitempty" maxLength:"64" doc:"Language the learner already speaks"`
		LearningLanguage string `json:"learning_language,omitempty" maxLength:"64" doc:"Language being practiced"`
		Proficiency      string `json:"proficiency,omitempty" doc:"Beginner, Intermediate or Advanced (default Beginner)"`
		Scenario         string `json:"scenario,omitempty" maxLength:"200" doc:"Role-play scenario (default Restaurant)"`
	}
}

type StartLessonOutput struct {
	Body *tutor.Lesson
}

type LessonIDInput struct {
	ID string `path:"id" doc:"Lesson session ID"`
}

type TurnInput struct {
	ID   string `path:"id" doc:"Lesson session ID"`
	Body struct {
		Text string `json:"text,omitempty" maxLength:"4000" doc:"What the learner says"`
	}
}

type TurnOutput struct {
	Body *tutor.TurnResult
}

type TranscriptOutput struct {
	Body struct {
		Messages []llm.Message `json:"messages"`
	}
}

type FeedbackOutput struct {
	Body *feedback.Report
}

func RegisterLessonRoutes(api huma.API, svc LessonService) {
	huma.Register(api, huma.Operation{
		OperationID: "start-lesson",
		Method:      http.MethodPost,
		Path:        "/lessons",
		Summary:     "Start a lesson",
		Description: "Creates a session and returns the tutor's opening message.",
		Tags:        []string{"Lessons"},
	}, func(ctx context.Context, input *StartLessonInput) (*StartLessonOutput, error) {
		cfg := lessons.Config{
			NativeLanguage:   input.Body.NativeLanguage,
			LearningLanguage: input.Body.LearningLanguage,
			Proficiency:      lessons.Proficiency(input.Body.Proficiency),
			Scenario:         input.Body.Scenario,
		}

		lesson, err := svc.StartLesson(ctx, cfg)
		if err != nil {
			return nil, apiError(err, "start lesson")
		}
		return &StartLessonOutput{Body: lesson}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-turn",
		Method:      http.MethodPost,
		Path:        "/lessons/{id}/turns",
		Summary:     "Send a learner message",
		Tags:        []string{"Lessons"},
	}, func(ctx context.Context, input *TurnInput) (*TurnOutput, error) {
		result, err := svc.Turn(ctx, input.ID, input.Body.Text)
		if err != nil {
			return nil, apiError(err, "run turn")
		}
		return &TurnOutput{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transcript",
		Method:      http.MethodGet,
		Path:        "/lessons/{id}/messages",
		Summary:     "Get the visible transcript of a lesson",
		Tags:        []string{"Lessons"},
	}, func(ctx context.Context, input *LessonIDInput) (*TranscriptOutput, error) {
		msgs, err := svc.Transcript(ctx, input.ID)
		if err != nil {
			return nil, apiError(err, "load transcript")
		}
		out := &TranscriptOutput{}
		out.Body.Messages = msgs
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lesson-feedback",
		Method:      http.MethodPost,
		Path:        "/lessons/{id}/feedback",
		Summary:     "Generate feedback and reset the lesson history to it",
		Tags:        []string{"Lessons"},
	}, func(ctx context.Context, input *LessonIDInput) (*FeedbackOutput, error) {
		report, err := svc.Feedback(ctx, input.ID)
		if err != nil {
			return nil, apiError(err, "generate feedback")
		}
		return &FeedbackOutput{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-lesson",
		Method:      http.MethodDelete,
		Path:        "/lessons/{id}",
		Summary:     "End a lesson",
		Tags:        []string{"Lessons"},
	}, func(ctx context.Context, input *LessonIDInput) (*struct{}, error) {
		if err := svc.EndLesson(ctx, input.ID); err != nil {
			return nil, apiError(err, "end lesson")
		}
		return nil, nil
	})
}
