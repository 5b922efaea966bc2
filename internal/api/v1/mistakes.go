package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/abhisek/parla/internal/store"
)

// MaxMistakesLimit caps the limit query parameter.
const MaxMistakesLimit = 100

type ListMistakesInput struct {
	Limit int `query:"limit" minimum:"1" default:"10" doc:"Max results, capped at 100"`
}

type ListMistakesOutput struct {
	Body struct {
		Mistakes     []store.MistakeRecord `json:"mistakes"`
		Distribution map[string]int        `json:"distribution"`
	}
}

type GlobalFeedbackInput struct{}

func RegisterMistakeRoutes(api huma.API, mistakes MistakeReader, svc LessonService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-mistakes",
		Method:      http.MethodGet,
		Path:        "/mistakes",
		Summary:     "List the most recent mistakes",
		Description: "Newest first, with the error-type distribution over the whole log.",
		Tags:        []string{"Mistakes"},
	}, func(ctx context.Context, input *ListMistakesInput) (*ListMistakesOutput, error) {
		limit := min(input.Limit, MaxMistakesLimit)

		records, err := mistakes.Recent(ctx, limit)
		if err != nil {
			return nil, apiError(err, "list mistakes")
		}
		dist, err := mistakes.CountByType(ctx)
		if err != nil {
			return nil, apiError(err, "count mistakes")
		}

		out := &ListMistakesOutput{}
		out.Body.Mistakes = records
		if out.Body.Mistakes == nil {
			out.Body.Mistakes = []store.MistakeRecord{}
		}
		out.Body.Distribution = dist
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "global-feedback",
		Method:      http.MethodGet,
		Path:        "/feedback",
		Summary:     "Generate feedback from the recent mistake log",
		Tags:        []string{"Mistakes"},
	}, func(ctx context.Context, _ *GlobalFeedbackInput) (*FeedbackOutput, error) {
		report, err := svc.Feedback(ctx, "")
		if err != nil {
			return nil, apiError(err, "generate feedback")
		}
		return &FeedbackOutput{Body: report}, nil
	})
}
