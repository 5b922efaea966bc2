package v1

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
	"github.com/abhisek/parla/internal/tutor"
)

// apiError maps domain errors onto HTTP problem responses. action is used
// in the message of unexpected failures ("failed to <action>").
func apiError(err error, action string) error {
	var (
		cfgErr   *lessons.ConfigurationError
		modelErr *tutor.ModelInvocationError
		storeErr *store.StorageError
	)
	switch {
	case errors.As(err, &cfgErr):
		return huma.Error400BadRequest(cfgErr.Message)
	case errors.Is(err, tutor.ErrEmptyMessage):
		return huma.Error400BadRequest("text must not be empty")
	case errors.Is(err, session.ErrNotFound):
		return huma.Error404NotFound("lesson not found")
	case errors.As(err, &modelErr):
		return huma.Error502BadGateway("the tutor is unavailable right now, please try again", err)
	case errors.As(err, &storeErr):
		return huma.Error500InternalServerError("failed to "+action+": storage error", err)
	default:
		return huma.Error500InternalServerError("failed to "+action, err)
	}
}
