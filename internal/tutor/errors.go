package tutor

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage rejects a turn with no text.
var ErrEmptyMessage = errors.New("message is empty")

// ModelInvocationError wraps a model failure that aborted a turn or a
// feedback request. Retries have already been exhausted.
type ModelInvocationError struct {
	Purpose string
	Err     error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("%s: model invocation failed: %v", e.Purpose, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}
