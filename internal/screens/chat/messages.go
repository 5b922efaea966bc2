package chat

import (
	"time"

	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/tutor"
)

// turnDoneMsg is sent when a learner turn has been answered or failed.
type turnDoneMsg struct {
	Result *tutor.TurnResult
	Err    error
}

// feedbackDoneMsg is sent when a lesson feedback report is ready.
type feedbackDoneMsg struct {
	Report *feedback.Report
	Err    error
}

// spinnerTickMsg animates the "thinking" indicator while a call is running.
type spinnerTickMsg time.Time
