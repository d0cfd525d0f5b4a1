package services

import (
	"errors"

	"github.com/vacancy-portal/quiz-session-service/internal/examapi"
)

var (
	// Session lifecycle errors
	ErrQuizNotInProgress  = errors.New("quiz is not in progress")
	ErrQuizFinished       = errors.New("quiz already finished")
	ErrNoQuestions        = errors.New("exam backend returned no questions")
	ErrSubmissionInFlight = errors.New("an answer submission is already in flight")
	ErrUnknownOption      = errors.New("option does not belong to the current question")
)

// IsRetryable reports whether the caller may simply retry the same action.
// Backend failures are retryable by the user; lifecycle violations are not.
func IsRetryable(err error) bool {
	return errors.Is(err, examapi.ErrBackend)
}

// IsConflict reports errors caused by the session being in the wrong state
// for the requested action.
func IsConflict(err error) bool {
	return errors.Is(err, ErrQuizFinished) ||
		errors.Is(err, ErrQuizNotInProgress) ||
		errors.Is(err, ErrSubmissionInFlight)
}
