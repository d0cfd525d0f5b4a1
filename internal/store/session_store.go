package store

import (
	"context"
	"errors"

	"github.com/vacancy-portal/quiz-session-service/internal/models"
)

// ErrSessionNotFound is returned when no session record exists for an
// applicant. A corrupt record is reported the same way so callers fall back
// to "not started" instead of crashing a session.
var ErrSessionNotFound = errors.New("quiz session not found")

// SessionStore persists at most one QuizSession per applicant so a session
// survives a page reload. It performs no business-rule validation.
type SessionStore interface {
	Load(ctx context.Context, applicantID string) (*models.QuizSession, error)
	// Save overwrites the whole record (full-replace, no partial merge).
	Save(ctx context.Context, applicantID string, session *models.QuizSession) error
	Clear(ctx context.Context, applicantID string) error
}
