package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/vacancy-portal/quiz-session-service/internal/models"
)

// EventType represents the quiz session lifecycle events published for the
// back-office (screening dashboards, applicant timelines).
type EventType string

const (
	EventQuizStarted      EventType = "quiz.started"
	EventAnswerSubmitted  EventType = "quiz.answer_submitted"
	EventQuestionTimedOut EventType = "quiz.question_timed_out"
	EventQuizFinished     EventType = "quiz.finished"
)

const (
	eventSource  = "quiz-session-service"
	eventVersion = "1.0"
)

// QuizEvent is the envelope for all published lifecycle events.
type QuizEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func NewQuizEvent(eventType EventType, data interface{}) *QuizEvent {
	return &QuizEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// Event payloads

type QuizStartedEvent struct {
	ApplicantID    string `json:"applicant_id"`
	TotalQuestions *int   `json:"total_questions,omitempty"`
}

type AnswerSubmittedEvent struct {
	ApplicantID   string  `json:"applicant_id"`
	QuestionID    string  `json:"question_id"`
	QuestionIndex int     `json:"question_index"`
	OptionID      *string `json:"option_id"` // nil = no answer selected
	Trigger       string  `json:"trigger"`   // manual or timeout
}

type QuestionTimedOutEvent struct {
	ApplicantID   string `json:"applicant_id"`
	QuestionID    string `json:"question_id"`
	QuestionIndex int    `json:"question_index"`
}

type QuizFinishedEvent struct {
	ApplicantID string             `json:"applicant_id"`
	Reason      string             `json:"reason"` // completed, ended_early or degraded
	Result      *models.QuizResult `json:"result,omitempty"`
}
