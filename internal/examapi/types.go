package examapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vacancy-portal/quiz-session-service/internal/models"
)

// flexID accepts both string and numeric JSON identifiers. Identifiers are
// opaque to this service, but the exam backend is free to send either shape.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wireOption struct {
	ID   flexID `json:"id"`
	Text string `json:"text"`
}

type wireQuestion struct {
	ID              flexID       `json:"id"`
	Text            string       `json:"text"`
	Order           int          `json:"order"`
	TimeLeftSeconds int          `json:"timeLeftSeconds"`
	TotalQuestions  *int         `json:"totalQuestions"`
	Options         []wireOption `json:"options"`
}

func (q *wireQuestion) toModel(fallbackOrder int) models.QuizQuestion {
	question := models.QuizQuestion{
		ID:               string(q.ID),
		Text:             q.Text,
		Order:            q.Order,
		TimeLimitSeconds: q.TimeLeftSeconds,
		Options:          make([]models.QuestionOption, 0, len(q.Options)),
	}
	for _, opt := range q.Options {
		question.Options = append(question.Options, models.QuestionOption{
			ID:   string(opt.ID),
			Text: opt.Text,
		})
	}
	question.ApplyDefaults(fallbackOrder)
	return question
}

type wireResult struct {
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	WrongAnswers   int     `json:"wrongAnswers"`
	ScorePercent   float64 `json:"scorePercent"`
}

func (r *wireResult) toModel() *models.QuizResult {
	return &models.QuizResult{
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		WrongAnswers:   r.WrongAnswers,
		ScorePercent:   r.ScorePercent,
	}
}

// StartTestResult is the normalized outcome of startTest: always at least one
// question once the call succeeds.
type StartTestResult struct {
	Questions      []models.QuizQuestion
	TotalQuestions *int
}

// SubmitOutcome is the normalized outcome of submitAnswer: either the next
// question or a finished signal, optionally with embedded results.
type SubmitOutcome struct {
	NextQuestion   *models.QuizQuestion
	IsFinished     bool
	Results        *models.QuizResult
	TotalQuestions *int
}

// Applicant carries the optional pre-start metadata used for progress hints.
type Applicant struct {
	ID             string
	FullName       string
	TotalQuestions *int
}

type wireApplicant struct {
	ID             flexID `json:"id"`
	FullName       string `json:"fullName"`
	TotalQuestions *int   `json:"totalQuestions"`
}
