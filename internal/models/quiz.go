package models

import "time"

// SessionStatus describes the lifecycle of one quiz attempt. Transitions are
// monotonic: NotStarted -> InProgress -> Finished.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

// DefaultQuestionSeconds is used when the exam backend omits a per-question
// time limit or sends a non-positive one.
const DefaultQuestionSeconds = 60

// QuestionOption is one selectable answer. Correctness is a server secret and
// is never present on an in-progress question.
type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuizQuestion struct {
	ID               string           `json:"id"`
	Text             string           `json:"text"`
	Order            int              `json:"order"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	Options          []QuestionOption `json:"options"`
}

// ApplyDefaults fills in the fields the backend is allowed to omit.
// fallbackOrder is the 1-based position the question was revealed at.
func (q *QuizQuestion) ApplyDefaults(fallbackOrder int) {
	if q.TimeLimitSeconds <= 0 {
		q.TimeLimitSeconds = DefaultQuestionSeconds
	}
	if q.Order <= 0 {
		q.Order = fallbackOrder
	}
}

// QuizSession is the persisted, resumable unit of one quiz attempt.
// Questions only ever grows, by exactly one element per answered question.
type QuizSession struct {
	ApplicantID        string         `json:"applicant_id"`
	Status             SessionStatus  `json:"status"`
	Questions          []QuizQuestion `json:"questions"`
	CurrentIndex       int            `json:"current_index"`
	SecondsRemaining   int            `json:"seconds_remaining"`
	TotalQuestionsHint *int           `json:"total_questions_hint,omitempty"`
	StartedAt          time.Time      `json:"started_at"`
}

// CurrentQuestion returns the question at CurrentIndex, or nil if the session
// holds no presentable question.
func (s *QuizSession) CurrentQuestion() *QuizQuestion {
	if s == nil || s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentIndex]
}

// QuizResult carries the backend's scoring verdict; values are displayed
// as-is, never recomputed client-side.
type QuizResult struct {
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	WrongAnswers   int     `json:"wrong_answers"`
	ScorePercent   float64 `json:"score_percent"`
}
