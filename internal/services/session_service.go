package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vacancy-portal/quiz-session-service/internal/events"
	"github.com/vacancy-portal/quiz-session-service/internal/examapi"
	"github.com/vacancy-portal/quiz-session-service/internal/models"
	"github.com/vacancy-portal/quiz-session-service/internal/store"
	"github.com/vacancy-portal/quiz-session-service/internal/timer"
)

// SubmitTrigger identifies what drove an answer submission.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// ExamGateway is the opaque exam backend the controller depends on.
type ExamGateway interface {
	StartTest(ctx context.Context, applicantID string) (*examapi.StartTestResult, error)
	SubmitAnswer(ctx context.Context, applicantID, questionID string, optionID *string) (*examapi.SubmitOutcome, error)
	FinishTest(ctx context.Context, applicantID string) (*models.QuizResult, error)
	GetApplicant(ctx context.Context, applicantID string) (*examapi.Applicant, error)
}

// QuizService drives the exam flow for applicants: one resumable, timed
// session per applicant, with the server authoritative on when the quiz ends.
type QuizService interface {
	ResumeOrPrompt(ctx context.Context, applicantID string) (*SessionView, error)
	Start(ctx context.Context, applicantID string) (*SessionView, error)
	SelectOption(applicantID, optionID string) (*SessionView, error)
	Submit(ctx context.Context, applicantID string, trigger SubmitTrigger) (*SessionView, error)
	Finish(ctx context.Context, applicantID string) (*SessionView, error)
	Close()
}

// SessionView is the presentation snapshot of one session. Options never
// carry correctness; results appear only once the session is finished.
type SessionView struct {
	ApplicantID      string               `json:"applicant_id"`
	Status           models.SessionStatus `json:"status"`
	Question         *models.QuizQuestion `json:"question,omitempty"`
	QuestionNumber   int                  `json:"question_number,omitempty"`
	TotalQuestions   *int                 `json:"total_questions,omitempty"`
	SecondsRemaining int                  `json:"seconds_remaining"`
	SelectedOptionID *string              `json:"selected_option_id,omitempty"`
	Results          *models.QuizResult   `json:"results,omitempty"`
	Degraded         bool                 `json:"degraded,omitempty"`
}

type Options struct {
	// MaxSubmitAttempts bounds consecutive submission failures on one question
	// before the session terminates locally without results.
	MaxSubmitAttempts int
}

const defaultMaxSubmitAttempts = 3

type quizSessionService struct {
	gateway ExamGateway
	store   store.SessionStore
	events  events.EventPublisher
	clock   timer.Clock
	logger  *slog.Logger
	opts    Options

	mu      sync.Mutex
	runners map[string]*sessionRunner
}

// sessionRunner owns the in-memory state of one applicant's session. All
// mutation happens under its mutex; the countdown and HTTP handlers race only
// up to the in-flight guard and the timer epoch.
type sessionRunner struct {
	mu          sync.Mutex
	applicantID string
	session     *models.QuizSession
	selected    *string
	results     *models.QuizResult
	degraded    bool
	inFlight    bool
	failures    int
	timerEpoch  uint64
	countdown   *timer.Countdown
}

func NewQuizSessionService(
	gateway ExamGateway,
	sessionStore store.SessionStore,
	publisher events.EventPublisher,
	clock timer.Clock,
	logger *slog.Logger,
	opts Options,
) QuizService {
	if opts.MaxSubmitAttempts <= 0 {
		opts.MaxSubmitAttempts = defaultMaxSubmitAttempts
	}
	return &quizSessionService{
		gateway: gateway,
		store:   sessionStore,
		events:  publisher,
		clock:   clock,
		logger:  logger,
		opts:    opts,
		runners: make(map[string]*sessionRunner),
	}
}

func (s *quizSessionService) runner(applicantID string) *sessionRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[applicantID]
	if !ok {
		r = &sessionRunner{
			applicantID: applicantID,
			countdown:   timer.NewCountdown(s.clock),
		}
		s.runners[applicantID] = r
	}
	return r
}

// ResumeOrPrompt rehydrates a persisted in-progress session, resuming the
// countdown from the stored remaining time rather than the full question
// limit. Without a usable record the session is simply not started.
func (s *quizSessionService) ResumeOrPrompt(ctx context.Context, applicantID string) (*SessionView, error) {
	r := s.runner(applicantID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return r.viewLocked(), nil
	}

	loaded, err := s.store.Load(ctx, applicantID)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			// Storage failure degrades to "not started"; never blocks.
			s.logger.Warn("Session store read failed",
				"applicant_id", applicantID,
				"error", err)
		}
		return r.viewLocked(), nil
	}
	if loaded.Status != models.StatusInProgress || loaded.CurrentQuestion() == nil {
		if err := s.store.Clear(ctx, applicantID); err != nil {
			s.logger.Warn("Failed to clear stale session record",
				"applicant_id", applicantID,
				"error", err)
		}
		return r.viewLocked(), nil
	}

	r.session = loaded
	r.selected = nil
	r.failures = 0
	s.logger.Info("Resumed quiz session",
		"applicant_id", applicantID,
		"current_index", loaded.CurrentIndex,
		"seconds_remaining", loaded.SecondsRemaining)
	s.startCountdownLocked(r, loaded.SecondsRemaining)
	return r.viewLocked(), nil
}

// Start begins a new attempt through the exam backend. Starting an already
// in-progress session returns its current state instead of a second attempt.
func (s *quizSessionService) Start(ctx context.Context, applicantID string) (*SessionView, error) {
	r := s.runner(applicantID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		if r.session.Status == models.StatusFinished {
			return r.viewLocked(), ErrQuizFinished
		}
		s.logger.Info("Quiz already in progress, returning current state",
			"applicant_id", applicantID)
		return r.viewLocked(), nil
	}

	// A record from a previous process run takes priority over a fresh start.
	if loaded, err := s.store.Load(ctx, applicantID); err == nil &&
		loaded.Status == models.StatusInProgress && loaded.CurrentQuestion() != nil {
		r.session = loaded
		s.logger.Info("Resumed persisted quiz session on start",
			"applicant_id", applicantID,
			"current_index", loaded.CurrentIndex)
		s.startCountdownLocked(r, loaded.SecondsRemaining)
		return r.viewLocked(), nil
	}

	result, err := s.gateway.StartTest(ctx, applicantID)
	if err != nil {
		// No partial session: the applicant stays at "not started" and may retry.
		return nil, fmt.Errorf("failed to start test: %w", err)
	}
	if len(result.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	hint := result.TotalQuestions
	if hint == nil {
		if applicant, err := s.gateway.GetApplicant(ctx, applicantID); err == nil {
			hint = applicant.TotalQuestions
		} else {
			s.logger.Debug("Applicant hint lookup failed",
				"applicant_id", applicantID,
				"error", err)
		}
	}

	r.session = &models.QuizSession{
		ApplicantID:        applicantID,
		Status:             models.StatusInProgress,
		Questions:          result.Questions,
		CurrentIndex:       0,
		SecondsRemaining:   result.Questions[0].TimeLimitSeconds,
		TotalQuestionsHint: hint,
		StartedAt:          time.Now(),
	}
	r.selected = nil
	r.results = nil
	r.degraded = false
	r.failures = 0

	s.saveLocked(ctx, r)
	s.publish(ctx, events.NewQuizEvent(events.EventQuizStarted, events.QuizStartedEvent{
		ApplicantID:    applicantID,
		TotalQuestions: hint,
	}))
	s.logger.Info("Quiz session started",
		"applicant_id", applicantID,
		"first_question_id", result.Questions[0].ID,
		"time_limit_seconds", result.Questions[0].TimeLimitSeconds)

	s.startCountdownLocked(r, r.session.SecondsRemaining)
	return r.viewLocked(), nil
}

// SelectOption records the tentative choice for the question on screen. It
// performs no I/O and leaves the countdown untouched; the last call wins.
// With no active question it is a no-op.
func (s *quizSessionService) SelectOption(applicantID, optionID string) (*SessionView, error) {
	r := s.runner(applicantID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil || r.session.Status != models.StatusInProgress {
		return r.viewLocked(), nil
	}

	question := r.session.CurrentQuestion()
	found := false
	for _, opt := range question.Options {
		if opt.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return r.viewLocked(), ErrUnknownOption
	}

	r.selected = &optionID
	return r.viewLocked(), nil
}

// Submit sends the current question's answer (or nil when nothing was picked)
// to the exam backend and advances or finishes the session per its verdict.
func (s *quizSessionService) Submit(ctx context.Context, applicantID string, trigger SubmitTrigger) (*SessionView, error) {
	return s.submit(ctx, applicantID, trigger, 0, false)
}

func (s *quizSessionService) submit(ctx context.Context, applicantID string, trigger SubmitTrigger, epoch uint64, checkEpoch bool) (*SessionView, error) {
	r := s.runner(applicantID)
	r.mu.Lock()

	// A timeout that fires for a question already left is stale; drop it.
	if checkEpoch && r.timerEpoch != epoch {
		view := r.viewLocked()
		r.mu.Unlock()
		return view, nil
	}
	if r.session == nil || r.session.Status != models.StatusInProgress {
		view := r.viewLocked()
		r.mu.Unlock()
		if trigger == TriggerTimeout {
			return view, nil
		}
		return view, ErrQuizNotInProgress
	}
	if r.inFlight {
		// At most one submission in flight; whoever got here first wins.
		view := r.viewLocked()
		r.mu.Unlock()
		if trigger == TriggerTimeout {
			return view, nil
		}
		return view, ErrSubmissionInFlight
	}

	r.inFlight = true
	r.countdown.Cancel()
	r.timerEpoch++

	question := *r.session.CurrentQuestion()
	selected := r.selected
	questionIndex := r.session.CurrentIndex
	secondsLeft := r.session.SecondsRemaining
	r.mu.Unlock()

	outcome, err := s.gateway.SubmitAnswer(ctx, applicantID, question.ID, selected)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.inFlight = false
		r.failures++
		s.logger.Error("Answer submission failed",
			"applicant_id", applicantID,
			"question_id", question.ID,
			"attempt", r.failures,
			"error", err)

		if r.failures >= s.opts.MaxSubmitAttempts {
			// Terminate locally rather than loop forever on a dead backend.
			s.logger.Warn("Ending quiz after repeated submission failures",
				"applicant_id", applicantID,
				"question_id", question.ID,
				"attempts", r.failures)
			r.degraded = true
			s.finalizeLocked(ctx, r, nil, "degraded")
			return r.viewLocked(), fmt.Errorf("submission failed %d times, quiz ended without results: %w", r.failures, err)
		}

		// Keep the question on screen with a live deadline for the retry.
		s.startCountdownLocked(r, secondsLeft)
		return r.viewLocked(), fmt.Errorf("failed to submit answer: %w", err)
	}

	r.failures = 0
	s.publish(ctx, events.NewQuizEvent(events.EventAnswerSubmitted, events.AnswerSubmittedEvent{
		ApplicantID:   applicantID,
		QuestionID:    question.ID,
		QuestionIndex: questionIndex,
		OptionID:      selected,
		Trigger:       string(trigger),
	}))
	if trigger == TriggerTimeout {
		s.publish(ctx, events.NewQuizEvent(events.EventQuestionTimedOut, events.QuestionTimedOutEvent{
			ApplicantID:   applicantID,
			QuestionID:    question.ID,
			QuestionIndex: questionIndex,
		}))
	}

	if outcome.NextQuestion != nil {
		r.inFlight = false
		next := *outcome.NextQuestion
		if next.Order <= 0 {
			next.Order = len(r.session.Questions) + 1
		}
		r.session.Questions = append(r.session.Questions, next)
		r.session.CurrentIndex++
		r.session.SecondsRemaining = next.TimeLimitSeconds
		r.selected = nil
		if r.session.TotalQuestionsHint == nil && outcome.TotalQuestions != nil {
			r.session.TotalQuestionsHint = outcome.TotalQuestions
		}

		s.saveLocked(ctx, r)
		s.startCountdownLocked(r, next.TimeLimitSeconds)
		return r.viewLocked(), nil
	}

	// Finished, declared or implied. Results may be embedded; otherwise they
	// are fetched once via finishTest after the terminal transition.
	if outcome.Results != nil {
		r.inFlight = false
		s.finalizeLocked(ctx, r, outcome.Results, "completed")
		return r.viewLocked(), nil
	}

	s.finalizeLocked(ctx, r, nil, "completed")
	r.mu.Unlock()
	results, finishErr := s.gateway.FinishTest(ctx, applicantID)
	r.mu.Lock()
	r.inFlight = false
	if finishErr != nil {
		// The session is already cleared; retrying means re-calling Finish.
		s.logger.Error("Failed to fetch final results",
			"applicant_id", applicantID,
			"error", finishErr)
		return r.viewLocked(), fmt.Errorf("failed to fetch final results: %w", finishErr)
	}
	r.results = results
	return r.viewLocked(), nil
}

// Finish ends the exam early, or retries the final-results fetch for a
// session that finished without embedded results.
func (s *quizSessionService) Finish(ctx context.Context, applicantID string) (*SessionView, error) {
	r := s.runner(applicantID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return r.viewLocked(), ErrQuizNotInProgress
	}
	if r.inFlight {
		return r.viewLocked(), ErrSubmissionInFlight
	}

	if r.session.Status == models.StatusFinished {
		if r.results != nil || r.degraded {
			return r.viewLocked(), nil
		}
		// FinishFailure retry path: the record is gone, only results are missing.
		r.inFlight = true
		r.mu.Unlock()
		results, err := s.gateway.FinishTest(ctx, applicantID)
		r.mu.Lock()
		r.inFlight = false
		if err != nil {
			return r.viewLocked(), fmt.Errorf("failed to fetch final results: %w", err)
		}
		r.results = results
		return r.viewLocked(), nil
	}

	r.inFlight = true
	r.countdown.Cancel()
	r.timerEpoch++
	secondsLeft := r.session.SecondsRemaining
	r.mu.Unlock()

	results, err := s.gateway.FinishTest(ctx, applicantID)

	r.mu.Lock()
	r.inFlight = false
	if err != nil {
		// Same discipline as a submission failure: the question stays on
		// screen with a live deadline and the user may retry.
		s.startCountdownLocked(r, secondsLeft)
		return r.viewLocked(), fmt.Errorf("failed to finish test: %w", err)
	}

	s.finalizeLocked(ctx, r, results, "ended_early")
	return r.viewLocked(), nil
}

// Close cancels every live countdown. In-flight submissions complete on
// their own; no new timers fire afterwards.
func (s *quizSessionService) Close() {
	s.mu.Lock()
	runners := make([]*sessionRunner, 0, len(s.runners))
	for _, r := range s.runners {
		runners = append(runners, r)
	}
	s.mu.Unlock()

	for _, r := range runners {
		r.mu.Lock()
		r.countdown.Cancel()
		r.timerEpoch++
		r.mu.Unlock()
	}
}

// startCountdownLocked arms the countdown for the current question. Ticks
// persist the remaining time so a reload resumes with an approximately
// correct clock; the timeout submits with whatever is selected, or nil.
func (s *quizSessionService) startCountdownLocked(r *sessionRunner, seconds int) {
	r.timerEpoch++
	epoch := r.timerEpoch
	applicantID := r.applicantID

	r.countdown.Start(seconds,
		func(remaining int) {
			r.mu.Lock()
			if r.timerEpoch == epoch && r.session != nil && r.session.Status == models.StatusInProgress {
				r.session.SecondsRemaining = remaining
				s.saveLocked(context.Background(), r)
			}
			r.mu.Unlock()
		},
		func() {
			if _, err := s.submit(context.Background(), applicantID, TriggerTimeout, epoch, true); err != nil {
				s.logger.Error("Timeout auto-submit failed",
					"applicant_id", applicantID,
					"error", err)
			}
		})
}

// finalizeLocked performs the terminal transition exactly once per session:
// cancel the countdown, clear the store record, publish the finish event.
func (s *quizSessionService) finalizeLocked(ctx context.Context, r *sessionRunner, results *models.QuizResult, reason string) {
	r.session.Status = models.StatusFinished
	r.session.SecondsRemaining = 0
	r.results = results
	r.countdown.Cancel()
	r.timerEpoch++

	if err := s.store.Clear(ctx, r.applicantID); err != nil {
		s.logger.Warn("Failed to clear session record",
			"applicant_id", r.applicantID,
			"error", err)
	}

	s.publish(ctx, events.NewQuizEvent(events.EventQuizFinished, events.QuizFinishedEvent{
		ApplicantID: r.applicantID,
		Reason:      reason,
		Result:      results,
	}))
	s.logger.Info("Quiz session finished",
		"applicant_id", r.applicantID,
		"reason", reason,
		"questions_answered", len(r.session.Questions))
}

// saveLocked persists the session; failures degrade to memory-only operation
// for the rest of the session and are never surfaced as blocking errors.
func (s *quizSessionService) saveLocked(ctx context.Context, r *sessionRunner) {
	if err := s.store.Save(ctx, r.applicantID, r.session); err != nil {
		s.logger.Warn("Session persistence failed, continuing in memory",
			"applicant_id", r.applicantID,
			"error", err)
	}
}

func (s *quizSessionService) publish(ctx context.Context, event *events.QuizEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishQuizEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish quiz event",
			"event_type", event.Type,
			"error", err)
	}
}

func (r *sessionRunner) viewLocked() *SessionView {
	view := &SessionView{
		ApplicantID: r.applicantID,
		Status:      models.StatusNotStarted,
	}
	if r.session == nil {
		return view
	}

	view.Status = r.session.Status
	view.TotalQuestions = r.session.TotalQuestionsHint

	switch r.session.Status {
	case models.StatusInProgress:
		if q := r.session.CurrentQuestion(); q != nil {
			question := *q
			question.Options = append([]models.QuestionOption(nil), q.Options...)
			view.Question = &question
			view.QuestionNumber = r.session.CurrentIndex + 1
		}
		view.SecondsRemaining = r.session.SecondsRemaining
		view.SelectedOptionID = r.selected
	case models.StatusFinished:
		view.Results = r.results
		view.Degraded = r.degraded
	}
	return view
}
