package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vacancy-portal/quiz-session-service/internal/events"
	"github.com/vacancy-portal/quiz-session-service/internal/examapi"
	"github.com/vacancy-portal/quiz-session-service/internal/models"
	"github.com/vacancy-portal/quiz-session-service/internal/store"
	"github.com/vacancy-portal/quiz-session-service/internal/timer"
)

// MockExamGateway is a mock implementation of ExamGateway
type MockExamGateway struct {
	mock.Mock
}

func (m *MockExamGateway) StartTest(ctx context.Context, applicantID string) (*examapi.StartTestResult, error) {
	args := m.Called(ctx, applicantID)
	var result *examapi.StartTestResult
	if v := args.Get(0); v != nil {
		result = v.(*examapi.StartTestResult)
	}
	return result, args.Error(1)
}

func (m *MockExamGateway) SubmitAnswer(ctx context.Context, applicantID, questionID string, optionID *string) (*examapi.SubmitOutcome, error) {
	args := m.Called(ctx, applicantID, questionID, optionID)
	var outcome *examapi.SubmitOutcome
	if v := args.Get(0); v != nil {
		outcome = v.(*examapi.SubmitOutcome)
	}
	return outcome, args.Error(1)
}

func (m *MockExamGateway) FinishTest(ctx context.Context, applicantID string) (*models.QuizResult, error) {
	args := m.Called(ctx, applicantID)
	var result *models.QuizResult
	if v := args.Get(0); v != nil {
		result = v.(*models.QuizResult)
	}
	return result, args.Error(1)
}

func (m *MockExamGateway) GetApplicant(ctx context.Context, applicantID string) (*examapi.Applicant, error) {
	args := m.Called(ctx, applicantID)
	var applicant *examapi.Applicant
	if v := args.Get(0); v != nil {
		applicant = v.(*examapi.Applicant)
	}
	return applicant, args.Error(1)
}

type serviceFixture struct {
	gateway   *MockExamGateway
	store     *store.MemoryStore
	publisher *events.MockEventPublisher
	clock     *timer.FakeClock
	service   QuizService
}

func newFixture(t *testing.T, opts Options) *serviceFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &serviceFixture{
		gateway:   &MockExamGateway{},
		store:     store.NewMemoryStore(),
		publisher: events.NewMockEventPublisher(logger),
		clock:     timer.NewFakeClock(),
	}
	f.service = NewQuizSessionService(f.gateway, f.store, f.publisher, f.clock, logger, opts)
	t.Cleanup(f.service.Close)
	return f
}

func (f *serviceFixture) eventsOfType(eventType events.EventType) []events.QuizEvent {
	var out []events.QuizEvent
	for _, e := range f.publisher.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func question(id string, seconds int, optionIDs ...string) models.QuizQuestion {
	q := models.QuizQuestion{
		ID:               id,
		Text:             "Question " + id,
		TimeLimitSeconds: seconds,
	}
	for _, optID := range optionIDs {
		q.Options = append(q.Options, models.QuestionOption{ID: optID, Text: "Option " + optID})
	}
	return q
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestStart_BeginsSessionWithFirstQuestion(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1", "o-2")},
		TotalQuestions: intPtr(3),
	}, nil).Once()

	view, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, view.Status)
	require.NotNil(t, view.Question)
	assert.Equal(t, "q-1", view.Question.ID)
	assert.Equal(t, 1, view.QuestionNumber)
	assert.Equal(t, 60, view.SecondsRemaining)
	require.NotNil(t, view.TotalQuestions)
	assert.Equal(t, 3, *view.TotalQuestions)
	assert.Nil(t, view.SelectedOptionID)
	assert.Nil(t, view.Results)

	// The record is persisted immediately so a reload can resume.
	saved, err := f.store.Load(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, saved.Status)

	started := f.eventsOfType(events.EventQuizStarted)
	require.Len(t, started, 1)
}

func TestStart_IsIdempotentWhileInProgress(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1")},
		TotalQuestions: intPtr(1),
	}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, view.Status)
	assert.Equal(t, "q-1", view.Question.ID)

	f.gateway.AssertNumberOfCalls(t, "StartTest", 1)
}

func TestStart_FailureLeavesSessionNotStarted(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").
		Return(nil, &examapi.APIError{StatusCode: 503, Message: "unavailable"}).Once()
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, examapi.ErrBackend)

	// The failed attempt left nothing behind; a retry starts cleanly.
	view, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, view.Status)
}

func TestStart_NoQuestionsIsAnError(t *testing.T) {
	f := newFixture(t, Options{})

	f.gateway.On("StartTest", mock.Anything, "applicant-1").
		Return(&examapi.StartTestResult{}, nil).Once()

	_, err := f.service.Start(context.Background(), "applicant-1")
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestSelectOption_LastSelectionWins(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1", "o-2")},
	}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.SelectOption("applicant-1", "o-1")
	require.NoError(t, err)
	require.NotNil(t, view.SelectedOptionID)
	assert.Equal(t, "o-1", *view.SelectedOptionID)

	view, err = f.service.SelectOption("applicant-1", "o-2")
	require.NoError(t, err)
	assert.Equal(t, "o-2", *view.SelectedOptionID)
}

func TestSelectOption_UnknownOptionRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.SelectOption("applicant-1", "o-99")
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.Nil(t, view.SelectedOptionID)
}

func TestSubmit_AdvancesToNextQuestionAndClearsSelection(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1", "o-2")},
		TotalQuestions: intPtr(2),
	}, nil).Once()
	next := question("q-2", 30, "o-3")
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", strPtr("o-2")).
		Return(&examapi.SubmitOutcome{NextQuestion: &next}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	_, err = f.service.SelectOption("applicant-1", "o-2")
	require.NoError(t, err)

	view, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, view.Status)
	assert.Equal(t, "q-2", view.Question.ID)
	assert.Equal(t, 2, view.QuestionNumber)
	assert.Equal(t, 30, view.SecondsRemaining)
	assert.Nil(t, view.SelectedOptionID)

	submitted := f.eventsOfType(events.EventAnswerSubmitted)
	require.Len(t, submitted, 1)
	payload := submitted[0].Data.(events.AnswerSubmittedEvent)
	assert.Equal(t, "q-1", payload.QuestionID)
	require.NotNil(t, payload.OptionID)
	assert.Equal(t, "o-2", *payload.OptionID)
	assert.Equal(t, string(TriggerManual), payload.Trigger)
}

func TestSubmit_WithoutSessionReturnsNotInProgress(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.service.Submit(context.Background(), "applicant-1", TriggerManual)
	assert.ErrorIs(t, err, ErrQuizNotInProgress)
}

func TestSubmit_EmbeddedResultsFinishWithoutFinishCall(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	results := &models.QuizResult{TotalQuestions: 1, CorrectAnswers: 1, ScorePercent: 100}
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1")},
		TotalQuestions: intPtr(1),
	}, nil).Once()
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", strPtr("o-1")).
		Return(&examapi.SubmitOutcome{IsFinished: true, Results: results}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	_, err = f.service.SelectOption("applicant-1", "o-1")
	require.NoError(t, err)

	view, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFinished, view.Status)
	require.NotNil(t, view.Results)
	assert.Equal(t, 1, view.Results.CorrectAnswers)
	assert.Nil(t, view.Question)

	f.gateway.AssertNotCalled(t, "FinishTest", mock.Anything, mock.Anything)

	// Terminal transition clears the persisted record.
	_, err = f.store.Load(ctx, "applicant-1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	finished := f.eventsOfType(events.EventQuizFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, "completed", finished[0].Data.(events.QuizFinishedEvent).Reason)
}

func TestSubmit_FinishedWithoutResultsFetchesThem(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	results := &models.QuizResult{TotalQuestions: 1, CorrectAnswers: 0, WrongAnswers: 1}
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1")},
		TotalQuestions: intPtr(1),
	}, nil).Once()
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", (*string)(nil)).
		Return(&examapi.SubmitOutcome{IsFinished: true}, nil).Once()
	f.gateway.On("FinishTest", mock.Anything, "applicant-1").Return(results, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFinished, view.Status)
	require.NotNil(t, view.Results)
	assert.Equal(t, 1, view.Results.WrongAnswers)
	f.gateway.AssertNumberOfCalls(t, "FinishTest", 1)
}

func TestSubmit_FailureRestartsCountdownAndAllowsRetry(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1")},
		TotalQuestions: intPtr(1),
	}, nil).Once()
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", strPtr("o-1")).
		Return(nil, &examapi.APIError{StatusCode: 500, Message: "boom"}).Once()
	results := &models.QuizResult{TotalQuestions: 1, CorrectAnswers: 1, ScorePercent: 100}
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", strPtr("o-1")).
		Return(&examapi.SubmitOutcome{IsFinished: true, Results: results}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	_, err = f.service.SelectOption("applicant-1", "o-1")
	require.NoError(t, err)

	view, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, examapi.ErrBackend)

	// The question stays live; the selection survives for the retry.
	assert.Equal(t, models.StatusInProgress, view.Status)
	assert.Equal(t, "q-1", view.Question.ID)
	require.NotNil(t, view.SelectedOptionID)
	assert.Equal(t, "o-1", *view.SelectedOptionID)

	view, err = f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Status)
}

func TestSubmit_RepeatedFailuresDegradeToFinished(t *testing.T) {
	f := newFixture(t, Options{MaxSubmitAttempts: 2})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", (*string)(nil)).
		Return(nil, &examapi.APIError{StatusCode: 500, Message: "boom"}).Twice()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.Error(t, err)

	view, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.Error(t, err)

	assert.Equal(t, models.StatusFinished, view.Status)
	assert.True(t, view.Degraded)
	assert.Nil(t, view.Results)

	_, err = f.store.Load(ctx, "applicant-1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	finished := f.eventsOfType(events.EventQuizFinished)
	require.Len(t, finished, 1)
	payload := finished[0].Data.(events.QuizFinishedEvent)
	assert.Equal(t, "degraded", payload.Reason)
	assert.Nil(t, payload.Result)
}

func TestSubmit_OnlyOneSubmissionInFlight(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()

	release := make(chan struct{})
	results := &models.QuizResult{TotalQuestions: 1}
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", (*string)(nil)).
		Run(func(mock.Arguments) { <-release }).
		Return(&examapi.SubmitOutcome{IsFinished: true, Results: results}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
		firstDone <- err
	}()

	// Wait until the first submission reached the gateway.
	require.Eventually(t, func() bool {
		select {
		case release <- struct{}{}:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, <-firstDone)
	f.gateway.AssertNumberOfCalls(t, "SubmitAnswer", 1)
}

func TestSubmit_SecondManualSubmitWhileInFlightConflicts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()

	entered := make(chan struct{})
	release := make(chan struct{})
	results := &models.QuizResult{TotalQuestions: 1}
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", (*string)(nil)).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&examapi.SubmitOutcome{IsFinished: true, Results: results}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.service.Submit(ctx, "applicant-1", TriggerManual)
		firstDone <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the gateway")
	}

	_, err = f.service.Submit(ctx, "applicant-1", TriggerManual)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-firstDone)
	f.gateway.AssertNumberOfCalls(t, "SubmitAnswer", 1)
}

func TestTimeout_SubmitsNilOptionAndAdvances(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 3, "o-1")},
		TotalQuestions: intPtr(2),
	}, nil).Once()
	next := question("q-2", 30, "o-3")
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", (*string)(nil)).
		Return(&examapi.SubmitOutcome{NextQuestion: &next}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	f.clock.Advance(3)

	require.Eventually(t, func() bool {
		view, err := f.service.ResumeOrPrompt(ctx, "applicant-1")
		return err == nil && view.Question != nil && view.Question.ID == "q-2"
	}, 2*time.Second, 10*time.Millisecond)

	f.gateway.AssertNumberOfCalls(t, "SubmitAnswer", 1)

	timedOut := f.eventsOfType(events.EventQuestionTimedOut)
	require.Len(t, timedOut, 1)
	assert.Equal(t, "q-1", timedOut[0].Data.(events.QuestionTimedOutEvent).QuestionID)

	submitted := f.eventsOfType(events.EventAnswerSubmitted)
	require.Len(t, submitted, 1)
	assert.Nil(t, submitted[0].Data.(events.AnswerSubmittedEvent).OptionID)
	assert.Equal(t, string(TriggerTimeout), submitted[0].Data.(events.AnswerSubmittedEvent).Trigger)
}

func TestTicks_PersistRemainingTime(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 10, "o-1")},
	}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	f.clock.Advance(4)

	require.Eventually(t, func() bool {
		saved, err := f.store.Load(ctx, "applicant-1")
		return err == nil && saved.SecondsRemaining == 6
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResume_RestoresPersistedSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	persisted := &models.QuizSession{
		ApplicantID:  "applicant-1",
		Status:       models.StatusInProgress,
		CurrentIndex: 1,
		Questions: []models.QuizQuestion{
			question("q-1", 60, "o-1"),
			question("q-2", 60, "o-2", "o-3"),
		},
		SecondsRemaining:   42,
		TotalQuestionsHint: intPtr(4),
		StartedAt:          time.Now(),
	}
	require.NoError(t, f.store.Save(ctx, "applicant-1", persisted))

	view, err := f.service.ResumeOrPrompt(ctx, "applicant-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, view.Status)
	require.NotNil(t, view.Question)
	assert.Equal(t, "q-2", view.Question.ID)
	assert.Equal(t, 2, view.QuestionNumber)
	assert.Equal(t, 42, view.SecondsRemaining)
	assert.Nil(t, view.SelectedOptionID)

	// The countdown resumes from the stored remaining time, not the full limit.
	f.clock.Advance(1)
	require.Eventually(t, func() bool {
		v, err := f.service.ResumeOrPrompt(ctx, "applicant-1")
		return err == nil && v.SecondsRemaining == 41
	}, 2*time.Second, 10*time.Millisecond)

	f.gateway.AssertNotCalled(t, "StartTest", mock.Anything, mock.Anything)
}

func TestResume_WithoutRecordReportsNotStarted(t *testing.T) {
	f := newFixture(t, Options{})

	view, err := f.service.ResumeOrPrompt(context.Background(), "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, view.Status)
	assert.Nil(t, view.Question)
}

func TestFinish_EndsEarlyWithResults(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	results := &models.QuizResult{TotalQuestions: 5, CorrectAnswers: 2, WrongAnswers: 3, ScorePercent: 40}
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions:      []models.QuizQuestion{question("q-1", 60, "o-1")},
		TotalQuestions: intPtr(5),
	}, nil).Once()
	f.gateway.On("FinishTest", mock.Anything, "applicant-1").Return(results, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.Finish(ctx, "applicant-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFinished, view.Status)
	require.NotNil(t, view.Results)
	assert.Equal(t, 2, view.Results.CorrectAnswers)

	_, err = f.store.Load(ctx, "applicant-1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	finished := f.eventsOfType(events.EventQuizFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, "ended_early", finished[0].Data.(events.QuizFinishedEvent).Reason)
}

func TestFinish_FailureKeepsSessionInProgress(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()
	f.gateway.On("FinishTest", mock.Anything, "applicant-1").
		Return(nil, errors.New("connection refused")).Once()
	results := &models.QuizResult{TotalQuestions: 1}
	f.gateway.On("FinishTest", mock.Anything, "applicant-1").Return(results, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.Finish(ctx, "applicant-1")
	require.Error(t, err)
	assert.Equal(t, models.StatusInProgress, view.Status)

	view, err = f.service.Finish(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Status)
	require.NotNil(t, view.Results)
}

func TestFinish_WithoutSessionReturnsNotInProgress(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.service.Finish(context.Background(), "applicant-1")
	assert.ErrorIs(t, err, ErrQuizNotInProgress)
}

func TestFinish_IsIdempotentOnceFinished(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	results := &models.QuizResult{TotalQuestions: 1, CorrectAnswers: 1}
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()
	f.gateway.On("FinishTest", mock.Anything, "applicant-1").Return(results, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	_, err = f.service.Finish(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.Finish(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Status)
	require.NotNil(t, view.Results)

	f.gateway.AssertNumberOfCalls(t, "FinishTest", 1)
}

func TestStart_AfterFinishedReturnsQuizFinished(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	results := &models.QuizResult{TotalQuestions: 1}
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()
	f.gateway.On("FinishTest", mock.Anything, "applicant-1").Return(results, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	_, err = f.service.Finish(ctx, "applicant-1")
	require.NoError(t, err)

	view, err := f.service.Start(ctx, "applicant-1")
	assert.ErrorIs(t, err, ErrQuizFinished)
	assert.Equal(t, models.StatusFinished, view.Status)
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	results := &models.QuizResult{TotalQuestions: 1, CorrectAnswers: 1}
	f.gateway.On("StartTest", mock.Anything, "applicant-1").Return(&examapi.StartTestResult{
		Questions: []models.QuizQuestion{question("q-1", 60, "o-1")},
	}, nil).Once()
	f.gateway.On("SubmitAnswer", mock.Anything, "applicant-1", "q-1", (*string)(nil)).
		Return(&examapi.SubmitOutcome{IsFinished: true, Results: results}, nil).Once()

	_, err := f.service.Start(ctx, "applicant-1")
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, "applicant-1", TriggerManual)
	require.NoError(t, err)

	// Nothing moves a finished session back.
	view, err := f.service.ResumeOrPrompt(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Status)

	view, err = f.service.SelectOption("applicant-1", "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Status)

	_, err = f.service.Submit(ctx, "applicant-1", TriggerManual)
	assert.ErrorIs(t, err, ErrQuizNotInProgress)
}
