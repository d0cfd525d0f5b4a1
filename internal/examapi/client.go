package examapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"

	"github.com/vacancy-portal/quiz-session-service/internal/models"
)

// ErrBackend marks any failure talking to the exam backend (transport error
// or non-2xx response). Callers classify with errors.Is.
var ErrBackend = errors.New("exam backend error")

// APIError is a non-2xx response from the exam backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exam backend returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrBackend }

// Client talks to the exam REST backend. The backend owns all exam content
// and scoring; this client only normalizes its wire quirks (single-question
// payloads, missing time limits, response envelopes).
type Client struct {
	http   *req.Client
	logger *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := req.C().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetCommonContentType("application/json").
		SetUserAgent("quiz-session-service")

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// StartTest begins a quiz attempt. The response is normalized to at least one
// question: a bare question object becomes a one-element list.
func (c *Client) StartTest(ctx context.Context, applicantID string) (*StartTestResult, error) {
	body := map[string]interface{}{"applicantId": applicantID}

	data, err := c.post(ctx, "/applicants/start-test", body)
	if err != nil {
		return nil, err
	}

	wireQuestions, err := decodeQuestions(data)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable start-test payload: %s", ErrBackend, err)
	}

	result := &StartTestResult{}
	for i, wq := range wireQuestions {
		if result.TotalQuestions == nil && wq.TotalQuestions != nil {
			result.TotalQuestions = wq.TotalQuestions
		}
		result.Questions = append(result.Questions, wq.toModel(i+1))
	}
	return result, nil
}

// SubmitAnswer reports the applicant's answer for one question. A nil
// optionID is a valid request meaning no answer was selected.
func (c *Client) SubmitAnswer(ctx context.Context, applicantID, questionID string, optionID *string) (*SubmitOutcome, error) {
	body := map[string]interface{}{
		"applicantId":      applicantID,
		"questionId":       questionID,
		"questionOptionId": optionID,
	}

	data, err := c.post(ctx, "/applicants/submit-answer", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		NextQuestion *wireQuestion `json:"nextQuestion"`
		IsFinished   bool          `json:"isFinished"`
		Results      *wireResult   `json:"results"`
		FinishResult *wireResult   `json:"finishResult"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("%w: undecodable submit-answer payload: %s", ErrBackend, err)
		}
	}

	outcome := &SubmitOutcome{IsFinished: resp.IsFinished}
	if resp.NextQuestion != nil {
		question := resp.NextQuestion.toModel(0)
		outcome.NextQuestion = &question
		outcome.TotalQuestions = resp.NextQuestion.TotalQuestions
	}
	switch {
	case resp.Results != nil:
		outcome.Results = resp.Results.toModel()
	case resp.FinishResult != nil:
		outcome.Results = resp.FinishResult.toModel()
	}
	return outcome, nil
}

// FinishTest closes the attempt and returns the final scoring.
func (c *Client) FinishTest(ctx context.Context, applicantID string) (*models.QuizResult, error) {
	body := map[string]interface{}{"applicantId": applicantID}

	data, err := c.post(ctx, "/applicants/finish-test", body)
	if err != nil {
		return nil, err
	}

	var result wireResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: undecodable finish-test payload: %s", ErrBackend, err)
	}
	return result.toModel(), nil
}

// GetApplicant fetches applicant metadata; used only for the optional
// "this exam has N questions" hint.
func (c *Client) GetApplicant(ctx context.Context, applicantID string) (*Applicant, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/applicants/" + applicantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBackend, err)
	}

	data, err := c.unwrap(resp)
	if err != nil {
		return nil, err
	}

	var wa wireApplicant
	if err := json.Unmarshal(data, &wa); err != nil {
		return nil, fmt.Errorf("%w: undecodable applicant payload: %s", ErrBackend, err)
	}
	return &Applicant{
		ID:             string(wa.ID),
		FullName:       wa.FullName,
		TotalQuestions: wa.TotalQuestions,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBackend, err)
	}
	return c.unwrap(resp)
}

// unwrap peels the backend's {message, data} envelope. A payload without the
// envelope is passed through as-is.
func (c *Client) unwrap(resp *req.Response) (json.RawMessage, error) {
	raw := resp.Bytes()

	if resp.IsErrorState() {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
			apiErr.Message = env.Message
		} else {
			apiErr.Message = string(raw)
		}
		c.logger.Warn("Exam backend rejected request",
			"status", resp.StatusCode,
			"message", apiErr.Message)
		return nil, apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Data, nil
	}
	return raw, nil
}

// decodeQuestions normalizes the three shapes startTest may answer with:
// {questions: [...]}, a bare list, or a single question object.
func decodeQuestions(data json.RawMessage) ([]wireQuestion, error) {
	var wrapped struct {
		Questions []wireQuestion `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Questions) > 0 {
		return wrapped.Questions, nil
	}

	var list []wireQuestion
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var single wireQuestion
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	if single.ID == "" && single.Text == "" {
		return nil, nil
	}
	return []wireQuestion{single}, nil
}
