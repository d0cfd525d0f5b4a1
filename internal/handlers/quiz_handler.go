package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vacancy-portal/quiz-session-service/internal/examapi"
	"github.com/vacancy-portal/quiz-session-service/internal/services"
	"github.com/vacancy-portal/quiz-session-service/internal/utils"
	"github.com/vacancy-portal/quiz-session-service/internal/validator"
)

// QuizHandler exposes the quiz session lifecycle over HTTP.
type QuizHandler struct {
	BaseHandler
	service   services.QuizService
	validator *validator.Validator
}

func NewQuizHandler(service services.QuizService, v *validator.Validator, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		validator:   v,
	}
}

// SelectOptionRequest carries the option the applicant picked for the
// current question.
type SelectOptionRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

// GetState returns the current session view, resuming a persisted
// session when one exists.
func (h *QuizHandler) GetState(c *gin.Context) {
	applicantID := c.Param("applicant_id")

	view, err := h.service.ResumeOrPrompt(c.Request.Context(), applicantID)
	if err != nil {
		h.respondServiceError(c, err, "Failed to load quiz session")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Quiz session state", view)
}

// Start begins the quiz for an applicant, or returns the in-progress
// session when one already exists.
func (h *QuizHandler) Start(c *gin.Context) {
	applicantID := c.Param("applicant_id")

	view, err := h.service.Start(c.Request.Context(), applicantID)
	if err != nil {
		h.respondServiceError(c, err, "Failed to start quiz")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Quiz started", view)
}

// Select records the applicant's answer choice for the current question.
func (h *QuizHandler) Select(c *gin.Context) {
	applicantID := c.Param("applicant_id")

	var req SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	// Rehydrate the session first so a selection right after a process
	// restart still lands on the persisted question.
	if _, err := h.service.ResumeOrPrompt(c.Request.Context(), applicantID); err != nil {
		h.respondServiceError(c, err, "Failed to load quiz session")
		return
	}

	view, err := h.service.SelectOption(applicantID, req.OptionID)
	if err != nil {
		h.respondServiceError(c, err, "Failed to select option")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Option selected", view)
}

// Submit sends the currently selected answer to the exam backend and
// advances the session.
func (h *QuizHandler) Submit(c *gin.Context) {
	applicantID := c.Param("applicant_id")

	if _, err := h.service.ResumeOrPrompt(c.Request.Context(), applicantID); err != nil {
		h.respondServiceError(c, err, "Failed to load quiz session")
		return
	}

	view, err := h.service.Submit(c.Request.Context(), applicantID, services.TriggerManual)
	if err != nil {
		h.respondServiceError(c, err, "Failed to submit answer")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer submitted", view)
}

// Finish ends the quiz early, or retrieves final results for a session
// that already reached its last question.
func (h *QuizHandler) Finish(c *gin.Context) {
	applicantID := c.Param("applicant_id")

	if _, err := h.service.ResumeOrPrompt(c.Request.Context(), applicantID); err != nil {
		h.respondServiceError(c, err, "Failed to load quiz session")
		return
	}

	view, err := h.service.Finish(c.Request.Context(), applicantID)
	if err != nil {
		h.respondServiceError(c, err, "Failed to finish quiz")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Quiz finished", view)
}

func (h *QuizHandler) respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, message, err, err.Error())
	case errors.Is(err, services.ErrUnknownOption):
		h.RespondWithError(c, http.StatusBadRequest, message, err, err.Error())
	case errors.Is(err, services.ErrNoQuestions):
		h.RespondWithError(c, http.StatusBadGateway, message, err, err.Error())
	case errors.Is(err, examapi.ErrBackend):
		h.RespondWithError(c, http.StatusBadGateway, message, err, err.Error())
	default:
		h.RespondWithError(c, http.StatusInternalServerError, message, err)
	}
}
