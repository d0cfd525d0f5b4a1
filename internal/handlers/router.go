package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vacancy-portal/quiz-session-service/internal/services"
	"github.com/vacancy-portal/quiz-session-service/internal/utils"
	"github.com/vacancy-portal/quiz-session-service/internal/validator"
)

type HandlerManager struct {
	quizHandler *QuizHandler
}

func NewHandlerManager(
	quizService services.QuizService,
	v *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		quizHandler: NewQuizHandler(quizService, v, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		quiz := v1.Group("/quiz/:applicant_id")
		{
			quiz.GET("", hm.quizHandler.GetState)
			quiz.POST("/start", hm.quizHandler.Start)
			quiz.POST("/select", hm.quizHandler.Select)
			quiz.POST("/submit", hm.quizHandler.Submit)
			quiz.POST("/finish", hm.quizHandler.Finish)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-session-service",
		})
	})
}
