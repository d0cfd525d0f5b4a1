package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vacancy-portal/quiz-session-service/internal/config"
	"github.com/vacancy-portal/quiz-session-service/internal/examapi"
	"github.com/vacancy-portal/quiz-session-service/internal/handlers"
	"github.com/vacancy-portal/quiz-session-service/internal/services"
	"github.com/vacancy-portal/quiz-session-service/internal/store"
	"github.com/vacancy-portal/quiz-session-service/internal/timer"
	"github.com/vacancy-portal/quiz-session-service/internal/utils"
	"github.com/vacancy-portal/quiz-session-service/internal/validator"
	"github.com/vacancy-portal/quiz-session-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "development" {
		logger = utils.NewDevelopmentLogger()
		gin.SetMode(gin.DebugMode)
	} else {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	sessionStore := store.NewRedisStore(redisClient, cfg.SessionTTL, utils.ToSlogLogger(logger))

	examClient := examapi.NewClient(cfg.ExamAPIBaseURL, cfg.ExamAPITimeout, utils.ToSlogLogger(logger))

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	quizService := services.NewQuizSessionService(
		examClient,
		sessionStore,
		publisher,
		timer.NewClock(),
		utils.ToSlogLogger(logger),
		services.Options{MaxSubmitAttempts: cfg.MaxSubmitAttempts},
	)
	defer quizService.Close()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(quizService, validator.New(), logger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting quiz session service", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
