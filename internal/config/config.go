package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	RedisURL    string

	// Exam backend (the opaque REST API providing questions and scoring).
	ExamAPIBaseURL string
	ExamAPITimeout time.Duration

	// Quiz session behavior.
	DefaultQuestionSeconds int
	MaxSubmitAttempts      int
	SessionTTL             time.Duration

	Events EventConfig
}

func LoadConfig() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		Environment:            getEnv("ENVIRONMENT", "development"),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		ExamAPIBaseURL:         getEnv("EXAM_API_BASE_URL", "http://localhost:5067/api"),
		ExamAPITimeout:         getEnvDuration("EXAM_API_TIMEOUT", 15*time.Second),
		DefaultQuestionSeconds: getEnvInt("DEFAULT_QUESTION_SECONDS", 60),
		MaxSubmitAttempts:      getEnvInt("MAX_SUBMIT_ATTEMPTS", 3),
		SessionTTL:             getEnvDuration("SESSION_TTL", 24*time.Hour),
		Events: EventConfig{
			Enabled:      getEnvBool("EVENTS_ENABLED", false),
			Publisher:    getEnv("EVENTS_PUBLISHER", "kafka"),
			KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
			QuizTopic:    getEnv("QUIZ_EVENTS_TOPIC", "quiz-sessions"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
