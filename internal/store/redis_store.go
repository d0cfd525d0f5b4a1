package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vacancy-portal/quiz-session-service/internal/models"
)

const defaultSessionTTL = 24 * time.Hour

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore returns a SessionStore backed by Redis. Each applicant owns a
// single JSON record under "quiz:<applicantID>" with a TTL so abandoned
// sessions age out.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &redisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(applicantID string) string {
	return fmt.Sprintf("quiz:%s", applicantID)
}

func (s *redisStore) Load(ctx context.Context, applicantID string) (*models.QuizSession, error) {
	data, err := s.client.Get(ctx, sessionKey(applicantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", applicantID, err)
	}

	var session models.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupt record: treat as absent so the caller restarts cleanly.
		s.logger.Warn("Discarding corrupt session record",
			"applicant_id", applicantID,
			"error", err)
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *redisStore) Save(ctx context.Context, applicantID string, session *models.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", applicantID, err)
	}
	if err := s.client.Set(ctx, sessionKey(applicantID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", applicantID, err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, applicantID string) error {
	if err := s.client.Del(ctx, sessionKey(applicantID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", applicantID, err)
	}
	return nil
}
