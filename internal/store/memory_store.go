package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vacancy-portal/quiz-session-service/internal/models"
)

// MemoryStore is an in-memory SessionStore. It backs tests and the degraded
// mode where Redis is unreachable; records are serialized the same way as the
// Redis store so both share load/save semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, applicantID string) (*models.QuizSession, error) {
	s.mu.RLock()
	data, ok := s.records[applicantID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	var session models.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemoryStore) Save(ctx context.Context, applicantID string, session *models.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[applicantID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, applicantID string) error {
	s.mu.Lock()
	delete(s.records, applicantID)
	s.mu.Unlock()
	return nil
}
