package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"medexam-service/internal/domain"
)

// RecordStore keeps sessions and attempts in memory. It mirrors the
// Postgres store's contract: sessions are point-updatable, attempts are
// insert-only and listed in creation order.
type RecordStore struct {
	mu            sync.RWMutex
	sessions      map[string]domain.Session
	attempts      []domain.Attempt
	nextAttemptID int64
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		sessions:      make(map[string]domain.Session),
		nextAttemptID: 1,
	}
}

func (s *RecordStore) InsertSession(_ context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *RecordStore) UpdateSession(_ context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.Session{}, domain.ErrNoOpenSession
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *RecordStore) FindLatestOpenSession(_ context.Context, userID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest domain.Session
	found := false
	for _, session := range s.sessions {
		if session.UserID != userID || session.Finished() {
			continue
		}
		if !found || session.StartedAt.After(latest.StartedAt) {
			latest = session
			found = true
		}
	}
	if !found {
		return domain.Session{}, domain.ErrNoOpenSession
	}
	return latest, nil
}

func (s *RecordStore) InsertAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.ID = s.nextAttemptID
	s.nextAttemptID++
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	s.attempts = append(s.attempts, attempt)
	return attempt, nil
}

func (s *RecordStore) ListAttemptsBySession(_ context.Context, sessionID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.Attempt
	for _, a := range s.attempts {
		if a.SessionID == sessionID {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// AttemptCount reports the total stored attempts for a session, including
// superseded practice re-answers.
func (s *RecordStore) AttemptCount(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.attempts {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n
}
