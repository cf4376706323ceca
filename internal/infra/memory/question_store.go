package memory

import (
	"context"
	"sort"
	"sync"

	"medexam-service/internal/domain"
)

// QuestionStore is an in-memory question bank (useful for tests/demos and
// as the fallback when no Postgres is configured).
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[int64]domain.Question
	nextID    int64
}

func NewQuestionStore(questions []domain.Question) *QuestionStore {
	s := &QuestionStore{
		questions: make(map[int64]domain.Question, len(questions)),
		nextID:    1,
	}
	for _, q := range questions {
		if q.ID == 0 {
			q.ID = s.nextID
		}
		s.questions[q.ID] = q
		if q.ID >= s.nextID {
			s.nextID = q.ID + 1
		}
	}
	return s
}

func (s *QuestionStore) ListActive(_ context.Context, topic string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []domain.Question
	for _, q := range s.questions {
		if !q.IsActive {
			continue
		}
		if topic != "" && q.Topic != topic {
			continue
		}
		active = append(active, q)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

func (s *QuestionStore) GetByIDs(_ context.Context, ids []int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (s *QuestionStore) GetByID(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

// Insert adds a question to the bank and assigns it an id.
func (s *QuestionStore) Insert(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextID
	s.nextID++
	s.questions[q.ID] = q
	return q, nil
}

// ListRecent returns up to limit questions, newest id first.
func (s *QuestionStore) ListRecent(_ context.Context, limit int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Count reports the number of questions in the bank.
func (s *QuestionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions), nil
}
