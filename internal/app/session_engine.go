package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"medexam-service/internal/domain"
)

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	ListActive(ctx context.Context, topic string) ([]domain.Question, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Question, error)
}

// RecordStore persists sessions and attempts. Each call is an independent
// request-response exchange; the engine holds no transactions across calls.
type RecordStore interface {
	InsertSession(ctx context.Context, s domain.Session) (domain.Session, error)
	UpdateSession(ctx context.Context, s domain.Session) (domain.Session, error)
	FindLatestOpenSession(ctx context.Context, userID string) (domain.Session, error)
	InsertAttempt(ctx context.Context, a domain.Attempt) (domain.Attempt, error)
	ListAttemptsBySession(ctx context.Context, sessionID string) ([]domain.Attempt, error)
}

// SessionEngine owns the rules for creating, resuming, answering, navigating
// and finishing one user's exam session. One engine serves one logical user;
// the transport creates an engine per connection.
type SessionEngine struct {
	questions QuestionRepository
	records   RecordStore
	logger    *zap.Logger
	userID    string
	rnd       *rand.Rand
	now       func() time.Time

	mu       sync.Mutex
	session  *domain.Session
	cache    map[int64]domain.Question
	attempts map[int64]domain.Attempt
}

func NewSessionEngine(questions QuestionRepository, records RecordStore, logger *zap.Logger, userID string) *SessionEngine {
	return &SessionEngine{
		questions: questions,
		records:   records,
		logger:    logger,
		userID:    userID,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		cache:     make(map[int64]domain.Question),
		attempts:  make(map[int64]domain.Attempt),
	}
}

// Create starts a new session over all active questions matching topic.
// The question order is a uniform permutation fixed at creation.
func (e *SessionEngine) Create(ctx context.Context, topic string, mode domain.Mode) (domain.Session, error) {
	questions, err := e.questions.ListActive(ctx, topic)
	if err != nil {
		return domain.Session{}, fmt.Errorf("list active questions: %w", err)
	}
	if len(questions) == 0 {
		return domain.Session{}, domain.ErrNoQuestionsAvailable
	}

	ids := make([]int64, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	e.mu.Lock()
	order := shuffleIDs(e.rnd, ids)
	e.mu.Unlock()

	session := domain.Session{
		UserID:        e.userID,
		Mode:          mode,
		QuestionOrder: order,
		CurrentIndex:  0,
		Total:         len(order),
		Score:         0,
		StartedAt:     e.now(),
	}
	created, err := e.records.InsertSession(ctx, session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = &created
	e.cache = make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		e.cache[q.ID] = q
	}
	e.attempts = make(map[int64]domain.Attempt)
	return created, nil
}

// Resume reconstructs navigable state from the user's most recently started
// open session without replaying prior writes.
func (e *SessionEngine) Resume(ctx context.Context) (domain.Session, error) {
	session, err := e.records.FindLatestOpenSession(ctx, e.userID)
	if err != nil {
		return domain.Session{}, err
	}

	cache := make(map[int64]domain.Question, len(session.QuestionOrder))
	if len(session.QuestionOrder) > 0 {
		questions, err := e.questions.GetByIDs(ctx, session.QuestionOrder)
		if err != nil {
			return domain.Session{}, fmt.Errorf("load session questions: %w", err)
		}
		for _, q := range questions {
			cache[q.ID] = q
		}
	}

	attempts, err := e.records.ListAttemptsBySession(ctx, session.ID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session attempts: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = &session
	e.cache = cache
	e.attempts = latestByQuestion(attempts)
	return session, nil
}

// Answer records a choice for the question at the current position.
// Exam mode treats answers as final: a repeat submission is a no-op that
// returns the already recorded attempt. In-memory state changes only after
// both store writes succeed.
func (e *SessionEngine) Answer(ctx context.Context, choiceIndex int) (domain.Session, domain.Attempt, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return domain.Session{}, domain.Attempt{}, domain.ErrNoActiveSession
	}
	if e.session.Finished() {
		session := *e.session
		e.mu.Unlock()
		return session, domain.Attempt{}, domain.ErrSessionFinished
	}
	session := *e.session

	questionID, ok := session.CurrentQuestionID()
	if !ok {
		e.mu.Unlock()
		return session, domain.Attempt{}, domain.ErrQuestionNotFound
	}
	question, cached := e.cache[questionID]
	if !cached {
		// Should not happen given create/resume prime the cache.
		e.mu.Unlock()
		e.logger.Warn("current question missing from cache",
			zap.Int64("question_id", questionID),
			zap.String("session_id", session.ID))
		return session, domain.Attempt{}, domain.ErrQuestionNotFound
	}
	prev, answered := e.attempts[questionID]
	if answered && !session.Mode.AllowsReanswer() {
		e.mu.Unlock()
		return session, prev, nil
	}
	e.mu.Unlock()

	if choiceIndex < 0 || choiceIndex >= len(question.Choices) {
		return session, domain.Attempt{}, domain.ErrChoiceOutOfRange
	}

	correct := choiceIndex == question.CorrectIndex

	attempt, err := e.records.InsertAttempt(ctx, domain.Attempt{
		SessionID:   session.ID,
		UserID:      e.userID,
		QuestionID:  questionID,
		ChoiceIndex: choiceIndex,
		Correct:     correct,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return session, domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}

	// Score counts questions whose standing attempt is correct. A practice
	// re-answer first retracts the superseded attempt's contribution, which
	// keeps 0 <= score <= total regardless of how often a question is retried.
	updated := session
	if answered && prev.Correct {
		updated.Score--
	}
	if correct {
		updated.Score++
	}
	// Answering advances the durable position only for the question at the
	// current index, clamped so it never moves past the last question.
	if next := session.CurrentIndex + 1; next < session.Total {
		updated.CurrentIndex = next
	} else {
		updated.CurrentIndex = session.Total - 1
	}

	persisted, err := e.records.UpdateSession(ctx, updated)
	if err != nil {
		return session, domain.Attempt{}, fmt.Errorf("update session: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = &persisted
	e.attempts[questionID] = attempt
	return persisted, attempt, nil
}

// Navigate moves the view pointer by delta, clamped to the question order.
// Browsing is not a progress commitment, so it never touches the store;
// only answering persists position changes.
func (e *SessionEngine) Navigate(delta int) (domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	next := e.session.CurrentIndex + delta
	if next < 0 {
		next = 0
	}
	if max := e.session.Total - 1; next > max {
		next = max
	}
	if next != e.session.CurrentIndex {
		e.session.CurrentIndex = next
	}
	return *e.session, nil
}

// Finish closes the session and returns the questions whose latest attempt
// was incorrect, for review rendering. Finishing an already-closed session
// leaves the completion timestamp alone and just recomputes the review list.
func (e *SessionEngine) Finish(ctx context.Context) (domain.Session, []domain.Question, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return domain.Session{}, nil, domain.ErrNoActiveSession
	}
	session := *e.session
	e.mu.Unlock()

	if !session.Finished() {
		finishedAt := e.now()
		session.FinishedAt = &finishedAt
		persisted, err := e.records.UpdateSession(ctx, session)
		if err != nil {
			return session, nil, fmt.Errorf("finish session: %w", err)
		}
		session = persisted

		e.mu.Lock()
		e.session = &session
		e.mu.Unlock()
	}

	attempts, err := e.records.ListAttemptsBySession(ctx, session.ID)
	if err != nil {
		return session, nil, fmt.Errorf("load session attempts: %w", err)
	}

	latest := latestByQuestion(attempts)

	e.mu.Lock()
	defer e.mu.Unlock()
	var incorrect []domain.Question
	for _, questionID := range session.QuestionOrder {
		attempt, ok := latest[questionID]
		if !ok || attempt.Correct {
			continue
		}
		question, cached := e.cache[questionID]
		if !cached {
			e.logger.Warn("incorrect question missing from cache, excluded from review",
				zap.Int64("question_id", questionID),
				zap.String("session_id", session.ID))
			continue
		}
		incorrect = append(incorrect, question)
	}
	return session, incorrect, nil
}

// Current returns the question and latest attempt at the view position.
func (e *SessionEngine) Current() (domain.Question, *domain.Attempt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Question{}, nil, false
	}
	questionID, ok := e.session.CurrentQuestionID()
	if !ok {
		return domain.Question{}, nil, false
	}
	question, cached := e.cache[questionID]
	if !cached {
		return domain.Question{}, nil, false
	}
	if attempt, answered := e.attempts[questionID]; answered {
		a := attempt
		return question, &a, true
	}
	return question, nil, true
}

// Session returns a copy of the active session, if any.
func (e *SessionEngine) Session() (domain.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Session{}, false
	}
	return *e.session, true
}

// latestByQuestion folds an attempt list into the newest attempt per
// question. Store order is creation order, so later entries supersede.
func latestByQuestion(attempts []domain.Attempt) map[int64]domain.Attempt {
	byQuestion := make(map[int64]domain.Attempt, len(attempts))
	for _, a := range attempts {
		byQuestion[a.QuestionID] = a
	}
	return byQuestion
}
