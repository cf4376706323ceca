package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medexam-service/internal/domain"
)

// RecordStore persists sessions and attempts in Postgres. Attempts are
// insert-only; sessions are updated in place as answers land.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) InsertSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	query := `
		INSERT INTO sessions (id, user_id, mode, question_order, current_index, total, score, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		string(session.Mode),
		session.QuestionOrder,
		session.CurrentIndex,
		session.Total,
		session.Score,
		session.StartedAt,
		session.FinishedAt,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

func (s *RecordStore) UpdateSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	query := `
		UPDATE sessions
		SET current_index = $2, score = $3, finished_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, session.ID, session.CurrentIndex, session.Score, session.FinishedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Session{}, domain.ErrNoOpenSession
	}
	return session, nil
}

func (s *RecordStore) FindLatestOpenSession(ctx context.Context, userID string) (domain.Session, error) {
	query := `
		SELECT id, user_id, mode, question_order, current_index, total, score, started_at, finished_at
		FROM sessions
		WHERE user_id = $1 AND finished_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	var (
		session domain.Session
		mode    string
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&session.ID,
		&session.UserID,
		&mode,
		&session.QuestionOrder,
		&session.CurrentIndex,
		&session.Total,
		&session.Score,
		&session.StartedAt,
		&session.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNoOpenSession
		}
		return domain.Session{}, fmt.Errorf("find latest open session: %w", err)
	}
	session.Mode = domain.Mode(mode)
	return session, nil
}

func (s *RecordStore) InsertAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO attempts (session_id, user_id, question_id, choice_index, correct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		attempt.SessionID,
		attempt.UserID,
		attempt.QuestionID,
		attempt.ChoiceIndex,
		attempt.Correct,
		attempt.CreatedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

func (s *RecordStore) ListAttemptsBySession(ctx context.Context, sessionID string) ([]domain.Attempt, error) {
	query := `
		SELECT id, session_id, user_id, question_id, choice_index, correct, created_at
		FROM attempts
		WHERE session_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.QuestionID, &a.ChoiceIndex, &a.Correct, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
