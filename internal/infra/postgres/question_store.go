package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medexam-service/internal/domain"
)

// QuestionStore reads and authors questions in Postgres. Choices are stored
// as a JSONB array to keep their authored order.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const questionColumns = `id, stem, choices, correct_index, topic, difficulty, explanation, image_url, is_active`

func (s *QuestionStore) ListActive(ctx context.Context, topic string) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE is_active AND ($1 = '' OR topic = $1) ORDER BY id`
	rows, err := s.pool.Query(ctx, query, topic)
	if err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *QuestionStore) GetByIDs(ctx context.Context, ids []int64) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = ANY($1::bigint[])`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get questions by ids: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *QuestionStore) GetByID(ctx context.Context, id int64) (domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	q, err := scanQuestion(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, domain.ErrQuestionNotFound
		}
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) Insert(ctx context.Context, q domain.Question) (domain.Question, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return domain.Question{}, fmt.Errorf("marshal choices: %w", err)
	}
	query := `
		INSERT INTO questions (stem, choices, correct_index, topic, difficulty, explanation, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = s.pool.QueryRow(ctx, query,
		q.Stem,
		choices,
		q.CorrectIndex,
		nullable(q.Topic),
		nullable(q.Difficulty),
		nullable(q.Explanation),
		nullable(q.ImageURL),
		q.IsActive,
	).Scan(&q.ID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) ListRecent(ctx context.Context, limit int) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions ORDER BY id DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *QuestionStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	var choices []byte
	var topic, difficulty, explanation, imageURL sql.NullString
	if err := row.Scan(&q.ID, &q.Stem, &choices, &q.CorrectIndex, &topic, &difficulty, &explanation, &imageURL, &q.IsActive); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(choices, &q.Choices); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal choices: %w", err)
	}
	q.Topic = topic.String
	q.Difficulty = difficulty.String
	q.Explanation = explanation.String
	q.ImageURL = imageURL.String
	return q, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
