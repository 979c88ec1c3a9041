package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-battle-service/internal/domain"
)

// QuestionLoader loads question JSONB from Postgres, one row per question.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, level domain.Level) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM questions WHERE level=$1`, string(level))
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			id  int
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question %d: %w", id, err)
		}
		q.ID = id
		q.Level = level
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

// SeedQuestions bulk-imports questions. Entries without exactly four options
// or with an out-of-range correct index are skipped, mirroring the import
// contract of the question admin tooling.
func (l *QuestionLoader) SeedQuestions(ctx context.Context, questions []domain.Question) (int, error) {
	inserted := 0
	for _, q := range questions {
		if len(q.Options) != 4 {
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			continue
		}
		raw, err := json.Marshal(q)
		if err != nil {
			return inserted, fmt.Errorf("marshal question: %w", err)
		}
		if _, err := l.pool.Exec(ctx,
			`INSERT INTO questions (level, data) VALUES ($1, $2)`, string(q.Level), raw); err != nil {
			return inserted, fmt.Errorf("insert question: %w", err)
		}
		inserted++
	}
	return inserted, nil
}
