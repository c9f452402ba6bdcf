package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-sync-service/internal/domain"
)

// AnswerRepository persists answers with a single upsert keyed by
// (quiz_id, question_id, user_id), so concurrent resubmissions never duplicate.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

func (r *AnswerRepository) UpsertAnswer(ctx context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error) {
	var stored domain.AnswerRecord
	err := r.pool.QueryRow(ctx, `
		INSERT INTO quiz_answers (quiz_id, question_id, user_id, answer, is_correct, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quiz_id, question_id, user_id) DO UPDATE
		SET answer=EXCLUDED.answer, is_correct=EXCLUDED.is_correct, submitted_at=EXCLUDED.submitted_at
		RETURNING quiz_id, question_id, user_id, answer, is_correct, submitted_at`,
		record.QuizID, record.QuestionID, record.UserID, record.Answer, record.IsCorrect, record.SubmittedAt,
	).Scan(&stored.QuizID, &stored.QuestionID, &stored.UserID, &stored.Answer, &stored.IsCorrect, &stored.SubmittedAt)
	if err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("upsert answer: %w", err)
	}
	return stored, nil
}

func (r *AnswerRepository) ListAnswers(ctx context.Context, quizID string) ([]domain.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT quiz_id, question_id, user_id, answer, is_correct, submitted_at
		FROM quiz_answers WHERE quiz_id=$1
		ORDER BY question_id, user_id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AnswerRecord, 0)
	for rows.Next() {
		var record domain.AnswerRecord
		if err := rows.Scan(&record.QuizID, &record.QuestionID, &record.UserID, &record.Answer, &record.IsCorrect, &record.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return records, nil
}
