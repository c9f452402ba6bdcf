package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-sync-service/internal/domain"
)

// QuizStore loads quizzes and their ordered questions from Postgres and owns
// the status column.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.pool.QueryRow(ctx,
		`SELECT id, presentation_id, title, status, time_limit FROM quizzes WHERE id=$1`,
		quizID,
	).Scan(&quiz.ID, &quiz.PresentationID, &quiz.Title, &quiz.Status, &quiz.TimeLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, position, text, options, correct_answer FROM questions WHERE quiz_id=$1 ORDER BY position`,
		quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		question := domain.Question{QuizID: quizID}
		var rawOptions []byte
		if err := rows.Scan(&question.ID, &question.Position, &question.Text, &rawOptions, &question.CorrectAnswer); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOptions, &question.Options); err != nil {
			return domain.Quiz{}, fmt.Errorf("unmarshal options of %s: %w", question.ID, err)
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("iterate questions: %w", err)
	}
	return quiz, nil
}

// SaveQuizStatus applies a lifecycle transition under a row lock.
func (s *QuizStore) SaveQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var current domain.QuizStatus
		err := tx.QueryRow(ctx, `SELECT status FROM quizzes WHERE id=$1 FOR UPDATE`, quizID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("lock quiz: %w", err)
		}
		if current == status {
			return nil
		}
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%s -> %s: %w", current, status, domain.ErrInvalidTransition)
		}
		if _, err := tx.Exec(ctx, `UPDATE quizzes SET status=$2 WHERE id=$1`, quizID, status); err != nil {
			return fmt.Errorf("update quiz status: %w", err)
		}
		return nil
	})
}

// SaveQuiz inserts or replaces a quiz with its questions. Used for seeding.
func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quizzes (id, presentation_id, title, status, time_limit)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET presentation_id=EXCLUDED.presentation_id, title=EXCLUDED.title,
			    status=EXCLUDED.status, time_limit=EXCLUDED.time_limit`,
			quiz.ID, quiz.PresentationID, quiz.Title, quiz.Status, quiz.TimeLimit)
		if err != nil {
			return fmt.Errorf("upsert quiz: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id=$1`, quiz.ID); err != nil {
			return fmt.Errorf("reset questions: %w", err)
		}
		for _, question := range quiz.Questions {
			options, err := json.Marshal(question.Options)
			if err != nil {
				return fmt.Errorf("marshal options of %s: %w", question.ID, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO questions (id, quiz_id, position, text, options, correct_answer)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				question.ID, quiz.ID, question.Position, question.Text, options, question.CorrectAnswer)
			if err != nil {
				return fmt.Errorf("insert question %s: %w", question.ID, err)
			}
		}
		return nil
	})
}
