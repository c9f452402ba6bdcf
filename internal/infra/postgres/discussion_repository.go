package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-sync-service/internal/domain"
)

type feedbackModel struct {
	bun.BaseModel `bun:"table:feedback"`

	ID             string    `bun:"id,pk"`
	PresentationID string    `bun:"presentation_id,notnull"`
	UserID         string    `bun:"user_id,notnull"`
	DisplayName    string    `bun:"display_name"`
	Type           string    `bun:"type,notnull"`
	Message        string    `bun:"message"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

type commentModel struct {
	bun.BaseModel `bun:"table:discussion_comments"`

	ID          string    `bun:"id,pk"`
	QuizID      string    `bun:"quiz_id,notnull"`
	QuestionID  string    `bun:"question_id,nullzero"`
	UserID      string    `bun:"user_id,notnull"`
	DisplayName string    `bun:"display_name"`
	Content     string    `bun:"content,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// DiscussionRepository stores feedback and discussion comments through bun.
type DiscussionRepository struct {
	db *bun.DB
}

func NewDiscussionRepository(db *bun.DB) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

func (r *DiscussionRepository) CreateFeedback(ctx context.Context, feedback domain.Feedback) (domain.Feedback, error) {
	model := feedbackModel{
		ID:             feedback.ID,
		PresentationID: feedback.PresentationID,
		UserID:         feedback.UserID,
		DisplayName:    feedback.DisplayName,
		Type:           string(feedback.Type),
		Message:        feedback.Message,
		CreatedAt:      feedback.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(&model).Exec(ctx); err != nil {
		return domain.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	return feedback, nil
}

func (r *DiscussionRepository) CreateComment(ctx context.Context, comment domain.DiscussionComment) (domain.DiscussionComment, error) {
	model := toCommentModel(comment)
	if _, err := r.db.NewInsert().Model(&model).Exec(ctx); err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("insert comment: %w", err)
	}
	return model.toDomain(), nil
}

func (r *DiscussionRepository) GetComment(ctx context.Context, commentID string) (domain.DiscussionComment, error) {
	var model commentModel
	err := r.db.NewSelect().Model(&model).Where("id = ?", commentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DiscussionComment{}, domain.ErrCommentNotFound
	}
	if err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("select comment: %w", err)
	}
	return model.toDomain(), nil
}

func (r *DiscussionRepository) UpdateComment(ctx context.Context, commentID, content string, at time.Time) (domain.DiscussionComment, error) {
	var model commentModel
	err := r.db.NewUpdate().
		Model(&model).
		Set("content = ?", content).
		Set("updated_at = ?", at).
		Where("id = ?", commentID).
		Returning("*").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DiscussionComment{}, domain.ErrCommentNotFound
	}
	if err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("update comment: %w", err)
	}
	return model.toDomain(), nil
}

func (r *DiscussionRepository) DeleteComment(ctx context.Context, commentID string) error {
	res, err := r.db.NewDelete().Model((*commentModel)(nil)).Where("id = ?", commentID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func toCommentModel(c domain.DiscussionComment) commentModel {
	return commentModel{
		ID:          c.ID,
		QuizID:      c.QuizID,
		QuestionID:  c.QuestionID,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		Content:     c.Content,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (m commentModel) toDomain() domain.DiscussionComment {
	return domain.DiscussionComment{
		ID:          m.ID,
		QuizID:      m.QuizID,
		QuestionID:  m.QuestionID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
