package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quiz-sync-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type FeedbackInput struct {
	PresentationID string `validate:"required"`
	Type           string `validate:"required,oneof=LIKE CONFUSED QUESTION TOO_FAST TOO_SLOW"`
	Message        string `validate:"max=500"`
}

type CommentInput struct {
	QuizID     string `validate:"required"`
	QuestionID string
	Content    string `validate:"required,min=1,max=1000"`
}

type CommentUpdate struct {
	QuizID    string `validate:"required"`
	CommentID string `validate:"required"`
	Content   string `validate:"required,min=1,max=1000"`
}

type CommentDelete struct {
	QuizID    string `validate:"required"`
	CommentID string `validate:"required"`
}

// CommentDeletedPayload is broadcast when a comment is removed.
type CommentDeletedPayload struct {
	QuizID    string `json:"quizId"`
	CommentID string `json:"commentId"`
}

// Relays persists feedback and discussion comments and broadcasts the stored
// entities to the presentation room.
type Relays struct {
	feedback FeedbackRepository
	comments CommentRepository
	quizzes  QuizRepository
	index    PresentationIndex
	bus      Broadcaster
	censor   Censor
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

func NewRelays(
	feedback FeedbackRepository,
	comments CommentRepository,
	quizzes QuizRepository,
	index PresentationIndex,
	bus Broadcaster,
	censor Censor,
	log *slog.Logger,
) *Relays {
	return &Relays{
		feedback: feedback,
		comments: comments,
		quizzes:  quizzes,
		index:    index,
		bus:      bus,
		censor:   censor,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

func (r *Relays) SubmitFeedback(ctx context.Context, identity domain.Identity, input FeedbackInput) (domain.Feedback, error) {
	if identity.UserID == "" {
		return domain.Feedback{}, domain.ErrUnauthenticated
	}
	if err := r.validate.Struct(input); err != nil {
		return domain.Feedback{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	stored, err := r.feedback.CreateFeedback(ctx, domain.Feedback{
		ID:             uuid.NewString(),
		PresentationID: input.PresentationID,
		UserID:         identity.UserID,
		DisplayName:    identity.DisplayName,
		Type:           domain.FeedbackType(input.Type),
		Message:        r.censor.Censor(input.Message),
		CreatedAt:      r.now().UTC(),
	})
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("persist feedback: %w", err)
	}

	r.bus.Broadcast(stored.PresentationID, domain.Event{Type: domain.EventFeedbackReceived, Payload: stored})
	return stored, nil
}

func (r *Relays) AddComment(ctx context.Context, identity domain.Identity, input CommentInput) (domain.DiscussionComment, error) {
	if identity.UserID == "" {
		return domain.DiscussionComment{}, domain.ErrUnauthenticated
	}
	if err := r.validate.Struct(input); err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	room, err := r.presentationFor(ctx, input.QuizID)
	if err != nil {
		return domain.DiscussionComment{}, err
	}
	if input.QuestionID != "" {
		if err := r.questionOf(ctx, input.QuizID, input.QuestionID); err != nil {
			return domain.DiscussionComment{}, err
		}
	}

	now := r.now().UTC()
	stored, err := r.comments.CreateComment(ctx, domain.DiscussionComment{
		ID:          uuid.NewString(),
		QuizID:      input.QuizID,
		QuestionID:  input.QuestionID,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Content:     r.censor.Censor(input.Content),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("persist comment: %w", err)
	}

	r.bus.Broadcast(room, domain.Event{Type: domain.EventCommentAdded, Payload: stored})
	return stored, nil
}

func (r *Relays) UpdateComment(ctx context.Context, identity domain.Identity, input CommentUpdate) (domain.DiscussionComment, error) {
	if err := r.validate.Struct(input); err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if _, err := r.ownedComment(ctx, identity, input.QuizID, input.CommentID); err != nil {
		return domain.DiscussionComment{}, err
	}
	room, err := r.presentationFor(ctx, input.QuizID)
	if err != nil {
		return domain.DiscussionComment{}, err
	}

	stored, err := r.comments.UpdateComment(ctx, input.CommentID, r.censor.Censor(input.Content), r.now().UTC())
	if err != nil {
		return domain.DiscussionComment{}, fmt.Errorf("update comment: %w", err)
	}

	r.bus.Broadcast(room, domain.Event{Type: domain.EventCommentUpdated, Payload: stored})
	return stored, nil
}

func (r *Relays) DeleteComment(ctx context.Context, identity domain.Identity, input CommentDelete) error {
	if err := r.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if _, err := r.ownedComment(ctx, identity, input.QuizID, input.CommentID); err != nil {
		return err
	}
	room, err := r.presentationFor(ctx, input.QuizID)
	if err != nil {
		return err
	}

	if err := r.comments.DeleteComment(ctx, input.CommentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	r.bus.Broadcast(room, domain.Event{
		Type:    domain.EventCommentDeleted,
		Payload: CommentDeletedPayload{QuizID: input.QuizID, CommentID: input.CommentID},
	})
	return nil
}

// ownedComment loads the comment and checks the caller may modify it.
func (r *Relays) ownedComment(ctx context.Context, identity domain.Identity, quizID, commentID string) (domain.DiscussionComment, error) {
	if identity.UserID == "" {
		return domain.DiscussionComment{}, domain.ErrUnauthenticated
	}
	comment, err := r.comments.GetComment(ctx, commentID)
	if err != nil {
		return domain.DiscussionComment{}, err
	}
	if comment.QuizID != quizID {
		return domain.DiscussionComment{}, domain.ErrCommentNotFound
	}
	if comment.UserID != identity.UserID && !identity.Role.CanControl() {
		return domain.DiscussionComment{}, fmt.Errorf("comment %s belongs to another user: %w", commentID, domain.ErrForbidden)
	}
	return comment, nil
}

// presentationFor resolves the room of a quiz, preferring the index filled at quiz start.
// questionOf fails with ErrQuestionNotFound unless questionID is part of the quiz.
func (r *Relays) questionOf(ctx context.Context, quizID, questionID string) error {
	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return err
		}
		return fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	if _, ok := quiz.Question(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (r *Relays) presentationFor(ctx context.Context, quizID string) (string, error) {
	presentationID, ok, err := r.index.Lookup(ctx, quizID)
	if err != nil {
		r.log.Warn("presentation index lookup failed", "quiz_id", quizID, "error", err)
	}
	if ok {
		return presentationID, nil
	}

	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return "", err
		}
		return "", fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	if quiz.PresentationID == "" {
		return "", domain.ErrQuizMismatch
	}
	if err := r.index.Remember(ctx, quizID, quiz.PresentationID); err != nil {
		r.log.Warn("remember quiz presentation failed", "quiz_id", quizID, "error", err)
	}
	return quiz.PresentationID, nil
}
