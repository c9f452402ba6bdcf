//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../mocks/mock_ports.go -package=mocks
package app

import (
	"context"
	"time"

	"quiz-sync-service/internal/domain"
)

// ProgressionStore holds the authoritative progression record per quiz id.
// Implementations must be safe for concurrent use; Set is last-write-wins.
type ProgressionStore interface {
	Set(ctx context.Context, quizID string, index int) (domain.ProgressionState, error)
	Get(ctx context.Context, quizID string) (domain.ProgressionState, bool, error)
	Clear(ctx context.Context, quizID string) error
}

// QuizRepository loads quiz content and records lifecycle transitions.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	UpdateQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) error
}

// AnswerRepository persists answers keyed by (quiz, question, user).
type AnswerRepository interface {
	// UpsertAnswer inserts the record or overwrites the existing one for the same key.
	UpsertAnswer(ctx context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error)
	ListAnswers(ctx context.Context, quizID string) ([]domain.AnswerRecord, error)
}

// FeedbackRepository persists audience feedback.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, feedback domain.Feedback) (domain.Feedback, error)
}

// CommentRepository persists discussion comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment domain.DiscussionComment) (domain.DiscussionComment, error)
	GetComment(ctx context.Context, commentID string) (domain.DiscussionComment, error)
	UpdateComment(ctx context.Context, commentID, content string, at time.Time) (domain.DiscussionComment, error)
	DeleteComment(ctx context.Context, commentID string) error
}

// PresentationIndex caches the quiz -> presentation mapping used to route broadcasts.
type PresentationIndex interface {
	Remember(ctx context.Context, quizID, presentationID string) error
	Lookup(ctx context.Context, quizID string) (string, bool, error)
}

// Broadcaster fans an event out to every connection of a presentation room.
type Broadcaster interface {
	Broadcast(presentationID string, event domain.Event) int
}

// Censor masks forbidden words in user supplied text.
type Censor interface {
	Censor(text string) string
}
