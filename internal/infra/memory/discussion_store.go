package memory

import (
	"context"
	"sync"
	"time"

	"quiz-sync-service/internal/domain"
)

// DiscussionStore keeps feedback and discussion comments in memory.
type DiscussionStore struct {
	mu       sync.RWMutex
	feedback []domain.Feedback
	comments map[string]domain.DiscussionComment
}

func NewDiscussionStore() *DiscussionStore {
	return &DiscussionStore{comments: make(map[string]domain.DiscussionComment)}
}

func (s *DiscussionStore) CreateFeedback(_ context.Context, feedback domain.Feedback) (domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, feedback)
	return feedback, nil
}

// Feedback returns the feedback recorded for a presentation, oldest first.
func (s *DiscussionStore) Feedback(presentationID string) []domain.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Feedback
	for _, fb := range s.feedback {
		if fb.PresentationID == presentationID {
			out = append(out, fb)
		}
	}
	return out
}

func (s *DiscussionStore) CreateComment(_ context.Context, comment domain.DiscussionComment) (domain.DiscussionComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	return comment, nil
}

// Comments returns the comments of a quiz in no particular order.
func (s *DiscussionStore) Comments(quizID string) []domain.DiscussionComment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DiscussionComment
	for _, comment := range s.comments {
		if comment.QuizID == quizID {
			out = append(out, comment)
		}
	}
	return out
}

func (s *DiscussionStore) GetComment(_ context.Context, commentID string) (domain.DiscussionComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.comments[commentID]
	if !ok {
		return domain.DiscussionComment{}, domain.ErrCommentNotFound
	}
	return comment, nil
}

func (s *DiscussionStore) UpdateComment(_ context.Context, commentID, content string, at time.Time) (domain.DiscussionComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[commentID]
	if !ok {
		return domain.DiscussionComment{}, domain.ErrCommentNotFound
	}
	comment.Content = content
	comment.UpdatedAt = at
	s.comments[commentID] = comment
	return comment, nil
}

func (s *DiscussionStore) DeleteComment(_ context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[commentID]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(s.comments, commentID)
	return nil
}
