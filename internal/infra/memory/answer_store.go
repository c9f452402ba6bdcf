package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-sync-service/internal/domain"
)

type answerKey struct {
	quizID     string
	questionID string
	userID     string
}

// AnswerStore keeps one answer per (quiz, question, user); a resubmission overwrites it.
type AnswerStore struct {
	mu      sync.RWMutex
	answers map[answerKey]domain.AnswerRecord
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[answerKey]domain.AnswerRecord)}
}

func (s *AnswerStore) UpsertAnswer(_ context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answerKey{record.QuizID, record.QuestionID, record.UserID}] = record
	return record, nil
}

// ListAnswers returns the quiz's answers ordered by question then user.
func (s *AnswerStore) ListAnswers(_ context.Context, quizID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	records := make([]domain.AnswerRecord, 0)
	for key, record := range s.answers {
		if key.quizID == quizID {
			records = append(records, record)
		}
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].QuestionID != records[j].QuestionID {
			return records[i].QuestionID < records[j].QuestionID
		}
		return records[i].UserID < records[j].UserID
	})
	return records, nil
}
