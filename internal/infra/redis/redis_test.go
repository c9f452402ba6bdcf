package redis

import (
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-sync-service/internal/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:             "quiz-1",
		PresentationID: "pres-1",
		Title:          "Arithmetic",
		Status:         domain.QuizDraft,
		TimeLimit:      30,
		Questions: []domain.Question{
			{
				ID:       "q1",
				QuizID:   "quiz-1",
				Position: 0,
				Text:     "What is 2 + 2?",
				Options: []domain.Option{
					{Label: "A", Text: "3"},
					{Label: "B", Text: "4"},
				},
				CorrectAnswer: "B",
			},
		},
	}
}
