package app_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"quiz-sync-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn records every event delivered to it.
type fakeConn struct {
	id       string
	identity domain.Identity

	mu     sync.Mutex
	events []domain.Event
}

func newFakeConn(id string, role domain.Role) *fakeConn {
	return &fakeConn{id: id, identity: domain.Identity{UserID: "user-" + id, Role: role, DisplayName: id}}
}

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) Identity() domain.Identity { return c.identity }

func (c *fakeConn) Send(event domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return true
}

func (c *fakeConn) received() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

func (c *fakeConn) types() []string {
	var out []string
	for _, e := range c.received() {
		out = append(out, e.Type)
	}
	return out
}

func testQuiz(quizID, presentationID string, status domain.QuizStatus, questions int) domain.Quiz {
	quiz := domain.Quiz{ID: quizID, PresentationID: presentationID, Title: "Quiz", Status: status, TimeLimit: 15}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:       fmt.Sprintf("q%d", i),
			QuizID:   quizID,
			Position: i,
			Text:     fmt.Sprintf("Question %d", i),
			Options: []domain.Option{
				{Label: "A", Text: "a"}, {Label: "B", Text: "b"}, {Label: "C", Text: "c"}, {Label: "D", Text: "d"},
			},
			CorrectAnswer: "A",
		})
	}
	return quiz
}
