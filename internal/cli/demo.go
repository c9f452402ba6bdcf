package cli

import (
	"quiz-sync-service/internal/domain"
)

// demoUsers are the identities accepted when running without Postgres.
func demoUsers() []domain.Identity {
	return []domain.Identity{
		{UserID: "organizer", Role: domain.RoleOrganizer, DisplayName: "Organizer"},
		{UserID: "speaker", Role: domain.RoleSpeaker, DisplayName: "Speaker"},
		{UserID: "alice", Role: domain.RoleAudience, DisplayName: "Alice"},
		{UserID: "bob", Role: domain.RoleAudience, DisplayName: "Bob"},
	}
}

func demoQuizzes() []domain.Quiz {
	abcd := func(a, b, c, d string) []domain.Option {
		return []domain.Option{{Label: "A", Text: a}, {Label: "B", Text: b}, {Label: "C", Text: c}, {Label: "D", Text: d}}
	}
	return []domain.Quiz{
		{
			ID:             "quiz-1",
			PresentationID: "pres-1",
			Title:          "Warm-up",
			Status:         domain.QuizDraft,
			TimeLimit:      30,
			Questions: []domain.Question{
				{ID: "quiz-1-q1", QuizID: "quiz-1", Position: 0, Text: "What is 2 + 2?", Options: abcd("3", "4", "5", "22"), CorrectAnswer: "B"},
				{ID: "quiz-1-q2", QuizID: "quiz-1", Position: 1, Text: "Which protocol upgrades from HTTP?", Options: abcd("FTP", "SMTP", "WebSocket", "DNS"), CorrectAnswer: "C"},
				{ID: "quiz-1-q3", QuizID: "quiz-1", Position: 2, Text: "Which one is a Go keyword?", Options: abcd("defer", "yield", "async", "lambda"), CorrectAnswer: "A"},
			},
		},
	}
}
