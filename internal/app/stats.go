package app

import (
	"math"

	"quiz-sync-service/internal/domain"

	"github.com/samber/lo"
)

// ComputeStats derives the stats snapshot of a quiz from its answer records.
// Records for questions that no longer belong to the quiz are ignored.
func ComputeStats(quiz domain.Quiz, records []domain.AnswerRecord) domain.QuizStats {
	known := lo.Filter(records, func(r domain.AnswerRecord, _ int) bool {
		_, ok := quiz.Question(r.QuestionID)
		return ok
	})
	byQuestion := lo.GroupBy(known, func(r domain.AnswerRecord) string { return r.QuestionID })

	stats := domain.QuizStats{
		QuizID:    quiz.ID,
		Questions: make([]domain.QuestionStats, 0, len(quiz.Questions)),
	}
	for _, question := range quiz.Questions {
		qs := questionStats(question.ID, byQuestion[question.ID])
		stats.TotalAnswers += qs.TotalAnswers
		stats.CorrectAnswers += qs.CorrectCount
		stats.Questions = append(stats.Questions, qs)
	}

	participants := lo.Uniq(lo.Map(known, func(r domain.AnswerRecord, _ int) string { return r.UserID }))
	stats.ParticipantCount = len(participants)
	stats.OverallAccuracy = percent(stats.CorrectAnswers, stats.TotalAnswers)
	if stats.ParticipantCount > 0 {
		stats.AverageScore = math.Round(float64(stats.CorrectAnswers)/float64(stats.ParticipantCount)*100) / 100
	}
	return stats
}

func questionStats(questionID string, records []domain.AnswerRecord) domain.QuestionStats {
	qs := domain.QuestionStats{QuestionID: questionID, TotalAnswers: len(records)}
	for _, record := range records {
		if record.IsCorrect {
			qs.CorrectCount++
		}
		if record.IsTimeout() {
			qs.TimeoutCount++
			continue
		}
		switch record.Answer {
		case "A":
			qs.OptionCounts.A++
		case "B":
			qs.OptionCounts.B++
		case "C":
			qs.OptionCounts.C++
		case "D":
			qs.OptionCounts.D++
		}
	}
	qs.Accuracy = percent(qs.CorrectCount, qs.TotalAnswers)
	return qs
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
