package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quiz-sync-service/internal/domain"
)

// AnswerPipeline validates, records and aggregates answers. It is the only
// writer of answer records.
type AnswerPipeline struct {
	quizzes QuizRepository
	answers AnswerRepository
	bus     Broadcaster
	now     func() time.Time
	log     *slog.Logger
}

func NewAnswerPipeline(quizzes QuizRepository, answers AnswerRepository, bus Broadcaster, log *slog.Logger) *AnswerPipeline {
	return NewAnswerPipelineWithClock(quizzes, answers, bus, log, time.Now)
}

// NewAnswerPipelineWithClock is test-only for deterministic timestamps.
func NewAnswerPipelineWithClock(quizzes QuizRepository, answers AnswerRepository, bus Broadcaster, log *slog.Logger, now func() time.Time) *AnswerPipeline {
	return &AnswerPipeline{quizzes: quizzes, answers: answers, bus: bus, now: now, log: log}
}

// Submit records the caller's answer, recomputes the quiz stats and broadcasts
// them to the presentation room. Nothing is written or broadcast on rejection.
func (p *AnswerPipeline) Submit(ctx context.Context, identity domain.Identity, submission domain.AnswerSubmission) (domain.AnswerRecord, domain.QuizStats, error) {
	if identity.UserID == "" {
		return domain.AnswerRecord{}, domain.QuizStats{}, domain.ErrUnauthenticated
	}
	if submission.QuizID == "" || submission.QuestionID == "" {
		return domain.AnswerRecord{}, domain.QuizStats{}, fmt.Errorf("quizId and questionId are required: %w", domain.ErrInvalidPayload)
	}

	quiz, err := p.quizzes.GetQuiz(ctx, submission.QuizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.AnswerRecord{}, domain.QuizStats{}, err
		}
		return domain.AnswerRecord{}, domain.QuizStats{}, fmt.Errorf("load quiz %s: %w", submission.QuizID, err)
	}
	if quiz.Status != domain.QuizActive {
		return domain.AnswerRecord{}, domain.QuizStats{}, domain.ErrQuizNotActive
	}
	question, ok := quiz.Question(submission.QuestionID)
	if !ok {
		return domain.AnswerRecord{}, domain.QuizStats{}, domain.ErrQuestionNotFound
	}
	if submission.Answer != "" && !question.HasOption(submission.Answer) {
		return domain.AnswerRecord{}, domain.QuizStats{}, fmt.Errorf("answer %q is not an option of question %s: %w", submission.Answer, question.ID, domain.ErrInvalidPayload)
	}

	room := quiz.PresentationID
	if room == "" {
		room = submission.PresentationID
	} else if submission.PresentationID != "" && submission.PresentationID != room {
		return domain.AnswerRecord{}, domain.QuizStats{}, domain.ErrQuizMismatch
	}

	record, err := p.answers.UpsertAnswer(ctx, scoreAnswer(quiz.ID, question, identity.UserID, submission.Answer, p.now()))
	if err != nil {
		p.log.Error("persist answer failed",
			"quiz_id", quiz.ID,
			"question_id", question.ID,
			"user_id", identity.UserID,
			"error", err)
		return domain.AnswerRecord{}, domain.QuizStats{}, fmt.Errorf("persist answer: %w", err)
	}

	records, err := p.answers.ListAnswers(ctx, quiz.ID)
	if err != nil {
		p.log.Error("list answers failed", "quiz_id", quiz.ID, "error", err)
		return record, domain.QuizStats{}, fmt.Errorf("list answers: %w", err)
	}
	stats := ComputeStats(quiz, records)

	if room != "" {
		p.bus.Broadcast(room, domain.Event{Type: domain.EventQuizStatsUpdated, Payload: stats})
	}
	p.log.Debug("answer recorded",
		"quiz_id", quiz.ID,
		"question_id", question.ID,
		"user_id", identity.UserID,
		"correct", record.IsCorrect,
		"participants", stats.ParticipantCount)
	return record, stats, nil
}

// scoreAnswer applies the correctness rule; an empty answer becomes the timeout sentinel.
func scoreAnswer(quizID string, question domain.Question, userID, answer string, at time.Time) domain.AnswerRecord {
	record := domain.AnswerRecord{
		QuizID:      quizID,
		QuestionID:  question.ID,
		UserID:      userID,
		Answer:      answer,
		SubmittedAt: at,
	}
	if answer == "" {
		record.Answer = domain.TimeoutAnswer
		return record
	}
	record.IsCorrect = answer == question.CorrectAnswer
	return record
}
