package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quiz-sync-service/internal/domain"
)

// Actor is the caller of a control command. ConnID is empty when the command
// arrives over the HTTP control plane rather than a socket.
type Actor struct {
	Identity domain.Identity
	ConnID   string
}

// RoomMembership answers whether a socket connection joined a room.
type RoomMembership interface {
	IsMember(connID, presentationID string) bool
}

type StartQuizCommand struct {
	QuizID         string
	PresentationID string
	QuestionIndex  *int
}

type NextQuestionCommand struct {
	QuizID         string
	PresentationID string
	QuestionIndex  int
}

type EndQuizCommand struct {
	QuizID         string
	PresentationID string
}

// QuizStartedPayload is broadcast as quiz-started.
type QuizStartedPayload struct {
	Quiz          domain.PublicQuiz `json:"quiz"`
	TimeLimit     int               `json:"timeLimit"`
	QuestionIndex int               `json:"questionIndex"`
}

// NextQuestionPayload is broadcast as next-question.
type NextQuestionPayload struct {
	QuizID        string `json:"quizId"`
	QuestionIndex int    `json:"questionIndex"`
}

// QuizEndedPayload is broadcast as quiz-ended.
type QuizEndedPayload struct {
	QuizID string `json:"quizId"`
}

// SessionControl is the single command handler for starting, advancing and
// ending quizzes. It is the only writer of the progression store; both the
// socket events and the HTTP control plane go through it.
type SessionControl struct {
	quizzes  QuizRepository
	progress ProgressionStore
	index    PresentationIndex
	members  RoomMembership
	bus      Broadcaster
	log      *slog.Logger
}

func NewSessionControl(
	quizzes QuizRepository,
	progress ProgressionStore,
	index PresentationIndex,
	members RoomMembership,
	bus Broadcaster,
	log *slog.Logger,
) *SessionControl {
	return &SessionControl{
		quizzes:  quizzes,
		progress: progress,
		index:    index,
		members:  members,
		bus:      bus,
		log:      log,
	}
}

// StartQuiz activates the quiz and publishes its first live question.
func (s *SessionControl) StartQuiz(ctx context.Context, actor Actor, cmd StartQuizCommand) (domain.ProgressionState, error) {
	quiz, err := s.authorize(ctx, actor, cmd.QuizID, cmd.PresentationID)
	if err != nil {
		return domain.ProgressionState{}, err
	}
	if quiz.Status.Terminal() {
		return domain.ProgressionState{}, fmt.Errorf("start quiz %s in status %s: %w", quiz.ID, quiz.Status, domain.ErrInvalidTransition)
	}

	index := 0
	if cmd.QuestionIndex != nil {
		index = *cmd.QuestionIndex
	}
	if err := checkIndex(quiz, index); err != nil {
		return domain.ProgressionState{}, err
	}

	if quiz.Status != domain.QuizActive {
		if err := s.quizzes.UpdateQuizStatus(ctx, quiz.ID, domain.QuizActive); err != nil {
			return domain.ProgressionState{}, fmt.Errorf("activate quiz %s: %w", quiz.ID, err)
		}
		quiz.Status = domain.QuizActive
	}

	if err := s.index.Remember(ctx, quiz.ID, cmd.PresentationID); err != nil {
		s.log.Warn("remember quiz presentation failed", "quiz_id", quiz.ID, "error", err)
	}

	state, err := s.progress.Set(ctx, quiz.ID, index)
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("set progression: %w", err)
	}

	s.bus.Broadcast(cmd.PresentationID, domain.Event{
		Type: domain.EventQuizStarted,
		Payload: QuizStartedPayload{
			Quiz:          quiz.Public(),
			TimeLimit:     quiz.TimeLimit,
			QuestionIndex: index,
		},
	})
	s.log.Info("quiz started",
		"quiz_id", quiz.ID,
		"presentation_id", cmd.PresentationID,
		"question_index", index,
		"user_id", actor.Identity.UserID)
	return state, nil
}

// NextQuestion moves the live question of an active quiz.
func (s *SessionControl) NextQuestion(ctx context.Context, actor Actor, cmd NextQuestionCommand) (domain.ProgressionState, error) {
	quiz, err := s.authorize(ctx, actor, cmd.QuizID, cmd.PresentationID)
	if err != nil {
		return domain.ProgressionState{}, err
	}
	if quiz.Status != domain.QuizActive {
		return domain.ProgressionState{}, fmt.Errorf("advance quiz %s: %w", quiz.ID, domain.ErrQuizNotActive)
	}
	if err := checkIndex(quiz, cmd.QuestionIndex); err != nil {
		return domain.ProgressionState{}, err
	}

	state, err := s.progress.Set(ctx, quiz.ID, cmd.QuestionIndex)
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("set progression: %w", err)
	}

	s.bus.Broadcast(cmd.PresentationID, domain.Event{
		Type:    domain.EventNextQuestion,
		Payload: NextQuestionPayload{QuizID: quiz.ID, QuestionIndex: cmd.QuestionIndex},
	})
	s.log.Info("question advanced",
		"quiz_id", quiz.ID,
		"presentation_id", cmd.PresentationID,
		"question_index", cmd.QuestionIndex)
	return state, nil
}

// EndQuiz clears the progression record and completes the quiz.
func (s *SessionControl) EndQuiz(ctx context.Context, actor Actor, cmd EndQuizCommand) error {
	quiz, err := s.authorize(ctx, actor, cmd.QuizID, cmd.PresentationID)
	if err != nil {
		return err
	}

	if err := s.progress.Clear(ctx, quiz.ID); err != nil {
		return fmt.Errorf("clear progression: %w", err)
	}

	if !quiz.Status.Terminal() {
		// The live path is not rolled back when the status write fails.
		if err := s.quizzes.UpdateQuizStatus(ctx, quiz.ID, domain.QuizCompleted); err != nil {
			s.log.Error("complete quiz failed", "quiz_id", quiz.ID, "error", err)
		}
	}

	s.bus.Broadcast(cmd.PresentationID, domain.Event{
		Type:    domain.EventQuizEnded,
		Payload: QuizEndedPayload{QuizID: quiz.ID},
	})
	s.log.Info("quiz ended", "quiz_id", quiz.ID, "presentation_id", cmd.PresentationID)
	return nil
}

// State returns the authoritative progression of a quiz for pull-based recovery.
// It never falls back to a default index.
func (s *SessionControl) State(ctx context.Context, quizID string) (domain.ProgressionState, error) {
	if quizID == "" {
		return domain.ProgressionState{}, fmt.Errorf("quizId is required: %w", domain.ErrInvalidPayload)
	}
	state, ok, err := s.progress.Get(ctx, quizID)
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("get progression: %w", err)
	}
	if !ok {
		return domain.ProgressionState{}, domain.ErrNoActiveQuestion
	}
	return state, nil
}

// authorize re-verifies the caller before any progression write and returns the quiz.
func (s *SessionControl) authorize(ctx context.Context, actor Actor, quizID, presentationID string) (domain.Quiz, error) {
	if quizID == "" || presentationID == "" {
		return domain.Quiz{}, fmt.Errorf("quizId and presentationId are required: %w", domain.ErrInvalidPayload)
	}
	if actor.Identity.UserID == "" {
		return domain.Quiz{}, domain.ErrUnauthenticated
	}
	if !actor.Identity.Role.CanControl() {
		return domain.Quiz{}, fmt.Errorf("role %s cannot control quizzes: %w", actor.Identity.Role, domain.ErrForbidden)
	}
	if actor.ConnID != "" && !s.members.IsMember(actor.ConnID, presentationID) {
		return domain.Quiz{}, fmt.Errorf("caller has not joined presentation %s: %w", presentationID, domain.ErrForbidden)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	if quiz.PresentationID != "" && quiz.PresentationID != presentationID {
		return domain.Quiz{}, domain.ErrQuizMismatch
	}
	return quiz, nil
}

func checkIndex(quiz domain.Quiz, index int) error {
	if index < 0 || index >= len(quiz.Questions) {
		return fmt.Errorf("index %d with %d questions: %w", index, len(quiz.Questions), domain.ErrQuestionIndexOutOfRange)
	}
	return nil
}
