package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"quiz-sync-service/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	AckID   string `json:"ackId,omitempty"`
	Payload T      `json:"payload"`
}

type presentationPayload struct {
	PresentationID string `json:"presentationId"`
}

type startQuizPayload struct {
	QuizID         string `json:"quizId"`
	PresentationID string `json:"presentationId"`
	QuestionIndex  *int   `json:"questionIndex,omitempty"`
}

type nextQuestionPayload struct {
	QuizID         string `json:"quizId"`
	PresentationID string `json:"presentationId"`
	QuestionIndex  *int   `json:"questionIndex"`
}

type endQuizPayload struct {
	QuizID         string `json:"quizId"`
	PresentationID string `json:"presentationId"`
}

type quizRefPayload struct {
	QuizID string `json:"quizId"`
}

type submitAnswerPayload struct {
	QuizID         string `json:"quizId"`
	QuestionID     string `json:"questionId"`
	Answer         string `json:"answer"`
	PresentationID string `json:"presentationId"`
}

type feedbackPayload struct {
	PresentationID string `json:"presentationId"`
	Type           string `json:"type"`
	Message        string `json:"message"`
}

type commentAddedPayload struct {
	QuizID  string `json:"quizId"`
	Comment struct {
		Content    string `json:"content"`
		QuestionID string `json:"questionId"`
	} `json:"comment"`
}

type commentUpdatedPayload struct {
	QuizID    string `json:"quizId"`
	CommentID string `json:"commentId"`
	Content   string `json:"content"`
}

type commentDeletedPayload struct {
	QuizID    string `json:"quizId"`
	CommentID string `json:"commentId"`
}

// Replies. Every failure uses failureReply.

type failureReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type successReply struct {
	Success bool `json:"success"`
}

type joinReply struct {
	Success        bool   `json:"success"`
	PresentationID string `json:"presentationId"`
	Members        int    `json:"members"`
}

type stateReply struct {
	Success bool                    `json:"success"`
	State   domain.ProgressionState `json:"state"`
}

type syncReply struct {
	Success       bool   `json:"success"`
	QuizID        string `json:"quizId"`
	QuestionIndex int    `json:"questionIndex"`
}

type answerSubmittedReply struct {
	Success    bool              `json:"success"`
	QuestionID string            `json:"questionId,omitempty"`
	Error      string            `json:"error,omitempty"`
	Stats      *domain.QuizStats `json:"stats,omitempty"`
}

type feedbackReply struct {
	Success  bool            `json:"success"`
	Feedback domain.Feedback `json:"feedback"`
}

type commentReply struct {
	Success bool                     `json:"success"`
	Comment domain.DiscussionComment `json:"comment"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// publicErrors may be shown to clients verbatim; anything else is reported as internal.
var publicErrors = []error{
	domain.ErrUnauthenticated,
	domain.ErrForbidden,
	domain.ErrQuizNotFound,
	domain.ErrQuizMismatch,
	domain.ErrQuestionNotFound,
	domain.ErrQuizNotActive,
	domain.ErrInvalidTransition,
	domain.ErrQuestionIndexOutOfRange,
	domain.ErrNoActiveQuestion,
	domain.ErrInvalidPayload,
	domain.ErrCommentNotFound,
}

func publicMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	// Decoding and validation details name Go types; the sender only sees the sentinel.
	if errors.Is(err, domain.ErrInvalidPayload) {
		return domain.ErrInvalidPayload.Error()
	}
	if lo.ContainsBy(publicErrors, func(known error) bool { return errors.Is(err, known) }) {
		return err.Error()
	}
	return "internal error"
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return domain.ErrInvalidPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}

// decodePresentationID accepts the room id either as a bare JSON string or as
// {"presentationId": "..."}.
func decodePresentationID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		var p presentationPayload
		if err := decodePayload(raw, &p); err != nil {
			return "", err
		}
		id = p.PresentationID
	}
	if id == "" {
		return "", fmt.Errorf("presentationId is required: %w", domain.ErrInvalidPayload)
	}
	return id, nil
}
