package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a credential is missing, invalid or unknown.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the caller may not perform a control action.
	ErrForbidden = errors.New("forbidden")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizMismatch indicates the quiz does not belong to the given presentation.
	ErrQuizMismatch = errors.New("quiz does not belong to presentation")
	// ErrQuestionNotFound indicates a submitted question ID is invalid for the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuizNotActive is returned when the quiz is not in the ACTIVE state.
	ErrQuizNotActive = errors.New("quiz is not active")
	// ErrInvalidTransition is returned when the quiz lifecycle forbids the change.
	ErrInvalidTransition = errors.New("invalid quiz status transition")
	// ErrQuestionIndexOutOfRange is returned when an advance points past the question list.
	ErrQuestionIndexOutOfRange = errors.New("question index out of range")
	// ErrNoActiveQuestion is returned by recovery reads when no progression is recorded.
	ErrNoActiveQuestion = errors.New("no active question for quiz")
	// ErrInvalidPayload indicates a malformed or out-of-bounds client payload.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUserNotFound indicates the user directory has no such user.
	ErrUserNotFound = errors.New("user not found")
	// ErrCommentNotFound indicates a discussion comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")
)
