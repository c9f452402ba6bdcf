package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/auth"
	"quiz-sync-service/internal/domain"
)

// ControlHandler exposes start/next/end over HTTP for presenter tooling. It goes
// through the same SessionControl as the socket events.
type ControlHandler struct {
	auth    Authenticator
	control *app.SessionControl
	log     *slog.Logger
}

func NewControlHandler(authn Authenticator, control *app.SessionControl, log *slog.Logger) *ControlHandler {
	return &ControlHandler{auth: authn, control: control, log: log}
}

type controlRequest struct {
	PresentationID string `json:"presentationId"`
	QuestionIndex  *int   `json:"questionIndex,omitempty"`
}

func (h *ControlHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, actor app.Actor, quizID string, req controlRequest) (any, error) {
		state, err := h.control.StartQuiz(ctx, actor, app.StartQuizCommand{
			QuizID:         quizID,
			PresentationID: req.PresentationID,
			QuestionIndex:  req.QuestionIndex,
		})
		return stateReply{Success: true, State: state}, err
	})
}

func (h *ControlHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, actor app.Actor, quizID string, req controlRequest) (any, error) {
		if req.QuestionIndex == nil {
			return nil, domain.ErrInvalidPayload
		}
		state, err := h.control.NextQuestion(ctx, actor, app.NextQuestionCommand{
			QuizID:         quizID,
			PresentationID: req.PresentationID,
			QuestionIndex:  *req.QuestionIndex,
		})
		return stateReply{Success: true, State: state}, err
	})
}

func (h *ControlHandler) End(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, actor app.Actor, quizID string, req controlRequest) (any, error) {
		err := h.control.EndQuiz(ctx, actor, app.EndQuizCommand{QuizID: quizID, PresentationID: req.PresentationID})
		return successReply{Success: true}, err
	})
}

// State serves the authoritative progression, mirroring get-quiz-state.
func (h *ControlHandler) State(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Authenticate(r.Context(), auth.CredentialFromRequest(r)); err != nil {
		h.writeError(w, err)
		return
	}
	state, err := h.control.State(r.Context(), r.PathValue("quizId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateReply{Success: true, State: state})
}

type controlFunc func(ctx context.Context, actor app.Actor, quizID string, req controlRequest) (any, error)

func (h *ControlHandler) serve(w http.ResponseWriter, r *http.Request, fn controlFunc) {
	identity, err := h.auth.Authenticate(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req controlRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, domain.ErrInvalidPayload)
			return
		}
	}

	result, err := fn(r.Context(), app.Actor{Identity: identity}, r.PathValue("quizId"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ControlHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("control request failed", "error", err)
	}
	writeJSON(w, status, failureReply{Success: false, Message: publicMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrNoActiveQuestion):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuizMismatch),
		errors.Is(err, domain.ErrQuizNotActive),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrQuestionIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
