package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/auth"
	"quiz-sync-service/internal/domain"
)

// Authenticator verifies the handshake credential.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domain.Identity, error)
}

// Services are the use cases the socket and control plane dispatch to.
type Services struct {
	Rooms   *app.RoomRegistry
	Control *app.SessionControl
	Answers *app.AnswerPipeline
	Relays  *app.Relays
}

type WSOptions struct {
	AckTimeout time.Duration
	SendBuffer int
}

// eventHandler runs one inbound event and returns the reply payload.
type eventHandler func(ctx context.Context, c *wsConn, payload json.RawMessage) (any, error)

type route struct {
	handle eventHandler
	// reply is the event type used to answer a request that carried no ackId.
	reply string
	// notifies is set when the handler reports failures to the sender itself.
	notifies bool
}

type WSHandler struct {
	auth     Authenticator
	svc      Services
	opts     WSOptions
	upgrader websocket.Upgrader
	routes   map[string]route
	log      *slog.Logger

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewWSHandler(authn Authenticator, svc Services, opts WSOptions, log *slog.Logger) *WSHandler {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 5 * time.Second
	}
	h := &WSHandler{
		auth: authn,
		svc:  svc,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[*wsConn]struct{}),
	}
	h.routes = map[string]route{
		domain.EventJoinPresentation:  {handle: h.joinPresentation},
		domain.EventLeavePresentation: {handle: h.leavePresentation},
		domain.EventStartQuiz:         {handle: h.startQuiz},
		domain.EventNextQuestion:      {handle: h.nextQuestion},
		domain.EventEndQuiz:           {handle: h.endQuiz},
		domain.EventGetQuizState:      {handle: h.getQuizState, reply: domain.EventGetQuizState},
		domain.EventSyncQuestionState: {handle: h.syncQuestionState, reply: domain.EventSyncQuestionState},
		domain.EventSubmitAnswer:      {handle: h.submitAnswer, notifies: true},
		domain.EventSubmitFeedback:    {handle: h.submitFeedback},
		domain.EventCommentAdded:      {handle: h.addComment},
		domain.EventCommentUpdated:    {handle: h.updateComment},
		domain.EventCommentDeleted:    {handle: h.deleteComment},
		domain.EventPing:              {handle: h.ping, reply: domain.EventPong},
	}
	return h
}

// ServeWS authenticates the handshake, upgrades it and serves events until the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Authenticate(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			h.log.Info("ws handshake rejected", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		h.log.Error("ws authentication failed", "error", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := newWSConn(ws, identity, h.opts.SendBuffer, h.log)
	h.track(c)
	go c.writeLoop()
	c.log.Info("participant connected", "role", identity.Role)

	h.readLoop(r.Context(), c)

	h.svc.Rooms.Disconnect(c)
	h.untrack(c)
	c.close()
	<-c.done
	c.log.Info("participant disconnected")
}

// readLoop handles the connection's events one at a time, in arrival order.
func (h *WSHandler) readLoop(ctx context.Context, c *wsConn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("ws read error", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var in inboundMessage
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			c.Send(domain.Event{Type: domain.EventError, Payload: errorPayload{Message: "malformed frame"}})
			continue
		}
		h.dispatch(ctx, c, in)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, c *wsConn, in inboundMessage) {
	rt, ok := h.routes[in.Type]
	if !ok {
		h.fail(c, in.AckID, "unsupported message type: "+in.Type)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.opts.AckTimeout)
	defer cancel()

	result, err := rt.handle(reqCtx, c, in.Payload)
	if err != nil {
		message := publicMessage(err)
		if message == "internal error" {
			c.log.Error("event failed", "event", in.Type, "error", err)
		} else {
			c.log.Debug("event rejected", "event", in.Type, "error", err)
		}
		switch {
		case in.AckID != "":
			c.ack(in.AckID, failureReply{Success: false, Message: message})
		case rt.reply != "":
			c.Send(domain.Event{Type: rt.reply, Payload: failureReply{Success: false, Message: message}})
		case !rt.notifies:
			c.Send(domain.Event{Type: domain.EventError, Payload: errorPayload{Message: message}})
		}
		return
	}

	switch {
	case in.AckID != "":
		c.ack(in.AckID, result)
	case rt.reply != "":
		c.Send(domain.Event{Type: rt.reply, Payload: result})
	}
}

func (h *WSHandler) fail(c *wsConn, ackID, message string) {
	if ackID != "" {
		c.ack(ackID, failureReply{Success: false, Message: message})
		return
	}
	c.Send(domain.Event{Type: domain.EventError, Payload: errorPayload{Message: message}})
}

func (h *WSHandler) actor(c *wsConn) app.Actor {
	return app.Actor{Identity: c.identity, ConnID: c.id}
}

func (h *WSHandler) joinPresentation(_ context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	presentationID, err := decodePresentationID(raw)
	if err != nil {
		return nil, err
	}
	members := h.svc.Rooms.Join(c, presentationID)
	return joinReply{Success: true, PresentationID: presentationID, Members: members}, nil
}

func (h *WSHandler) leavePresentation(_ context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	presentationID, err := decodePresentationID(raw)
	if err != nil {
		return nil, err
	}
	h.svc.Rooms.Leave(c, presentationID)
	return successReply{Success: true}, nil
}

func (h *WSHandler) startQuiz(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p startQuizPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	state, err := h.svc.Control.StartQuiz(ctx, h.actor(c), app.StartQuizCommand{
		QuizID:         p.QuizID,
		PresentationID: p.PresentationID,
		QuestionIndex:  p.QuestionIndex,
	})
	if err != nil {
		return nil, err
	}
	return stateReply{Success: true, State: state}, nil
}

func (h *WSHandler) nextQuestion(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p nextQuestionPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if p.QuestionIndex == nil {
		return nil, domain.ErrInvalidPayload
	}
	state, err := h.svc.Control.NextQuestion(ctx, h.actor(c), app.NextQuestionCommand{
		QuizID:         p.QuizID,
		PresentationID: p.PresentationID,
		QuestionIndex:  *p.QuestionIndex,
	})
	if err != nil {
		return nil, err
	}
	return stateReply{Success: true, State: state}, nil
}

func (h *WSHandler) endQuiz(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p endQuizPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if err := h.svc.Control.EndQuiz(ctx, h.actor(c), app.EndQuizCommand{QuizID: p.QuizID, PresentationID: p.PresentationID}); err != nil {
		return nil, err
	}
	return successReply{Success: true}, nil
}

func (h *WSHandler) getQuizState(ctx context.Context, _ *wsConn, raw json.RawMessage) (any, error) {
	var p quizRefPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	state, err := h.svc.Control.State(ctx, p.QuizID)
	if err != nil {
		return nil, err
	}
	return stateReply{Success: true, State: state}, nil
}

func (h *WSHandler) syncQuestionState(ctx context.Context, _ *wsConn, raw json.RawMessage) (any, error) {
	var p quizRefPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	state, err := h.svc.Control.State(ctx, p.QuizID)
	if err != nil {
		return nil, err
	}
	return syncReply{Success: true, QuizID: state.QuizID, QuestionIndex: state.CurrentQuestionIndex}, nil
}

func (h *WSHandler) submitAnswer(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p submitAnswerPayload
	if err := decodePayload(raw, &p); err != nil {
		c.Send(domain.Event{Type: domain.EventAnswerSubmitted, Payload: answerSubmittedReply{Error: publicMessage(err)}})
		return nil, err
	}
	record, stats, err := h.svc.Answers.Submit(ctx, c.identity, domain.AnswerSubmission{
		QuizID:         p.QuizID,
		QuestionID:     p.QuestionID,
		Answer:         p.Answer,
		PresentationID: p.PresentationID,
	})
	if err != nil {
		c.Send(domain.Event{Type: domain.EventAnswerSubmitted, Payload: answerSubmittedReply{QuestionID: p.QuestionID, Error: publicMessage(err)}})
		return nil, err
	}
	reply := answerSubmittedReply{Success: true, QuestionID: record.QuestionID, Stats: &stats}
	c.Send(domain.Event{Type: domain.EventAnswerSubmitted, Payload: reply})
	return reply, nil
}

func (h *WSHandler) submitFeedback(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p feedbackPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	feedback, err := h.svc.Relays.SubmitFeedback(ctx, c.identity, app.FeedbackInput{
		PresentationID: p.PresentationID,
		Type:           p.Type,
		Message:        p.Message,
	})
	if err != nil {
		return nil, err
	}
	return feedbackReply{Success: true, Feedback: feedback}, nil
}

func (h *WSHandler) addComment(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p commentAddedPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	comment, err := h.svc.Relays.AddComment(ctx, c.identity, app.CommentInput{
		QuizID:     p.QuizID,
		QuestionID: p.Comment.QuestionID,
		Content:    p.Comment.Content,
	})
	if err != nil {
		return nil, err
	}
	return commentReply{Success: true, Comment: comment}, nil
}

func (h *WSHandler) updateComment(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p commentUpdatedPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	comment, err := h.svc.Relays.UpdateComment(ctx, c.identity, app.CommentUpdate{
		QuizID:    p.QuizID,
		CommentID: p.CommentID,
		Content:   p.Content,
	})
	if err != nil {
		return nil, err
	}
	return commentReply{Success: true, Comment: comment}, nil
}

func (h *WSHandler) deleteComment(ctx context.Context, c *wsConn, raw json.RawMessage) (any, error) {
	var p commentDeletedPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if err := h.svc.Relays.DeleteComment(ctx, c.identity, app.CommentDelete{QuizID: p.QuizID, CommentID: p.CommentID}); err != nil {
		return nil, err
	}
	return successReply{Success: true}, nil
}

func (h *WSHandler) ping(context.Context, *wsConn, json.RawMessage) (any, error) {
	return struct {
		Time time.Time `json:"time"`
	}{Time: time.Now().UTC()}, nil
}

func (h *WSHandler) track(c *wsConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *WSHandler) untrack(c *wsConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Shutdown closes every open socket. Hijacked connections are not covered by
// http.Server.Shutdown.
func (h *WSHandler) Shutdown() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.ws.Close()
	}
}
