// Package client is a Go participant for the quiz socket protocol. It is used
// by load tools and tests to drive a presentation the same way a browser does.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/domain"
)

// ErrClosed is returned for requests issued on, or interrupted by, a closed connection.
var ErrClosed = errors.New("client closed")

// Event is one frame received from the server.
type Event struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RejectedError carries the message of a {success:false} reply.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return "rejected: " + e.Message }

// QuestionState is the answer to sync-question-state.
type QuestionState struct {
	QuizID        string `json:"quizId"`
	QuestionIndex int    `json:"questionIndex"`
}

type Options struct {
	// RequestTimeout bounds Request when the context has no deadline.
	RequestTimeout time.Duration
	// EventBuffer is the capacity of the Events channel; overflow is dropped.
	EventBuffer int
	// SyncBackOff builds the retry policy of SyncQuestion.
	SyncBackOff func() backoff.BackOff
	Log         *slog.Logger
}

func (o *Options) defaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.SyncBackOff == nil {
		o.SyncBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = time.Minute
			return b
		}
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
}

type Client struct {
	conn *websocket.Conn
	opts Options
	seq  atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
	closed  bool

	events chan Event
	done   chan struct{}
}

// Dial opens a socket to url (ws:// or wss://) authenticated with a bearer token.
func Dial(ctx context.Context, url, token string, opts Options) (*Client, error) {
	opts.defaults()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: %w", url, domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		opts:    opts,
		pending: make(map[string]chan json.RawMessage),
		events:  make(chan Event, opts.EventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers every non-ack frame. It is closed when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Emit sends an event without waiting for an acknowledgement.
func (c *Client) Emit(eventType string, payload any) error {
	return c.write(Event{Type: eventType}, payload)
}

// Request sends an event with a fresh ackId and waits for the matching ack.
// A {success:false} reply is returned as *RejectedError.
func (c *Client) Request(ctx context.Context, eventType string, payload any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	ackID := strconv.FormatUint(c.seq.Add(1), 10)
	reply := make(chan json.RawMessage, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[ackID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, ackID)
		c.mu.Unlock()
	}()

	if err := c.write(Event{Type: eventType, AckID: ackID}, payload); err != nil {
		return nil, err
	}

	select {
	case raw, ok := <-reply:
		if !ok {
			return nil, ErrClosed
		}
		return raw, rejection(raw)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", eventType, ctx.Err())
	}
}

// SyncQuestion asks for the live question of a quiz, retrying with
// exponential backoff while the server has no active question for it.
func (c *Client) SyncQuestion(ctx context.Context, quizID string) (QuestionState, error) {
	policy := backoff.WithContext(c.opts.SyncBackOff(), ctx)
	return backoff.RetryNotifyWithData(func() (QuestionState, error) {
		raw, err := c.Request(ctx, domain.EventSyncQuestionState, map[string]string{"quizId": quizID})
		var rejected *RejectedError
		switch {
		case errors.As(err, &rejected):
			return QuestionState{}, err
		case err != nil:
			return QuestionState{}, backoff.Permanent(err)
		}
		var state QuestionState
		if err := json.Unmarshal(raw, &state); err != nil {
			return QuestionState{}, backoff.Permanent(fmt.Errorf("decode sync reply: %w", err))
		}
		return state, nil
	}, policy, func(err error, wait time.Duration) {
		c.opts.Log.Debug("question sync retry", "quiz_id", quizID, "wait", wait, "error", err)
	})
}

// Close ends the connection and fails pending requests.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) write(frame Event, payload any) error {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", frame.Type, err)
		}
		frame.Payload = raw
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write %s: %w", frame.Type, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.events)
		close(c.done)
	}()

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.opts.Log.Warn("dropping malformed frame", "error", err)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.opts.Log.Debug("client read ended", "error", err)
			}
			return
		}

		if ev.Type == domain.EventAck {
			c.mu.Lock()
			ch, ok := c.pending[ev.AckID]
			delete(c.pending, ev.AckID)
			c.mu.Unlock()
			if ok {
				ch <- ev.Payload
			}
			continue
		}

		select {
		case c.events <- ev:
		default:
			c.opts.Log.Warn("event buffer full, dropping", "type", ev.Type)
		}
	}
}

// rejection turns a {success:false, message} payload into a *RejectedError.
func rejection(raw json.RawMessage) error {
	var reply struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Success == nil || *reply.Success {
		return nil
	}
	return &RejectedError{Message: reply.Message}
}
