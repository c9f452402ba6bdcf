package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/auth"
	"quiz-sync-service/internal/domain"
	"quiz-sync-service/internal/infra/memory"
	"quiz-sync-service/internal/moderation"
)

var testSecret = []byte("transport-secret")

const testIssuer = "quiz-sync"

type harness struct {
	server  *httptest.Server
	catalog *memory.QuizCatalog
	answers *memory.AnswerStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := memory.NewUserDirectory(
		domain.Identity{UserID: "speaker", Role: domain.RoleSpeaker, DisplayName: "Sam"},
		domain.Identity{UserID: "organizer", Role: domain.RoleOrganizer, DisplayName: "Olga"},
		domain.Identity{UserID: "alice", Role: domain.RoleAudience, DisplayName: "Alice"},
		domain.Identity{UserID: "bob", Role: domain.RoleAudience, DisplayName: "Bob"},
	)
	authn := auth.NewAuthenticator(testSecret, testIssuer, users)

	catalog := memory.NewQuizCatalog(
		fixtureQuiz("quiz-1", "pres-1", 6),
		fixtureQuiz("quiz-2", "pres-2", 3),
		fixtureQuiz("quiz-3", "pres-1", 2),
	)
	quizzes := memory.NewQuizRepository(catalog, time.Minute)
	rooms := app.NewRoomRegistry(log)
	index := memory.NewPresentationIndex()
	answers := memory.NewAnswerStore()
	discussion := memory.NewDiscussionStore()
	moderator, err := moderation.NewModerator([]string{"spoiler"}, '*')
	if err != nil {
		t.Fatalf("moderator: %v", err)
	}

	control := app.NewSessionControl(quizzes, memory.NewProgressionStore(), index, rooms, rooms, log)
	ws := NewWSHandler(authn, Services{
		Rooms:   rooms,
		Control: control,
		Answers: app.NewAnswerPipeline(quizzes, answers, rooms, log),
		Relays:  app.NewRelays(discussion, discussion, quizzes, index, rooms, moderator, log),
	}, WSOptions{AckTimeout: 2 * time.Second, SendBuffer: 64}, log)

	server := httptest.NewServer(NewRouter(ws, NewControlHandler(authn, control, log)))
	t.Cleanup(func() {
		ws.Shutdown()
		server.Close()
	})
	return &harness{server: server, catalog: catalog, answers: answers}
}

func fixtureQuiz(quizID, presentationID string, questions int) domain.Quiz {
	quiz := domain.Quiz{
		ID:             quizID,
		PresentationID: presentationID,
		Title:          "Quiz " + quizID,
		Status:         domain.QuizDraft,
		TimeLimit:      20,
	}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:       fmt.Sprintf("%s-q%d", quizID, i),
			QuizID:   quizID,
			Position: i,
			Text:     fmt.Sprintf("Question %d", i),
			Options: []domain.Option{
				{Label: "A", Text: "right"},
				{Label: "B", Text: "wrong"},
				{Label: "C", Text: "wrong"},
				{Label: "D", Text: "wrong"},
			},
			CorrectAnswer: "A",
		})
	}
	return quiz
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.SignToken(testSecret, testIssuer, userID, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type frame struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId"`
	Payload json.RawMessage `json:"payload"`
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func (h *harness) dial(t *testing.T, userID string) *testClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token(t, userID)}}
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) emit(eventType string, payload any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}); err != nil {
		c.t.Fatalf("write %s: %v", eventType, err)
	}
}

// request sends an ack-style event and returns the ack payload, skipping unrelated frames.
func (c *testClient) request(eventType string, payload any) map[string]any {
	c.t.Helper()
	c.seq++
	ackID := fmt.Sprintf("ack-%d", c.seq)
	if err := c.conn.WriteJSON(map[string]any{"type": eventType, "ackId": ackID, "payload": payload}); err != nil {
		c.t.Fatalf("write %s: %v", eventType, err)
	}
	for {
		f := c.read()
		if f.Type == domain.EventAck && f.AckID == ackID {
			return decodeMap(c.t, f.Payload)
		}
	}
}

// expect reads frames until one of the given type arrives.
func (c *testClient) expect(eventType string) map[string]any {
	c.t.Helper()
	for {
		f := c.read()
		if f.Type == eventType {
			return decodeMap(c.t, f.Payload)
		}
	}
}

func (c *testClient) read() frame {
	c.t.Helper()
	var f frame
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.ReadJSON(&f); err != nil {
		c.t.Fatalf("read json: %v", err)
	}
	return f
}

func (c *testClient) join(presentationID string) {
	c.t.Helper()
	ack := c.request(domain.EventJoinPresentation, map[string]any{"presentationId": presentationID})
	if ack["success"] != true {
		c.t.Fatalf("join %s failed: %v", presentationID, ack)
	}
}

func decodeMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	out := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode payload %s: %v", raw, err)
	}
	return out
}
