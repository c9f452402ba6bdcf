package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/domain"
)

func TestHandshakeRequiresCredential(t *testing.T) {
	h := newHarness(t)
	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(u+"?token=forged", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, err=%v resp=%+v", err, resp)
	}
}

func TestQueryTokenAccepted(t *testing.T) {
	h := newHarness(t)
	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?token=" + token(t, "alice")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial with query token: %v", err)
	}
	defer conn.Close()
}

func TestLateJoinerRecoversLiveQuestion(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")

	ack := speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1", "questionIndex": 2})
	if ack["success"] != true {
		t.Fatalf("start failed: %v", ack)
	}
	ack = speaker.request(domain.EventNextQuestion, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1", "questionIndex": 5})
	if ack["success"] != true {
		t.Fatalf("next failed: %v", ack)
	}

	// A participant who missed both pushes connects afterwards.
	late := h.dial(t, "alice")
	late.join("pres-1")

	sync := late.request(domain.EventSyncQuestionState, map[string]any{"quizId": "quiz-1"})
	if sync["success"] != true || sync["questionIndex"] != float64(5) || sync["quizId"] != "quiz-1" {
		t.Fatalf("expected question 5, got %v", sync)
	}

	state := late.request(domain.EventGetQuizState, map[string]any{"quizId": "quiz-1"})
	inner, _ := state["state"].(map[string]any)
	if state["success"] != true || inner["currentQuestionIndex"] != float64(5) {
		t.Fatalf("expected state index 5, got %v", state)
	}
}

func TestPullWithoutAckIDRepliesWithEvent(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})

	speaker.emit(domain.EventSyncQuestionState, map[string]any{"quizId": "quiz-1"})
	reply := speaker.expect(domain.EventSyncQuestionState)
	if reply["success"] != true || reply["questionIndex"] != float64(0) {
		t.Fatalf("unexpected sync reply %v", reply)
	}
}

func TestGetQuizStateWithoutStartFails(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, "alice")

	ack := alice.request(domain.EventGetQuizState, map[string]any{"quizId": "quiz-1"})
	if ack["success"] != false || ack["message"] == "" || ack["message"] == nil {
		t.Fatalf("expected failure with message, got %v", ack)
	}
	sync := alice.request(domain.EventSyncQuestionState, map[string]any{"quizId": "quiz-1"})
	if sync["success"] != false {
		t.Fatalf("expected sync failure, got %v", sync)
	}
	if _, guessed := sync["questionIndex"]; guessed {
		t.Fatalf("sync must not guess an index: %v", sync)
	}
}

func TestRoomIsolation(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	alice := h.dial(t, "alice")
	alice.join("pres-1")
	bob := h.dial(t, "bob")
	bob.join("pres-2")

	speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})

	started := alice.expect(domain.EventQuizStarted)
	if started["questionIndex"] != float64(0) {
		t.Fatalf("unexpected quiz-started %v", started)
	}
	quiz, _ := started["quiz"].(map[string]any)
	questions, _ := quiz["questions"].([]any)
	if len(questions) != 6 {
		t.Fatalf("expected 6 public questions, got %v", quiz)
	}
	if first, _ := questions[0].(map[string]any); first["correctAnswer"] != nil {
		t.Fatalf("correct answer leaked to the audience: %v", first)
	}

	// The broadcast finished before the speaker's ack, so anything queued for
	// bob would arrive before this pong.
	bob.emit(domain.EventPing, nil)
	if f := bob.read(); f.Type != domain.EventPong {
		t.Fatalf("pres-2 member received %s from pres-1", f.Type)
	}
}

func TestControlRequiresRoleAndMembership(t *testing.T) {
	h := newHarness(t)

	alice := h.dial(t, "alice")
	alice.join("pres-1")
	ack := alice.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})
	if ack["success"] != false || !strings.Contains(ack["message"].(string), "forbidden") {
		t.Fatalf("expected audience to be forbidden, got %v", ack)
	}

	outsider := h.dial(t, "speaker")
	ack = outsider.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})
	if ack["success"] != false || !strings.Contains(ack["message"].(string), "forbidden") {
		t.Fatalf("expected non-member speaker to be forbidden, got %v", ack)
	}

	organizer := h.dial(t, "organizer")
	organizer.join("pres-2")
	ack = organizer.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-2"})
	if ack["success"] != false || !strings.Contains(ack["message"].(string), "does not belong") {
		t.Fatalf("expected quiz/presentation mismatch, got %v", ack)
	}
}

func TestNextQuestionOutOfRangeRejected(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})

	ack := speaker.request(domain.EventNextQuestion, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1", "questionIndex": 6})
	if ack["success"] != false {
		t.Fatalf("expected out of range rejection, got %v", ack)
	}
	sync := speaker.request(domain.EventSyncQuestionState, map[string]any{"quizId": "quiz-1"})
	if sync["questionIndex"] != float64(0) {
		t.Fatalf("rejected advance must not move progression, got %v", sync)
	}
}

func TestEndQuizClearsState(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	alice := h.dial(t, "alice")
	alice.join("pres-1")

	speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})
	ack := speaker.request(domain.EventEndQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})
	if ack["success"] != true {
		t.Fatalf("end failed: %v", ack)
	}
	ended := alice.expect(domain.EventQuizEnded)
	if ended["quizId"] != "quiz-1" {
		t.Fatalf("unexpected quiz-ended %v", ended)
	}
	if state := alice.request(domain.EventGetQuizState, map[string]any{"quizId": "quiz-1"}); state["success"] != false {
		t.Fatalf("expected no state after end, got %v", state)
	}
	quiz, _ := h.catalog.LoadQuiz(t.Context(), "quiz-1")
	if quiz.Status != domain.QuizCompleted {
		t.Fatalf("expected quiz completed, got %s", quiz.Status)
	}
}

func TestSubmitAnswerBroadcastsStats(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	alice := h.dial(t, "alice")
	alice.join("pres-1")
	speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})

	alice.emit(domain.EventSubmitAnswer, map[string]any{"quizId": "quiz-1", "questionId": "quiz-1-q0", "answer": "B", "presentationId": "pres-1"})
	result := alice.expect(domain.EventAnswerSubmitted)
	if result["success"] != true || result["questionId"] != "quiz-1-q0" {
		t.Fatalf("unexpected answer-submitted %v", result)
	}
	stats := speaker.expect(domain.EventQuizStatsUpdated)
	if stats["totalAnswers"] != float64(1) || stats["correctAnswers"] != float64(0) {
		t.Fatalf("unexpected stats after wrong answer %v", stats)
	}

	// Resubmitting flips correctness and still counts one answer.
	alice.emit(domain.EventSubmitAnswer, map[string]any{"quizId": "quiz-1", "questionId": "quiz-1-q0", "answer": "A", "presentationId": "pres-1"})
	alice.expect(domain.EventAnswerSubmitted)
	stats = speaker.expect(domain.EventQuizStatsUpdated)
	if stats["totalAnswers"] != float64(1) || stats["correctAnswers"] != float64(1) || stats["participantCount"] != float64(1) {
		t.Fatalf("unexpected stats after resubmission %v", stats)
	}
}

func TestSubmitAnswerToDraftQuizRejected(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, "alice")
	alice.join("pres-1")

	alice.emit(domain.EventSubmitAnswer, map[string]any{"quizId": "quiz-3", "questionId": "quiz-3-q0", "answer": "A", "presentationId": "pres-1"})
	result := alice.expect(domain.EventAnswerSubmitted)
	if result["success"] != false || !strings.Contains(result["error"].(string), "not active") {
		t.Fatalf("expected rejection, got %v", result)
	}

	// No stats broadcast reached the room: the next frame is the pong.
	alice.emit(domain.EventPing, nil)
	if f := alice.read(); f.Type != domain.EventPong {
		t.Fatalf("expected pong, got %s", f.Type)
	}
	records, _ := h.answers.ListAnswers(t.Context(), "quiz-3")
	if len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestFeedbackAndCommentsAreRelayed(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	alice := h.dial(t, "alice")
	alice.join("pres-1")
	speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})

	ack := alice.request(domain.EventSubmitFeedback, map[string]any{"presentationId": "pres-1", "type": "TOO_FAST", "message": "no spoiler please"})
	if ack["success"] != true {
		t.Fatalf("feedback failed: %v", ack)
	}
	feedback := speaker.expect(domain.EventFeedbackReceived)
	if feedback["message"] != "no ******* please" || feedback["userId"] != "alice" {
		t.Fatalf("unexpected feedback broadcast %v", feedback)
	}

	ack = alice.request(domain.EventCommentAdded, map[string]any{"quizId": "quiz-1", "comment": map[string]any{"content": "nice one"}})
	comment, _ := ack["comment"].(map[string]any)
	if ack["success"] != true || comment["id"] == "" {
		t.Fatalf("comment failed: %v", ack)
	}
	added := speaker.expect(domain.EventCommentAdded)
	if added["content"] != "nice one" {
		t.Fatalf("unexpected comment broadcast %v", added)
	}

	bob := h.dial(t, "bob")
	ack = bob.request(domain.EventCommentDeleted, map[string]any{"quizId": "quiz-1", "commentId": comment["id"]})
	if ack["success"] != false {
		t.Fatalf("expected another audience member to be forbidden, got %v", ack)
	}
	ack = speaker.request(domain.EventCommentDeleted, map[string]any{"quizId": "quiz-1", "commentId": comment["id"]})
	if ack["success"] != true {
		t.Fatalf("speaker delete failed: %v", ack)
	}
	deleted := alice.expect(domain.EventCommentDeleted)
	if deleted["commentId"] != comment["id"] {
		t.Fatalf("unexpected delete broadcast %v", deleted)
	}

	ack = alice.request(domain.EventSubmitFeedback, map[string]any{"presentationId": "pres-1", "type": "BORED"})
	if ack["success"] != false {
		t.Fatalf("expected invalid feedback type rejection, got %v", ack)
	}
}

func TestMalformedFrameAndUnknownEvent(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, "alice")

	if err := alice.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := alice.read(); f.Type != domain.EventError {
		t.Fatalf("expected error event, got %s", f.Type)
	}

	ack := alice.request("teleport", map[string]any{})
	if ack["success"] != false || !strings.Contains(ack["message"].(string), "unsupported") {
		t.Fatalf("expected unsupported failure, got %v", ack)
	}
}

func TestJoinAndLeaveAcceptBarePresentationID(t *testing.T) {
	h := newHarness(t)
	speaker := h.dial(t, "speaker")
	speaker.join("pres-1")
	alice := h.dial(t, "alice")

	ack := alice.request(domain.EventJoinPresentation, "pres-1")
	if ack["success"] != true || ack["presentationId"] != "pres-1" || ack["members"] != float64(2) {
		t.Fatalf("bare join failed: %v", ack)
	}

	ack = speaker.request(domain.EventStartQuiz, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1"})
	if ack["success"] != true {
		t.Fatalf("start failed: %v", ack)
	}
	if started := alice.expect(domain.EventQuizStarted); started["questionIndex"] != float64(0) {
		t.Fatalf("unexpected quiz-started %v", started)
	}

	ack = alice.request(domain.EventLeavePresentation, "pres-1")
	if ack["success"] != true {
		t.Fatalf("bare leave failed: %v", ack)
	}
	ack = speaker.request(domain.EventNextQuestion, map[string]any{"quizId": "quiz-1", "presentationId": "pres-1", "questionIndex": 1})
	if ack["success"] != true {
		t.Fatalf("next failed: %v", ack)
	}

	// The broadcast is enqueued before the speaker's ack, so a member would see it before this pong.
	if err := alice.conn.WriteJSON(map[string]any{"type": domain.EventPing, "ackId": "after-leave", "payload": map[string]any{}}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	for {
		f := alice.read()
		if f.Type == domain.EventNextQuestion {
			t.Fatalf("left member still received next-question")
		}
		if f.Type == domain.EventAck && f.AckID == "after-leave" {
			break
		}
	}
}

func TestInvalidPayloadMessageHidesDecoderDetail(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, "alice")

	for _, payload := range []any{42, "", map[string]any{"presentationId": 7}} {
		ack := alice.request(domain.EventJoinPresentation, payload)
		if ack["success"] != false || ack["message"] != domain.ErrInvalidPayload.Error() {
			t.Fatalf("payload %v: expected plain invalid payload, got %v", payload, ack)
		}
	}

	ack := alice.request(domain.EventSubmitFeedback, map[string]any{"presentationId": "pres-1", "type": "BORED"})
	if ack["message"] != domain.ErrInvalidPayload.Error() {
		t.Fatalf("expected plain invalid payload for validation failure, got %v", ack)
	}
}
