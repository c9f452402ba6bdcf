package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"quiz-sync-service/internal/domain"
)

func TestRoomFanoutReplaysOnOtherInstances(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localA, localB := &recordingBus{}, &recordingBus{}
	instanceA := NewRoomFanout(client, localA, discardLogger())
	instanceB := NewRoomFanout(client, localB, discardLogger())
	if err := instanceA.Start(ctx); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := instanceB.Start(ctx); err != nil {
		t.Fatalf("start b: %v", err)
	}

	instanceA.Broadcast("pres-1", domain.Event{
		Type:    domain.EventNextQuestion,
		Payload: map[string]any{"quizId": "quiz-1", "questionIndex": 3},
	})

	if got := localA.events(); len(got) != 1 {
		t.Fatalf("expected local delivery once, got %d", len(got))
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(localB.events()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := localB.events()
	if len(got) != 1 {
		t.Fatalf("expected remote replay once, got %d", len(got))
	}
	if got[0].room != "pres-1" || got[0].event.Type != domain.EventNextQuestion {
		t.Fatalf("unexpected replay %+v", got[0])
	}
	var payload struct {
		QuestionIndex int `json:"questionIndex"`
	}
	if err := json.Unmarshal(got[0].event.Payload.(json.RawMessage), &payload); err != nil || payload.QuestionIndex != 3 {
		t.Fatalf("unexpected payload %s err=%v", got[0].event.Payload, err)
	}

	// The origin instance must not replay its own event.
	time.Sleep(50 * time.Millisecond)
	if len(localA.events()) != 1 {
		t.Fatalf("origin replayed its own event")
	}
}

type delivery struct {
	room  string
	event domain.Event
}

type recordingBus struct {
	mu  sync.Mutex
	log []delivery
}

func (b *recordingBus) Broadcast(presentationID string, event domain.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, delivery{room: presentationID, event: event})
	return 1
}

func (b *recordingBus) events() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.log...)
}
