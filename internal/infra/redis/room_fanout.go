package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/domain"
)

const roomChannel = "quiz:rooms"

// RoomFanout extends a local room registry across service instances.
// Events are delivered to local members first, then published on a shared
// channel; every other instance replays them into its own registry.
type RoomFanout struct {
	client  *redis.Client
	local   app.Broadcaster
	origin  string
	timeout time.Duration
	log     *slog.Logger
}

type fanoutMessage struct {
	Origin         string          `json:"origin"`
	PresentationID string          `json:"presentationId"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
}

func NewRoomFanout(client *redis.Client, local app.Broadcaster, log *slog.Logger) *RoomFanout {
	return &RoomFanout{
		client:  client,
		local:   local,
		origin:  uuid.NewString(),
		timeout: 2 * time.Second,
		log:     log,
	}
}

// Broadcast returns the number of local connections that accepted the event.
func (f *RoomFanout) Broadcast(presentationID string, event domain.Event) int {
	delivered := f.local.Broadcast(presentationID, event)

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		f.log.Error("encode fanout payload failed", "presentation_id", presentationID, "event", event.Type, "error", err)
		return delivered
	}
	raw, err := json.Marshal(fanoutMessage{
		Origin:         f.origin,
		PresentationID: presentationID,
		Type:           event.Type,
		Payload:        payload,
	})
	if err != nil {
		f.log.Error("encode fanout message failed", "presentation_id", presentationID, "event", event.Type, "error", err)
		return delivered
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.client.Publish(ctx, roomChannel, raw).Err(); err != nil {
		f.log.Warn("publish room event failed", "presentation_id", presentationID, "event", event.Type, "error", err)
	}
	return delivered
}

// Start subscribes to the shared channel and replays remote events until ctx is done.
// It returns once the subscription is confirmed.
func (f *RoomFanout) Start(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, roomChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", roomChannel, err)
	}

	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				f.replay(msg.Payload)
			}
		}
	}()
	return nil
}

func (f *RoomFanout) replay(raw string) {
	var msg fanoutMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		f.log.Warn("decode fanout message failed", "error", err)
		return
	}
	if msg.Origin == f.origin {
		return
	}
	f.local.Broadcast(msg.PresentationID, domain.Event{Type: msg.Type, Payload: msg.Payload})
}
