package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresentationIndex shares the quiz -> presentation mapping between instances.
// Layout: SET quiz:presentation:{quizID} {presentationID} EX ttl
type PresentationIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresentationIndex(client *redis.Client, ttl time.Duration) *PresentationIndex {
	return &PresentationIndex{client: client, ttl: ttl}
}

func (i *PresentationIndex) Remember(ctx context.Context, quizID, presentationID string) error {
	if err := i.client.Set(ctx, i.key(quizID), presentationID, i.ttl).Err(); err != nil {
		return fmt.Errorf("redis remember presentation of %s: %w", quizID, err)
	}
	return nil
}

func (i *PresentationIndex) Lookup(ctx context.Context, quizID string) (string, bool, error) {
	presentationID, err := i.client.Get(ctx, i.key(quizID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis lookup presentation of %s: %w", quizID, err)
	}
	return presentationID, true, nil
}

func (i *PresentationIndex) key(quizID string) string {
	return "quiz:presentation:" + quizID
}
