package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-sync-service/internal/domain"
)

// ProgressionStore keeps the live question of each quiz in Redis so every
// service instance reads the same progression.
// Layout: HSET quiz:progress:{quizID} index {n} updatedAt {RFC3339Nano}
type ProgressionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

func NewProgressionStore(client *redis.Client, ttl time.Duration) *ProgressionStore {
	return &ProgressionStore{client: client, ttl: ttl, clock: time.Now}
}

func (s *ProgressionStore) Set(ctx context.Context, quizID string, index int) (domain.ProgressionState, error) {
	state := domain.ProgressionState{
		QuizID:               quizID,
		CurrentQuestionIndex: index,
		LastUpdated:          s.clock().UTC(),
	}
	key := s.key(quizID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"index", index,
			"updatedAt", state.LastUpdated.Format(time.RFC3339Nano))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("redis set progression %s: %w", quizID, err)
	}
	return state, nil
}

func (s *ProgressionStore) Get(ctx context.Context, quizID string) (domain.ProgressionState, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(quizID)).Result()
	if err != nil {
		return domain.ProgressionState{}, false, fmt.Errorf("redis get progression %s: %w", quizID, err)
	}
	if len(fields) == 0 {
		return domain.ProgressionState{}, false, nil
	}

	index, err := strconv.Atoi(fields["index"])
	if err != nil {
		return domain.ProgressionState{}, false, fmt.Errorf("decode progression index %q: %w", fields["index"], err)
	}
	updated, err := time.Parse(time.RFC3339Nano, fields["updatedAt"])
	if err != nil {
		return domain.ProgressionState{}, false, fmt.Errorf("decode progression timestamp %q: %w", fields["updatedAt"], err)
	}
	return domain.ProgressionState{QuizID: quizID, CurrentQuestionIndex: index, LastUpdated: updated}, true, nil
}

func (s *ProgressionStore) Clear(ctx context.Context, quizID string) error {
	if err := s.client.Del(ctx, s.key(quizID)).Err(); err != nil {
		return fmt.Errorf("redis clear progression %s: %w", quizID, err)
	}
	return nil
}

func (s *ProgressionStore) key(quizID string) string {
	return "quiz:progress:" + quizID
}
