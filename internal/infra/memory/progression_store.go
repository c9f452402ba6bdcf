package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"quiz-sync-service/internal/domain"
)

const progressionShards = 32

// ProgressionStore is an in-memory implementation of app.ProgressionStore.
// Quiz ids are spread over lock shards so writes for different quizzes do not contend.
type ProgressionStore struct {
	clock  func() time.Time
	shards [progressionShards]progressionShard
}

type progressionShard struct {
	mu     sync.RWMutex
	states map[string]domain.ProgressionState
}

func NewProgressionStore() *ProgressionStore {
	return NewProgressionStoreWithClock(time.Now)
}

// NewProgressionStoreWithClock allows deterministic timestamps in tests.
func NewProgressionStoreWithClock(clock func() time.Time) *ProgressionStore {
	s := &ProgressionStore{clock: clock}
	for i := range s.shards {
		s.shards[i].states = make(map[string]domain.ProgressionState)
	}
	return s
}

func (s *ProgressionStore) Set(_ context.Context, quizID string, index int) (domain.ProgressionState, error) {
	shard := s.shard(quizID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	state := domain.ProgressionState{
		QuizID:               quizID,
		CurrentQuestionIndex: index,
		LastUpdated:          s.clock(),
	}
	shard.states[quizID] = state
	return state, nil
}

func (s *ProgressionStore) Get(_ context.Context, quizID string) (domain.ProgressionState, bool, error) {
	shard := s.shard(quizID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	state, ok := shard.states[quizID]
	return state, ok, nil
}

func (s *ProgressionStore) Clear(_ context.Context, quizID string) error {
	shard := s.shard(quizID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.states, quizID)
	return nil
}

func (s *ProgressionStore) shard(quizID string) *progressionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(quizID))
	return &s.shards[h.Sum32()%progressionShards]
}
