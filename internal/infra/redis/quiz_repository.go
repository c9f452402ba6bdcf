package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-sync-service/internal/domain"
)

// versionRetention outlives any realistic load so a racing fill still sees the bump.
const versionRetention = 24 * time.Hour

var errStaleLoad = errors.New("quiz changed while loading")

// QuizSource is the system of record for quiz content and lifecycle (e.g. Postgres).
type QuizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) error
}

// QuizRepository caches quiz documents in Redis and falls back to the source on a miss.
// Quizzes are stored as: SET quiz:content:{quizID} {json} EX ttl
// A status change writes through to the source, bumps quiz:version:{quizID} and
// deletes the cached document, so every instance observes the new status on its
// next read. A load only fills the cache if the version it started under is
// still current, which keeps a slow pre-change load from restoring old content.
type QuizRepository struct {
	client *redis.Client
	source QuizSource
	ttl    time.Duration
	log    *slog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, source QuizSource, ttl time.Duration, log *slog.Logger) *QuizRepository {
	return &QuizRepository{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		version, verErr := r.client.Get(ctx, r.versionKey(quizID)).Result()
		if verErr != nil && !errors.Is(verErr, redis.Nil) {
			r.log.Warn("read quiz version failed", "quiz_id", quizID, "error", verErr)
		}

		quiz, err := r.source.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if verErr != nil && !errors.Is(verErr, redis.Nil) {
			return quiz, nil
		}

		raw, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("encode quiz %s: %w", quizID, err)
		}
		switch err := r.storeIfCurrent(ctx, quizID, version, raw); {
		case errors.Is(err, errStaleLoad):
			r.log.Debug("skip caching stale quiz", "quiz_id", quizID)
		case err != nil:
			r.log.Warn("cache quiz failed", "quiz_id", quizID, "error", err)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) UpdateQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) error {
	if err := r.source.SaveQuizStatus(ctx, quizID, status); err != nil {
		return fmt.Errorf("save quiz %s status: %w", quizID, err)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.versionKey(quizID))
		pipe.Expire(ctx, r.versionKey(quizID), versionRetention)
		pipe.Del(ctx, r.key(quizID))
		return nil
	})
	r.sf.Forget(quizID)
	if err != nil {
		return fmt.Errorf("invalidate quiz %s: %w", quizID, err)
	}
	return nil
}

// storeIfCurrent writes the document only while the quiz version still equals expected.
func (r *QuizRepository) storeIfCurrent(ctx context.Context, quizID, expected string, raw []byte) error {
	versionKey := r.versionKey(quizID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expected {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(quizID), raw, r.ttlWithJitter())
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleLoad
	}
	return err
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("read cached quiz failed", "quiz_id", quizID, "error", err)
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		r.log.Warn("decode cached quiz failed", "quiz_id", quizID, "error", err)
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:content:" + quizID
}

func (r *QuizRepository) versionKey(quizID string) string {
	return "quiz:version:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
