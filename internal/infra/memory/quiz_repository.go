package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-sync-service/internal/domain"
)

// QuizSource is the system of record for quiz content and lifecycle (e.g. Postgres).
type QuizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) error
}

// QuizRepository caches quizzes with TTL to avoid repeated DB hits.
// Status changes go straight to the source and drop the cached copy.
type QuizRepository struct {
	source QuizSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
	// generation is bumped on every invalidation; a load only lands if it is unchanged.
	generation map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(source QuizSource, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),

		generation: make(map[string]uint64),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}

		r.mu.RLock()
		gen := r.generation[quizID]
		r.mu.RUnlock()

		quiz, err := r.source.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		if r.generation[quizID] == gen {
			r.cache[quizID] = cachedQuiz{
				quiz:      quiz,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
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
	r.Invalidate(quizID)
	return nil
}

// Invalidate forgets the cached copy so the next read hits the source.
// Loads already in flight still answer their callers but are not cached.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	r.generation[quizID]++
	delete(r.cache, quizID)
	r.mu.Unlock()
	r.sf.Forget(quizID)
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// QuizCatalog is a QuizSource backed by a map (useful for tests/demos).
type QuizCatalog struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizCatalog(quizzes ...domain.Quiz) *QuizCatalog {
	c := &QuizCatalog{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, quiz := range quizzes {
		c.quizzes[quiz.ID] = quiz
	}
	return c
}

// Put adds or replaces a quiz.
func (c *QuizCatalog) Put(quiz domain.Quiz) {
	c.mu.Lock()
	c.quizzes[quiz.ID] = quiz
	c.mu.Unlock()
}

func (c *QuizCatalog) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if quiz, ok := c.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (c *QuizCatalog) SaveQuizStatus(_ context.Context, quizID string, status domain.QuizStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.Status == status {
		return nil
	}
	if !quiz.Status.CanTransitionTo(status) {
		return fmt.Errorf("%s -> %s: %w", quiz.Status, status, domain.ErrInvalidTransition)
	}
	quiz.Status = status
	c.quizzes[quizID] = quiz
	return nil
}

// GetQuiz and UpdateQuizStatus let the catalog serve as an uncached app.QuizRepository.
func (c *QuizCatalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.LoadQuiz(ctx, quizID)
}

func (c *QuizCatalog) UpdateQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) error {
	return c.SaveQuizStatus(ctx, quizID, status)
}
