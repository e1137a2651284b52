package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"quiz-game-service/internal/domain"
)

// ContentLoader fetches playable quiz content from a backing store.
type ContentLoader interface {
	LoadPublishedQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error)
}

// LoadPublishedQuiz serves playable content straight from the in-memory
// catalog: published, not deleted, questions in creation order.
func (s *Store) LoadPublishedQuiz(_ context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok || quiz.Deleted || !quiz.Published {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	copied := *quiz
	copied.Questions = make([]*domain.Question, 0, len(quiz.Questions))
	for _, question := range quiz.Questions {
		q := *question
		q.Answers = copyAnswers(question.Answers)
		copied.Questions = append(copied.Questions, &q)
	}
	sort.Slice(copied.Questions, func(i, j int) bool {
		return copied.Questions[i].Position < copied.Questions[j].Position
	})
	return copied, nil
}

// ContentCache caches playable quiz content with a TTL to avoid repeated
// loads. Published quizzes are immutable, so the TTL is hygiene rather than
// correctness; Invalidate handles the one mutation that matters (soft
// delete).
type ContentCache struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[uuid.UUID]cachedContent
}

type cachedContent struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewContentCache(loader ContentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[uuid.UUID]cachedContent),
	}
}

func (c *ContentCache) PlayableQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID.String(), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.loader.LoadPublishedQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedContent{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops a quiz from the cache.
func (c *ContentCache) Invalidate(_ context.Context, quizID uuid.UUID) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader is a map-backed loader for tests.
type StaticContentLoader struct {
	quizzes map[uuid.UUID]domain.Quiz
}

func NewStaticContentLoader(quizzes map[uuid.UUID]domain.Quiz) *StaticContentLoader {
	return &StaticContentLoader{quizzes: quizzes}
}

func (l *StaticContentLoader) LoadPublishedQuiz(_ context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// Delete removes a quiz from the loader.
func (l *StaticContentLoader) Delete(quizID uuid.UUID) {
	delete(l.quizzes, quizID)
}
