package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-game-service/internal/domain"
)

// ContentLoader fetches playable quiz content from the backing store.
type ContentLoader interface {
	LoadPublishedQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error)
}

// ContentCache is a read-through Redis cache of playable quiz content,
// stored as one JSON blob per quiz:
//
//	SET quiz:{quizID}:content {json} EX ttl
//
// Published quizzes are immutable, so cached content never goes stale except
// through soft delete, which Invalidate covers with a DEL.
type ContentCache struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentCache(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContentCache) PlayableQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	key := c.contentKey(quizID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return decodeQuiz(raw)
	}

	result, err, _ := c.sf.Do(quizID.String(), func() (interface{}, error) {
		// Re-check the cache in case another goroutine filled it.
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return decodeQuiz(raw)
		}

		quiz, err := c.loader.LoadPublishedQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("marshal quiz content: %w", err)
		}
		// Best-effort write; a failed SET only costs the next reader a load.
		_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops cached content so a soft-deleted quiz stops being
// playable without waiting for the TTL.
func (c *ContentCache) Invalidate(ctx context.Context, quizID uuid.UUID) error {
	if err := c.client.Del(ctx, c.contentKey(quizID)).Err(); err != nil {
		return fmt.Errorf("invalidate quiz content: %w", err)
	}
	return nil
}

func (c *ContentCache) contentKey(quizID uuid.UUID) string {
	return "quiz:" + quizID.String() + ":content"
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func decodeQuiz(raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz content: %w", err)
	}
	return quiz, nil
}
