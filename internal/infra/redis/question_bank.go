package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-battle-service/internal/domain"
)

// QuestionLoader fetches the question pool for one level from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, level domain.Level) ([]domain.Question, error)
}

// QuestionBank caches question pools in Redis (hash per level) and falls back
// to a loader on cache miss. Entries are stored as:
// HSET questions:{level} {questionID} {question JSON}
// The JSON includes the correct index; the hash is server-side only and never
// reaches clients.
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return NewQuestionBankWithRand(client, loader, ttl, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionBankWithRand allows a deterministic pick order in tests.
func NewQuestionBankWithRand(client *redis.Client, loader QuestionLoader, ttl time.Duration, rnd *rand.Rand) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rnd,
	}
}

// PickQuestion returns one random question for the allowed levels whose id is
// not in usedIDs, or domain.ErrNoQuestionAvailable.
func (b *QuestionBank) PickQuestion(ctx context.Context, levels []domain.Level, usedIDs map[int]struct{}) (domain.Question, error) {
	candidates := make([]domain.Question, 0)
	for _, level := range levels {
		pool, err := b.pool(ctx, level)
		if err != nil {
			return domain.Question{}, err
		}
		for _, q := range pool {
			if _, used := usedIDs[q.ID]; !used {
				candidates = append(candidates, q)
			}
		}
	}
	if len(candidates) == 0 {
		return domain.Question{}, domain.ErrNoQuestionAvailable
	}

	b.rndMu.Lock()
	pick := candidates[b.rnd.Intn(len(candidates))]
	b.rndMu.Unlock()
	return pick, nil
}

func (b *QuestionBank) pool(ctx context.Context, level domain.Level) ([]domain.Question, error) {
	key := b.levelKey(level)

	cached, err := b.client.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return decodePool(level, cached)
	}

	result, err, _ := b.sf.Do(string(level), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := b.client.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			return decodePool(level, cached)
		}

		questions, err := b.loader.LoadQuestions(ctx, level)
		if err != nil {
			return nil, err
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.Pipeline()
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("marshal question %d: %w", q.ID, err)
			}
			pipe.HSet(ctx, key, strconv.Itoa(q.ID), raw)
		}
		if ttl > 0 && len(questions) > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) levelKey(level domain.Level) string {
	return "questions:" + string(level)
}

func decodePool(level domain.Level, cached map[string]string) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(cached))
	for id, raw := range cached {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode cached question %s: %w", id, err)
		}
		q.Level = level
		questions = append(questions, q)
	}
	return questions, nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
