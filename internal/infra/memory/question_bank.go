package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-battle-service/internal/domain"
)

// QuestionLoader fetches the question pool for one difficulty level from a
// backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, level domain.Level) ([]domain.Question, error)
}

// QuestionBank caches per-level question pools with TTL to avoid repeated DB
// hits and picks a random unused question per request.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[domain.Level]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return NewQuestionBankWithRand(loader, ttl, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionBankWithRand allows a deterministic pick order in tests.
func NewQuestionBankWithRand(loader QuestionLoader, ttl time.Duration, rnd *rand.Rand) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rnd,
		cache:  make(map[domain.Level]cachedPool),
	}
}

// PickQuestion gathers the pools for the allowed levels and returns one random
// question whose id is not in usedIDs.
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
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[level]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(string(level), func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[level]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, level)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[level] = cachedPool{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by an in-memory slice
// (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, level domain.Level) ([]domain.Question, error) {
	matched := make([]domain.Question, 0)
	for _, q := range l.questions {
		if q.Level == level {
			matched = append(matched, q)
		}
	}
	return matched, nil
}
