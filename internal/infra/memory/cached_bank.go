package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizbot/internal/domain"
	"quizbot/internal/engine"
)

// CachedBank wraps a question bank with a TTL cache on GetByID to avoid
// repeated backing-store hits while a session snapshots its questions.
// Random samples and range listings always pass through.
type CachedBank struct {
	inner engine.QuestionBank
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedQuestion
}

type cachedQuestion struct {
	record    domain.QuestionRecord
	expiresAt time.Time
}

func NewCachedBank(inner engine.QuestionBank, ttl time.Duration) *CachedBank {
	return &CachedBank{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[int64]cachedQuestion),
	}
}

func (c *CachedBank) GetByID(ctx context.Context, id int64) (domain.QuestionRecord, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.record, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.record, nil
		}
		c.mu.RUnlock()

		record, err := c.inner.GetByID(ctx, id)
		if err != nil {
			return domain.QuestionRecord{}, err
		}

		c.mu.Lock()
		c.cache[id] = cachedQuestion{record: record, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return record, nil
	})
	if err != nil {
		return domain.QuestionRecord{}, err
	}
	return result.(domain.QuestionRecord), nil
}

func (c *CachedBank) SampleRandom(ctx context.Context, n int, category string) ([]domain.QuestionRecord, error) {
	return c.inner.SampleRandom(ctx, n, category)
}

func (c *CachedBank) ListFrom(ctx context.Context, startID int64, n int) ([]domain.QuestionRecord, error) {
	return c.inner.ListFrom(ctx, startID, n)
}

func (c *CachedBank) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
