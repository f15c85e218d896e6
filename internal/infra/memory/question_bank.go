package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quizbot/internal/domain"
)

// QuestionBank is an in-memory bank backed by a map (useful for tests/demos).
type QuestionBank struct {
	mu        sync.RWMutex
	questions map[int64]domain.QuestionRecord
	nextID    int64
	rnd       *rand.Rand
}

func NewQuestionBank(questions []domain.QuestionRecord) *QuestionBank {
	b := &QuestionBank{
		questions: make(map[int64]domain.QuestionRecord, len(questions)),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, q := range questions {
		b.questions[q.ID] = q
		if q.ID > b.nextID {
			b.nextID = q.ID
		}
	}
	return b
}

func (b *QuestionBank) GetByID(_ context.Context, id int64) (domain.QuestionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questions[id]
	if !ok {
		return domain.QuestionRecord{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (b *QuestionBank) SampleRandom(_ context.Context, n int, category string) ([]domain.QuestionRecord, error) {
	b.mu.Lock()
	pool := make([]domain.QuestionRecord, 0, len(b.questions))
	for _, q := range b.questions {
		if category == "" || q.Category == category {
			pool = append(pool, q)
		}
	}
	// rnd is guarded by mu as well, so the shuffle stays inside the lock.
	b.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	b.mu.Unlock()
	if n < len(pool) {
		pool = pool[:n]
	}
	return pool, nil
}

func (b *QuestionBank) ListFrom(_ context.Context, startID int64, n int) ([]domain.QuestionRecord, error) {
	b.mu.RLock()
	matched := make([]domain.QuestionRecord, 0, len(b.questions))
	for _, q := range b.questions {
		if q.ID >= startID {
			matched = append(matched, q)
		}
	}
	b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if n > 0 && n < len(matched) {
		matched = matched[:n]
	}
	return matched, nil
}

// Create stores a new record and assigns the next free id.
func (b *QuestionBank) Create(_ context.Context, q domain.QuestionRecord) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	q.ID = b.nextID
	b.questions[q.ID] = q
	return q.ID, nil
}

// Update replaces a record. If the new option list no longer covers the
// correct index, the index is reset to 0 to keep the record well-formed.
func (b *QuestionBank) Update(_ context.Context, q domain.QuestionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		q.CorrectOption = 0
	}
	b.questions[q.ID] = q
	return nil
}

func (b *QuestionBank) Delete(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(b.questions, id)
	return nil
}

// Categories returns the distinct categories present in the bank.
func (b *QuestionBank) Categories(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, q := range b.questions {
		if q.Category == "" {
			continue
		}
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		categories = append(categories, q.Category)
	}
	sort.Strings(categories)
	return categories, nil
}
