package memory

import (
	"context"
	"testing"
	"time"

	"quizbot/internal/domain"
	"quizbot/internal/engine"
)

func TestCachedBankCachesGetByID(t *testing.T) {
	inner := &countingBank{QuestionBank: NewQuestionBank(sampleQuestions())}
	cached := NewCachedBank(inner, time.Minute)
	ctx := context.Background()

	if _, err := cached.GetByID(ctx, 1); err != nil {
		t.Fatalf("get: %v", err)
	}
	if inner.getCalls != 1 {
		t.Fatalf("expected one backing call, got %d", inner.getCalls)
	}

	if _, err := cached.GetByID(ctx, 1); err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if inner.getCalls != 1 {
		t.Fatalf("expected cache hit, backing calls %d", inner.getCalls)
	}
}

func TestCachedBankPassesThroughMisses(t *testing.T) {
	inner := &countingBank{QuestionBank: NewQuestionBank(sampleQuestions())}
	cached := NewCachedBank(inner, time.Minute)

	if _, err := cached.GetByID(context.Background(), 99); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestCachedBankSamplesAreNotCached(t *testing.T) {
	inner := &countingBank{QuestionBank: NewQuestionBank(sampleQuestions())}
	cached := NewCachedBank(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.SampleRandom(ctx, 2, ""); err != nil {
			t.Fatalf("sample: %v", err)
		}
	}
	if inner.sampleCalls != 3 {
		t.Fatalf("expected passthrough samples, got %d calls", inner.sampleCalls)
	}
}

type countingBank struct {
	engine.QuestionBank
	getCalls    int
	sampleCalls int
}

func (b *countingBank) GetByID(ctx context.Context, id int64) (domain.QuestionRecord, error) {
	b.getCalls++
	return b.QuestionBank.GetByID(ctx, id)
}

func (b *countingBank) SampleRandom(ctx context.Context, n int, category string) ([]domain.QuestionRecord, error) {
	b.sampleCalls++
	return b.QuestionBank.SampleRandom(ctx, n, category)
}
