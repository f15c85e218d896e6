package memory

import (
	"context"
	"testing"

	"quizbot/internal/domain"
)

func TestQuestionBankSampleRespectsFilter(t *testing.T) {
	bank := NewQuestionBank(sampleQuestions())
	ctx := context.Background()

	science, err := bank.SampleRandom(ctx, 10, "Science")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(science) != 1 || science[0].Category != "Science" {
		t.Fatalf("expected one science question, got %+v", science)
	}

	none, err := bank.SampleRandom(ctx, 10, "History")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty sample for unknown category, got %d", len(none))
	}

	capped, err := bank.SampleRandom(ctx, 2, "")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("expected sample capped at 2, got %d", len(capped))
	}
}

func TestQuestionBankListFrom(t *testing.T) {
	bank := NewQuestionBank(sampleQuestions())

	questions, err := bank.ListFrom(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("list from: %v", err)
	}
	if len(questions) != 2 || questions[0].ID != 2 || questions[1].ID != 3 {
		t.Fatalf("expected questions 2 and 3, got %+v", questions)
	}
}

func TestQuestionBankUpdateClampsCorrectIndex(t *testing.T) {
	bank := NewQuestionBank(sampleQuestions())
	ctx := context.Background()

	q, err := bank.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Shrink the options below the current correct index.
	q.Options = q.Options[:2]
	if err := bank.Update(ctx, q); err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := bank.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("get updated: %v", err)
	}
	if updated.CorrectOption != 0 {
		t.Fatalf("expected correct index reset to 0, got %d", updated.CorrectOption)
	}
}

func TestQuestionBankCreateDelete(t *testing.T) {
	bank := NewQuestionBank(sampleQuestions())
	ctx := context.Background()

	id, err := bank.Create(ctx, domain.QuestionRecord{
		Text:          "New?",
		Options:       []string{"yes", "no"},
		CorrectOption: 0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := bank.GetByID(ctx, id); err != nil {
		t.Fatalf("get created: %v", err)
	}

	if err := bank.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := bank.GetByID(ctx, id); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	if err := bank.Delete(ctx, id); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected not-found on double delete, got %v", err)
	}
}

func TestQuestionBankCategories(t *testing.T) {
	bank := NewQuestionBank(sampleQuestions())

	categories, err := bank.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	want := []string{"Geography", "Science"}
	if len(categories) != len(want) || categories[0] != want[0] || categories[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, categories)
	}
}

func sampleQuestions() []domain.QuestionRecord {
	return []domain.QuestionRecord{
		{
			ID:            1,
			Text:          "What is the capital of France?",
			Options:       []string{"Berlin", "Madrid", "Paris", "Rome"},
			CorrectOption: 2,
			Category:      "Geography",
		},
		{
			ID:            2,
			Text:          "Which planet is known as the Red Planet?",
			Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
			CorrectOption: 1,
			Category:      "Science",
		},
		{
			ID:            3,
			Text:          "Which river runs through Paris?",
			Options:       []string{"Seine", "Rhine", "Danube"},
			CorrectOption: 0,
			Category:      "Geography",
		},
	}
}
