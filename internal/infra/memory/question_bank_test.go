package memory

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"trivia-battle-service/internal/domain"
)

func TestQuestionBankCachesPerLevel(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(sampleQuestions()),
	}
	bank := NewQuestionBankWithRand(loader, time.Minute, rand.New(rand.NewSource(1)))

	if _, err := bank.PickQuestion(context.Background(), []domain.Level{domain.LevelEasy}, nil); err != nil {
		t.Fatalf("pick: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := bank.PickQuestion(context.Background(), []domain.Level{domain.LevelEasy}, nil); err != nil {
		t.Fatalf("pick 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPickQuestionHonorsExclusions(t *testing.T) {
	bank := NewQuestionBankWithRand(
		NewStaticQuestionLoader(sampleQuestions()), time.Minute, rand.New(rand.NewSource(1)))

	used := map[int]struct{}{1: {}}
	q, err := bank.PickQuestion(context.Background(), []domain.Level{domain.LevelEasy}, used)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if q.ID != 2 {
		t.Fatalf("expected the only unused easy question, got %d", q.ID)
	}

	used[2] = struct{}{}
	_, err = bank.PickQuestion(context.Background(), []domain.Level{domain.LevelEasy}, used)
	if !errors.Is(err, domain.ErrNoQuestionAvailable) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
}

func TestPickQuestionSpansLevels(t *testing.T) {
	bank := NewQuestionBankWithRand(
		NewStaticQuestionLoader(sampleQuestions()), time.Minute, rand.New(rand.NewSource(1)))

	used := map[int]struct{}{1: {}, 2: {}}
	q, err := bank.PickQuestion(context.Background(), []domain.Level{domain.LevelEasy, domain.LevelHard}, used)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if q.Level != domain.LevelHard {
		t.Fatalf("expected hard fallback, got %+v", q)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, level domain.Level) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, level)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1, Level: domain.LevelEasy},
		{ID: 2, Text: "Capital of France?", Options: []string{"Lyon", "Nice", "Paris", "Lille"}, CorrectIndex: 2, Level: domain.LevelEasy},
		{ID: 3, Text: "sqrt(144)?", Options: []string{"10", "11", "12", "13"}, CorrectIndex: 2, Level: domain.LevelHard},
	}
}
