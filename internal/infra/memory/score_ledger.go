package memory

import (
	"context"
	"sync"

	"quizbot/internal/domain"
)

// ScoreLedger is an in-memory implementation of engine.ScoreLedger.
type ScoreLedger struct {
	mu    sync.RWMutex
	stats map[string]*domain.UserStats
}

func NewScoreLedger() *ScoreLedger {
	return &ScoreLedger{stats: make(map[string]*domain.UserStats)}
}

func (l *ScoreLedger) RecordSessionCompletion(_ context.Context, userID string, correctDelta, answeredDelta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[userID]
	if !ok {
		s = &domain.UserStats{}
		l.stats[userID] = s
	}
	s.QuizzesTaken++
	s.CorrectAnswers += int64(correctDelta)
	s.TotalAnswers += int64(answeredDelta)
	return nil
}

// Stats returns a user's lifetime aggregate; zero values for unknown users.
func (l *ScoreLedger) Stats(_ context.Context, userID string) (domain.UserStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.stats[userID]; ok {
		return *s, nil
	}
	return domain.UserStats{}, nil
}
