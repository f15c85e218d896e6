package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"quizbot/internal/domain"
)

// ScoreLedger keeps lifetime per-user statistics in a Redis hash per user:
// HINCRBY quiz:stats:{userID} quizzes_taken|total_answers|correct_answers.
// Hashes are unexpiring: the ledger is the one durable piece of state the
// service owns.
type ScoreLedger struct {
	client *redis.Client
}

func NewScoreLedger(client *redis.Client) *ScoreLedger {
	return &ScoreLedger{client: client}
}

func (l *ScoreLedger) RecordSessionCompletion(ctx context.Context, userID string, correctDelta, answeredDelta int) error {
	key := l.key(userID)
	pipe := l.client.Pipeline()
	pipe.HIncrBy(ctx, key, "quizzes_taken", 1)
	pipe.HIncrBy(ctx, key, "total_answers", int64(answeredDelta))
	pipe.HIncrBy(ctx, key, "correct_answers", int64(correctDelta))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record session completion: %w", err)
	}
	return nil
}

// Stats returns a user's lifetime aggregate; zero values for unknown users.
func (l *ScoreLedger) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	fields, err := l.client.HGetAll(ctx, l.key(userID)).Result()
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("load user stats: %w", err)
	}
	return domain.UserStats{
		QuizzesTaken:   parseField(fields, "quizzes_taken"),
		TotalAnswers:   parseField(fields, "total_answers"),
		CorrectAnswers: parseField(fields, "correct_answers"),
	}, nil
}

func (l *ScoreLedger) key(userID string) string {
	return "quiz:stats:" + userID
}

func parseField(fields map[string]string, name string) int64 {
	raw, ok := fields[name]
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
