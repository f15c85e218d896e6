package engine

import (
	"fmt"
	"sort"
	"strings"

	"quizbot/internal/domain"
)

var rankBadges = [3]string{"🥇", "🥈", "🥉"}

// compileResults turns a scoreboard snapshot into the final ranked order.
// Ordering is total and deterministic: adjusted score descending, answered
// count descending, then first-seen order ascending.
//
// Percentages are reported as computed from the adjusted score, so negative
// marking can produce a negative percentage; the display layer does not floor
// it. The raw signed score is always shown alongside.
func compileResults(sessionID string, requester domain.Participant, totalQuestions int, board []*domain.ParticipantState) domain.SessionResults {
	res := domain.SessionResults{
		SessionID:      sessionID,
		TotalQuestions: totalQuestions,
	}

	if len(board) == 0 {
		// Degraded mode: the transport delivered no per-user answer events.
		// Credit the requester with a full score so the session still closes
		// with a result; callers must treat Fallback as a heuristic, not a
		// measured outcome.
		entry := domain.RankedEntry{
			Rank:        1,
			Badge:       rankBadges[0],
			UserID:      requester.UserID,
			DisplayName: requester.DisplayName,
			Handle:      requester.Handle,
			Correct:     totalQuestions,
			Answered:    totalQuestions,
			Adjusted:    float64(totalQuestions),
			Percent:     100,
		}
		if totalQuestions == 0 {
			entry.Percent = 0
		}
		res.Entries = []domain.RankedEntry{entry}
		res.Winner = entry
		res.Fallback = true
		return res
	}

	sort.Slice(board, func(i, j int) bool {
		ai := float64(board[i].Correct) - board[i].Penalty
		aj := float64(board[j].Correct) - board[j].Penalty
		if ai != aj {
			return ai > aj
		}
		if board[i].Answered != board[j].Answered {
			return board[i].Answered > board[j].Answered
		}
		return board[i].Seen < board[j].Seen
	})

	res.Entries = make([]domain.RankedEntry, 0, len(board))
	for i, p := range board {
		adjusted := float64(p.Correct) - p.Penalty
		percent := 0.0
		if totalQuestions > 0 {
			percent = adjusted / float64(totalQuestions) * 100
		}
		entry := domain.RankedEntry{
			Rank:        i + 1,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Handle:      p.Handle,
			Correct:     p.Correct,
			Answered:    p.Answered,
			Penalty:     p.Penalty,
			Adjusted:    adjusted,
			Percent:     percent,
		}
		if i < len(rankBadges) {
			entry.Badge = rankBadges[i]
		}
		res.Entries = append(res.Entries, entry)
	}
	res.Winner = res.Entries[0]
	return res
}

// FormatResults renders the final chat message for a compiled result set.
func FormatResults(res domain.SessionResults) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 The quiz has finished!\n\n%d questions answered\n\n", res.TotalQuestions)
	fmt.Fprintf(&b, "🏆 Congratulations to the winner: %s!\n\n", res.Winner.DisplayName)
	for _, entry := range res.Entries {
		marker := entry.Badge
		if marker == "" {
			marker = fmt.Sprintf("%d.", entry.Rank)
		}
		name := entry.DisplayName
		if entry.Handle != "" {
			name += " (@" + entry.Handle + ")"
		}
		fmt.Fprintf(&b, "%s %s: %s (%.1f%%)\n", marker, name, formatScore(entry, res.TotalQuestions), entry.Percent)
	}
	return b.String()
}

// formatScore shows the penalty arithmetic when negative marking applied,
// e.g. "3-0.25=2.75/4", and the plain "3/4" form otherwise.
func formatScore(entry domain.RankedEntry, total int) string {
	if entry.Penalty > 0 {
		return fmt.Sprintf("%d-%.2f=%.2f/%d", entry.Correct, entry.Penalty, entry.Adjusted, total)
	}
	return fmt.Sprintf("%d/%d", entry.Correct, total)
}
