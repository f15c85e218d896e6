package domain

import "time"

// SessionState tracks where a quiz session is in its lifecycle.
type SessionState int

const (
	StateCreated SessionState = iota
	StateQuestionOpen
	StateAdvancing
	StateFinished
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateQuestionOpen:
		return "question_open"
	case StateAdvancing:
		return "advancing"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// QuestionRecord is a multiple-choice question. Once a session snapshots a
// record it is never mutated; CorrectOption is always a valid index into
// Options (the bank resets it to 0 if an edit shrinks the option list).
type QuestionRecord struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Category      string   `json:"category"`
}

// Participant identifies one quiz player as reported by the transport.
type Participant struct {
	UserID      string
	DisplayName string
	Handle      string
}

// ParticipantState accumulates one participant's score within a session.
// Mutated only by the answer aggregator under the session lock.
// Invariant: Correct <= Answered.
type ParticipantState struct {
	Participant
	Correct  int
	Answered int
	Penalty  float64
	// Seen is the order in which the participant first answered, used as the
	// final ranking tie-break.
	Seen int
}

// AnswerEvent is an asynchronous answer notification from the transport.
// Option is -1 when the participant retracted their vote.
type AnswerEvent struct {
	PollID      string
	UserID      string
	DisplayName string
	Handle      string
	Option      int
}

// RankedEntry is one line of the final results.
type RankedEntry struct {
	Rank        int     `json:"rank"`
	Badge       string  `json:"badge,omitempty"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Handle      string  `json:"handle,omitempty"`
	Correct     int     `json:"correct"`
	Answered    int     `json:"answered"`
	Penalty     float64 `json:"penalty"`
	Adjusted    float64 `json:"adjusted"`
	Percent     float64 `json:"percent"`
}

// SessionResults is the compiled outcome of a finished (or cancelled) session.
// Fallback marks a synthetic single-entry result produced when no answer
// events were observed; it credits the requester and is not a measured score.
type SessionResults struct {
	SessionID      string        `json:"sessionId"`
	TotalQuestions int           `json:"totalQuestions"`
	Entries        []RankedEntry `json:"entries"`
	Winner         RankedEntry   `json:"winner"`
	Fallback       bool          `json:"fallback"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Correct     int     `json:"correct"`
	Answered    int     `json:"answered"`
	Adjusted    float64 `json:"adjusted"`
}

// Leaderboard captures the live scoreboard for a running session.
type Leaderboard struct {
	SessionID      string             `json:"sessionId"`
	State          string             `json:"state"`
	Question       int                `json:"question"` // 1-based, 0 when none open
	TotalQuestions int                `json:"totalQuestions"`
	Entries        []LeaderboardEntry `json:"entries"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// UserStats is a participant's lifetime aggregate kept by the score ledger.
type UserStats struct {
	QuizzesTaken   int64 `json:"quizzesTaken"`
	TotalAnswers   int64 `json:"totalAnswers"`
	CorrectAnswers int64 `json:"correctAnswers"`
}
