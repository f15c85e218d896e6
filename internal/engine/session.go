package engine

import (
	"sort"
	"sync"
	"time"

	"quizbot/internal/domain"
)

// Session is one running quiz: an immutable question sequence, a cursor, the
// scoreboard, and the poll/timer state for the currently open question. All
// mutable fields are guarded by mu; lifecycle transitions never overlap for
// the same session, while answer events interleave freely with them.
type Session struct {
	id        string
	channelID string
	// fallbackChannelID is the alternate surface for final delivery; results
	// are retried there once if the primary post fails.
	fallbackChannelID string
	requester         domain.Participant
	questions         []domain.QuestionRecord
	openFor           time.Duration
	penalty           float64
	now               func() time.Time

	mu            sync.Mutex
	state         domain.SessionState
	cursor        int
	currentPollID string
	scoreboard    map[string]*domain.ParticipantState
	// answered holds the user ids that already answered the open question;
	// cleared atomically with the transition that closes the question.
	answered map[string]struct{}
	seen     int
	timer    *time.Timer
	subs     map[chan domain.Leaderboard]struct{}
	// dispatched records whether any question ever reached the channel; a
	// session aborted before its first dispatch must not post results.
	dispatched bool
}

func newSession(id string, p StartParams, questions []domain.QuestionRecord, now func() time.Time) *Session {
	return &Session{
		id:                id,
		channelID:         p.ChannelID,
		fallbackChannelID: p.FallbackChannelID,
		requester:         p.Requester,
		questions:         questions,
		openFor:           p.OpenFor,
		penalty:           p.Penalty,
		now:               now,
		state:             domain.StateCreated,
		scoreboard:        make(map[string]*domain.ParticipantState),
		subs:              make(map[chan domain.Leaderboard]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// closeQuestionLocked tears down the open question: the correlation entry is
// removed and the answered set cleared in the same critical section, so a late
// event can never be attributed to the next question.
func (s *Session) closeQuestionLocked(polls *pollTable) {
	if s.currentPollID != "" {
		polls.Unregister(s.currentPollID)
		s.currentPollID = ""
	}
	s.answered = nil
}

func (s *Session) subscribe() (<-chan domain.Leaderboard, func(), bool) {
	ch := make(chan domain.Leaderboard, 8)

	s.mu.Lock()
	if s.subs == nil {
		s.mu.Unlock()
		return nil, nil, false
	}
	s.subs[ch] = struct{}{}
	// The buffer is empty here, so this send cannot block. It must stay under
	// the lock: closeSubscribersLocked may close the channel the moment the
	// lock is released.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, true
}

func (s *Session) broadcastLocked() {
	lb := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- lb:
		default:
			// Drop the oldest pending snapshot so a slow observer never
			// blocks the answer path.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// closeSubscribersLocked ends every observer stream after the final snapshot.
func (s *Session) closeSubscribersLocked() {
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func (s *Session) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.scoreboard))
	order := make(map[string]int, len(s.scoreboard))
	for _, p := range s.scoreboard {
		order[p.UserID] = p.Seen
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Correct:     p.Correct,
			Answered:    p.Answered,
			Adjusted:    float64(p.Correct) - p.Penalty,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Adjusted != entries[j].Adjusted {
			return entries[i].Adjusted > entries[j].Adjusted
		}
		if entries[i].Answered != entries[j].Answered {
			return entries[i].Answered > entries[j].Answered
		}
		return order[entries[i].UserID] < order[entries[j].UserID]
	})

	question := 0
	if s.state == domain.StateQuestionOpen {
		question = s.cursor + 1
	}
	return domain.Leaderboard{
		SessionID:      s.id,
		State:          s.state.String(),
		Question:       question,
		TotalQuestions: len(s.questions),
		Entries:        entries,
		UpdatedAt:      s.now(),
	}
}

// boardLocked returns the scoreboard values for the results compiler.
func (s *Session) boardLocked() []*domain.ParticipantState {
	board := make([]*domain.ParticipantState, 0, len(s.scoreboard))
	for _, p := range s.scoreboard {
		clone := *p
		board = append(board, &clone)
	}
	return board
}
