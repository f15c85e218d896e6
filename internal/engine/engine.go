package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quizbot/internal/domain"
)

// Transport sends quiz output to a chat surface. SendQuestion dispatches one
// question as a poll open for openFor (unbounded when zero) and returns the
// transport-assigned poll id.
type Transport interface {
	SendQuestion(ctx context.Context, channelID string, q domain.QuestionRecord, index, total int, openFor time.Duration) (string, error)
	SendMessage(ctx context.Context, channelID, text string) error
}

// QuestionBank provides question records. Read-only during a running session.
type QuestionBank interface {
	GetByID(ctx context.Context, id int64) (domain.QuestionRecord, error)
	// SampleRandom returns up to n records, optionally filtered by category.
	// Fewer than n (including zero) is not an error.
	SampleRandom(ctx context.Context, n int, category string) ([]domain.QuestionRecord, error)
	// ListFrom returns up to n records with id >= startID, ordered by id.
	ListFrom(ctx context.Context, startID int64, n int) ([]domain.QuestionRecord, error)
}

// ScoreLedger persists lifetime per-participant statistics. The engine calls
// RecordSessionCompletion exactly once per participant per finished session.
type ScoreLedger interface {
	RecordSessionCompletion(ctx context.Context, userID string, correctDelta, answeredDelta int) error
}

// StartParams configures one quiz session. Question selection is resolved at
// start time, in priority order: explicit QuestionIDs, then StartID (that id
// and the following ones), then a random sample of NumQuestions.
type StartParams struct {
	ChannelID         string
	FallbackChannelID string
	Requester         domain.Participant
	QuestionIDs       []int64
	StartID           int64
	NumQuestions      int
	Category          string
	// OpenFor is how long each question stays open. Zero means unlimited: the
	// question closes only on ForceCloseCurrentQuestion or cancellation.
	OpenFor time.Duration
	// Penalty is subtracted from the adjusted score per incorrect answer.
	Penalty float64
}

// Engine owns every running quiz session, the poll correlation table, and the
// external collaborators. Sessions are ephemeral: state is discarded once
// results have been compiled and delivered.
type Engine struct {
	transport Transport
	bank      QuestionBank
	ledger    ScoreLedger
	polls     *pollTable
	log       *logrus.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New builds an engine around the given collaborators.
func New(transport Transport, bank QuestionBank, ledger ScoreLedger, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		transport: transport,
		bank:      bank,
		ledger:    ledger,
		polls:     newPollTable(),
		log:       log,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// StartSession selects questions, registers a new session, and dispatches the
// first question. The returned id addresses the session until it finishes.
func (e *Engine) StartSession(ctx context.Context, p StartParams) (string, error) {
	questions, err := e.selectQuestions(ctx, p)
	if err != nil {
		return "", err
	}
	if len(questions) == 0 {
		return "", domain.ErrNoQuestions
	}

	s := newSession(newSessionID(), p, questions, e.now)

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"session":   s.id,
		"channel":   s.channelID,
		"questions": len(questions),
		"open_for":  p.OpenFor.String(),
	}).Info("quiz session started")

	if err := e.openCurrent(ctx, s); err != nil {
		return "", err
	}
	return s.id, nil
}

// CancelSession stops a session at any point before Finished. Whatever
// answers were collected are still compiled and delivered best-effort.
func (e *Engine) CancelSession(ctx context.Context, sessionID string) error {
	s, ok := e.get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return e.cancel(ctx, s)
}

// ForceCloseCurrentQuestion closes the open question immediately, advancing
// the session as if its timer had fired. A session with no open question is
// left untouched.
func (e *Engine) ForceCloseCurrentQuestion(sessionID string) error {
	s, ok := e.get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.mu.Lock()
	pollID := s.currentPollID
	s.mu.Unlock()
	if pollID == "" {
		return nil
	}
	e.advance(s, pollID)
	return nil
}

// RecordAnswer applies one inbound answer event. Events for unknown poll ids
// are dropped silently; duplicates per (poll, participant) are ignored.
func (e *Engine) RecordAnswer(ev domain.AnswerEvent) {
	ref, ok := e.polls.Resolve(ev.PollID)
	if !ok {
		// Expected for late, foreign, or already-closed polls.
		e.log.WithField("poll", ev.PollID).Debug("dropping answer for unknown poll")
		return
	}
	s, ok := e.get(ref.sessionID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateQuestionOpen || s.currentPollID != ev.PollID {
		return
	}
	if _, dup := s.answered[ev.UserID]; dup {
		return
	}
	s.answered[ev.UserID] = struct{}{}

	p := s.scoreboard[ev.UserID]
	if p == nil {
		s.seen++
		p = &domain.ParticipantState{
			Participant: domain.Participant{
				UserID:      ev.UserID,
				DisplayName: ev.DisplayName,
				Handle:      ev.Handle,
			},
			Seen: s.seen,
		}
		s.scoreboard[ev.UserID] = p
	}

	q := s.questions[ref.question]
	p.Answered++
	switch {
	case ev.Option == q.CorrectOption:
		p.Correct++
	case ev.Option >= 0 && ev.Option < len(q.Options):
		if s.penalty > 0 {
			p.Penalty += s.penalty
		}
	default:
		// Out-of-range or retracted choice counts as answered, never as
		// correct, and draws no penalty.
	}

	s.broadcastLocked()
}

// Subscribe streams leaderboard snapshots for a running session. The caller
// must invoke the returned cancel function to avoid leaks.
func (e *Engine) Subscribe(sessionID string) (<-chan domain.Leaderboard, func(), error) {
	s, ok := e.get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel, ok := s.subscribe()
	if !ok {
		return nil, nil, domain.ErrSessionClosed
	}
	return ch, cancel, nil
}

// Results compiles a best-effort snapshot of the current standings without
// closing the session. The fallback entry is never synthesized here; an empty
// board yields an empty result.
func (e *Engine) Results(sessionID string) (domain.SessionResults, error) {
	s, ok := e.get(sessionID)
	if !ok {
		return domain.SessionResults{}, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	board := s.boardLocked()
	s.mu.Unlock()
	if len(board) == 0 {
		return domain.SessionResults{SessionID: s.id, TotalQuestions: len(s.questions)}, nil
	}
	return compileResults(s.id, s.requester, len(s.questions), board), nil
}

// SessionState reports the lifecycle state of a running session.
func (e *Engine) SessionState(sessionID string) (domain.SessionState, error) {
	s, ok := e.get(sessionID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	return s.State(), nil
}

func (e *Engine) selectQuestions(ctx context.Context, p StartParams) ([]domain.QuestionRecord, error) {
	switch {
	case len(p.QuestionIDs) > 0:
		questions := make([]domain.QuestionRecord, 0, len(p.QuestionIDs))
		for _, id := range p.QuestionIDs {
			q, err := e.bank.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("question %d: %w", id, err)
			}
			questions = append(questions, q)
		}
		return questions, nil
	case p.StartID > 0:
		return e.bank.ListFrom(ctx, p.StartID, p.NumQuestions)
	default:
		return e.bank.SampleRandom(ctx, p.NumQuestions, p.Category)
	}
}

// openCurrent dispatches the question at the cursor and opens it: the poll is
// registered, state moves to QuestionOpen, and the timer is armed. A dispatch
// or registration failure cancels the session.
func (e *Engine) openCurrent(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.state == domain.StateFinished || s.state == domain.StateCancelled {
		s.mu.Unlock()
		return nil
	}
	q := s.questions[s.cursor]
	index := s.cursor
	total := len(s.questions)
	s.mu.Unlock()

	pollID, err := e.transport.SendQuestion(ctx, s.channelID, q, index, total, s.openFor)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"session":  s.id,
			"question": index,
		}).WithError(err).Error("question dispatch failed, cancelling session")
		_ = e.cancel(ctx, s)
		return fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}

	if err := e.polls.Register(pollID, s.id, index); err != nil {
		e.log.WithFields(logrus.Fields{
			"session": s.id,
			"poll":    pollID,
		}).Error("duplicate poll id, cancelling session")
		_ = e.cancel(ctx, s)
		return err
	}

	s.mu.Lock()
	if s.state == domain.StateFinished || s.state == domain.StateCancelled {
		// Lost a race with cancellation; release the fresh entry.
		s.mu.Unlock()
		e.polls.Unregister(pollID)
		return nil
	}
	s.state = domain.StateQuestionOpen
	s.currentPollID = pollID
	s.dispatched = true
	s.answered = make(map[string]struct{})
	if s.openFor > 0 {
		pid := pollID
		s.timer = time.AfterFunc(s.openFor, func() { e.advance(s, pid) })
	}
	s.broadcastLocked()
	s.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"session":  s.id,
		"poll":     pollID,
		"question": index + 1,
		"of":       total,
	}).Info("question dispatched")
	return nil
}

// advance closes the question identified by pollID and moves the session
// forward. The poll id acts as the staleness token: a timer firing after its
// question already closed, or a second concurrent close, finds the id gone
// and returns without touching the session.
func (e *Engine) advance(s *Session, pollID string) {
	s.mu.Lock()
	if s.state != domain.StateQuestionOpen || s.currentPollID != pollID {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.closeQuestionLocked(e.polls)
	s.state = domain.StateAdvancing
	s.cursor++
	done := s.cursor >= len(s.questions)
	s.mu.Unlock()

	if done {
		if err := e.finish(context.Background(), s, false); err != nil {
			e.log.WithField("session", s.id).WithError(err).Error("finishing session")
		}
		return
	}
	if err := e.openCurrent(context.Background(), s); err != nil {
		e.log.WithField("session", s.id).WithError(err).Error("advancing session")
	}
}

func (e *Engine) cancel(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.state == domain.StateFinished || s.state == domain.StateCancelled {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	s.closeQuestionLocked(e.polls)
	s.state = domain.StateCancelled
	s.mu.Unlock()

	e.log.WithField("session", s.id).Warn("session cancelled")
	return e.finish(ctx, s, true)
}

// finish compiles results, updates the ledger, delivers the final message,
// and discards the session. Delivery is retried once on the fallback channel;
// losing the final score is the one failure the engine will not absorb
// silently.
func (e *Engine) finish(ctx context.Context, s *Session, cancelled bool) error {
	s.mu.Lock()
	if !cancelled {
		s.state = domain.StateFinished
	}
	res := compileResults(s.id, s.requester, len(s.questions), s.boardLocked())
	dispatched := s.dispatched
	s.broadcastLocked()
	s.closeSubscribersLocked()
	s.mu.Unlock()

	e.mu.Lock()
	delete(e.sessions, s.id)
	e.mu.Unlock()

	switch {
	case !dispatched:
		e.log.WithField("session", s.id).Warn("session aborted before any dispatch; suppressing results")
	case res.Fallback:
		e.log.WithFields(logrus.Fields{
			"session":   s.id,
			"requester": s.requester.UserID,
		}).Warn("no answer events recorded; crediting requester with fallback result")
	default:
		for _, entry := range res.Entries {
			if err := e.ledger.RecordSessionCompletion(ctx, entry.UserID, entry.Correct, entry.Answered); err != nil {
				e.log.WithFields(logrus.Fields{
					"session": s.id,
					"user":    entry.UserID,
				}).WithError(err).Warn("recording session completion")
			}
		}
	}

	text := FormatResults(res)
	if !dispatched {
		text = "❌ The quiz was aborted before any question could be sent."
	}
	if err := e.transport.SendMessage(ctx, s.channelID, text); err != nil {
		e.log.WithFields(logrus.Fields{
			"session": s.id,
			"channel": s.channelID,
		}).WithError(err).Warn("primary result delivery failed")
		if s.fallbackChannelID != "" && s.fallbackChannelID != s.channelID {
			if err2 := e.transport.SendMessage(ctx, s.fallbackChannelID, text); err2 == nil {
				return nil
			}
		}
		e.log.WithField("session", s.id).Error("result delivery failed on all channels")
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return nil
}

func (e *Engine) get(sessionID string) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[sessionID]
	return s, ok
}

func newSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("s-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
