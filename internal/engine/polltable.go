package engine

import (
	"hash/fnv"
	"sync"

	"quizbot/internal/domain"
)

// pollRef points a transport poll id back at the session and question index
// it was dispatched for. Entries are written once at dispatch and removed when
// the question closes; they are never mutated in between.
type pollRef struct {
	sessionID string
	question  int
}

const pollShardCount = 16

// pollTable correlates poll ids across all running sessions. It sits on the
// hot path of every inbound answer event, so it is sharded by poll id rather
// than guarded by one table-wide lock.
type pollTable struct {
	shards [pollShardCount]pollShard
}

type pollShard struct {
	mu   sync.RWMutex
	refs map[string]pollRef
}

func newPollTable() *pollTable {
	t := &pollTable{}
	for i := range t.shards {
		t.shards[i].refs = make(map[string]pollRef)
	}
	return t
}

func (t *pollTable) shard(pollID string) *pollShard {
	h := fnv.New32a()
	h.Write([]byte(pollID))
	return &t.shards[h.Sum32()%pollShardCount]
}

// Register inserts a correlation entry. A duplicate poll id means dispatch
// sequencing is broken and the caller must treat it as fatal.
func (t *pollTable) Register(pollID, sessionID string, question int) error {
	s := t.shard(pollID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.refs[pollID]; exists {
		return domain.ErrDuplicatePollID
	}
	s.refs[pollID] = pollRef{sessionID: sessionID, question: question}
	return nil
}

// Resolve looks up a poll id. A miss is not an error: it means the poll has
// closed or belongs to a stale instance, and the event should be dropped.
func (t *pollTable) Resolve(pollID string) (pollRef, bool) {
	s := t.shard(pollID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[pollID]
	return ref, ok
}

// Unregister removes an entry. Removing an absent id is a no-op.
func (t *pollTable) Unregister(pollID string) {
	s := t.shard(pollID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, pollID)
}
