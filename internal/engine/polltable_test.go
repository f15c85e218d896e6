package engine

import (
	"fmt"
	"sync"
	"testing"

	"quizbot/internal/domain"
)

func TestPollTableRegisterResolveUnregister(t *testing.T) {
	table := newPollTable()

	if err := table.Register("p1", "s1", 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	ref, ok := table.Resolve("p1")
	if !ok || ref.sessionID != "s1" || ref.question != 3 {
		t.Fatalf("unexpected resolution: %+v ok=%v", ref, ok)
	}

	table.Unregister("p1")
	if _, ok := table.Resolve("p1"); ok {
		t.Fatalf("expected p1 to be gone")
	}
	// Unregistering twice is a no-op.
	table.Unregister("p1")
}

func TestPollTableRejectsDuplicates(t *testing.T) {
	table := newPollTable()
	if err := table.Register("p1", "s1", 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := table.Register("p1", "s2", 1); err != domain.ErrDuplicatePollID {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	// The original entry must be untouched.
	ref, _ := table.Resolve("p1")
	if ref.sessionID != "s1" || ref.question != 0 {
		t.Fatalf("duplicate registration clobbered the entry: %+v", ref)
	}
}

func TestPollTableConcurrentAccess(t *testing.T) {
	table := newPollTable()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			if err := table.Register(id, "s", i); err != nil {
				t.Errorf("register %s: %v", id, err)
				return
			}
			ref, ok := table.Resolve(id)
			if !ok || ref.question != i {
				t.Errorf("resolve %s: %+v ok=%v", id, ref, ok)
			}
			table.Unregister(id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if _, ok := table.Resolve(fmt.Sprintf("p%d", i)); ok {
			t.Fatalf("entry p%d survived unregister", i)
		}
	}
}
