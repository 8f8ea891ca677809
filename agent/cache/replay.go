package cachex

import (
	"sync"
	"time"
)

type pendingWrite struct {
	key   string
	value []byte
	ttl   time.Duration
}

// replayQueue holds writes that could not reach the remote tier. Bounded:
// when full, the oldest write is dropped (a newer write under the same key
// supersedes it anyway, and replay is best-effort by contract).
type replayQueue struct {
	mu     sync.Mutex
	writes []pendingWrite
	limit  int
}

func newReplayQueue(limit int) *replayQueue {
	if limit <= 0 {
		limit = 256
	}
	return &replayQueue{limit: limit}
}

func (q *replayQueue) add(w pendingWrite) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.writes) >= q.limit {
		q.writes = q.writes[1:]
	}
	q.writes = append(q.writes, w)
}

func (q *replayQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.writes) == 0
}

func (q *replayQueue) pop() (pendingWrite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.writes) == 0 {
		return pendingWrite{}, false
	}
	w := q.writes[0]
	q.writes = q.writes[1:]
	return w, true
}

func (q *replayQueue) requeue(w pendingWrite) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.writes = append([]pendingWrite{w}, q.writes...)
}
