// Package round implements the round lifecycle / settlement orchestrator:
// the component that decides when a round may start, submits the stake
// transaction, tracks trades during play, settles at round end, reconciles
// the resulting balance, and recovers from every external failure mode
// without losing, duplicating, or corrupting a round's identity.
package round

import "sync"

// SeedQueue buffers at most one not-yet-started round seed while the
// orchestrator is not ready to start.  Last seed wins: a stale seed is
// worthless once a newer one exists, so Enqueue overwrites.
type SeedQueue struct {
	mu   sync.Mutex
	seed int64
	held bool
}

// NewSeedQueue returns an empty queue.
func NewSeedQueue() *SeedQueue {
	return &SeedQueue{}
}

// Enqueue stores seed, replacing any previously queued one.
func (q *SeedQueue) Enqueue(seed int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seed = seed
	q.held = true
}

// Drain returns and clears the held seed.  The second return value is false
// when the queue was empty.
func (q *SeedQueue) Drain() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.held {
		return 0, false
	}
	q.held = false
	return q.seed, true
}

// Clear discards any held seed.  Called whenever a round reaches active: the
// buffered seed belonged to a round that will now never start.
func (q *SeedQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.held = false
}

// Len returns 0 or 1.
func (q *SeedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.held {
		return 1
	}
	return 0
}
