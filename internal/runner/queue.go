package runner

import (
	"context"
	"sync"
	"time"

	"leadscout/internal/domain"
)

// AdmissionQueue gates job submissions behind a fixed pool of worker slots.
// One OS process per job is expensive; a burst of "research all leads"
// requests must queue instead of forking without bound.
//
// Waiters block on the token channel, which the runtime serves in FIFO
// order. A waiter whose deadline passes fails with ErrQueueTimeout and is
// never granted a slot later.
type AdmissionQueue struct {
	tokens chan struct{}
}

func NewAdmissionQueue(size int) *AdmissionQueue {
	if size <= 0 {
		size = 1
	}
	q := &AdmissionQueue{tokens: make(chan struct{}, size)}
	for i := 0; i < size; i++ {
		q.tokens <- struct{}{}
	}
	return q
}

// Acquire blocks until a slot frees, the wait deadline passes, or ctx is
// cancelled. On success it returns a release func that is safe to call more
// than once; the slot is returned exactly once.
func (q *AdmissionQueue) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-q.tokens:
	case <-timer.C:
		return nil, domain.ErrQueueTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { q.tokens <- struct{}{} })
	}
	return release, nil
}

// Free reports currently available slots, for metrics.
func (q *AdmissionQueue) Free() int { return len(q.tokens) }
