package lifecycle

import (
	"context"
	"sync"
)

// Barrier is a startup rendezvous: the controller blocks until every
// parallel source subtask of a generation has arrived. One barrier is built
// per submission and never reused, so readiness of one generation can't
// leak into the next.
type Barrier struct {
	mu        sync.Mutex
	remaining int
	zero      chan struct{}
}

// NewBarrier creates a barrier expecting n arrivals. n <= 0 yields an
// already-open barrier.
func NewBarrier(n int) *Barrier {
	b := &Barrier{remaining: n, zero: make(chan struct{})}
	if n <= 0 {
		close(b.zero)
	}
	return b
}

// Arrive signals one subtask has started. Arrivals beyond the expected
// count are ignored.
func (b *Barrier) Arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return
	}
	b.remaining--
	if b.remaining == 0 {
		close(b.zero)
	}
}

// Wait blocks until all expected arrivals have happened or ctx ends.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.zero:
		return nil
	}
}
