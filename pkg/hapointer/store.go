// Package hapointer persists the authoritative checkpoint pointer per job
// across coordinator restarts.
//
// In a high-availability deployment the store is backed by an external
// consistent service (Redis here); a single leader-elected coordinator
// writes at a time, and the only guarantee the protocol relies on is that
// the last successful Put is visible to the next Get, possibly issued by a
// new leader. In standalone deployments the store degenerates to process
// memory.
package hapointer

import (
	"context"
	"sync"
	"time"
)

// Pointer records which checkpoint is authoritative for a job.
type Pointer struct {
	// JobID is the job generation that produced the checkpoint.
	JobID string `json:"job_id"`

	// Location is the complete checkpoint's directory.
	Location string `json:"location"`

	// Sequence is the checkpoint's ordering key.
	Sequence int64 `json:"sequence"`

	// RecordedAt is when the coordinator observed the checkpoint.
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is the pointer store consumed by the lifecycle controller.
type Store interface {
	// Put durably records the pointer for jobID, replacing any prior one.
	Put(ctx context.Context, jobID string, ptr Pointer) error

	// Get returns the pointer recorded for jobID, or nil if none exists.
	// A miss is not an error.
	Get(ctx context.Context, jobID string) (*Pointer, error)

	// Close releases any resources held by the store.
	Close() error
}

// Standalone is the in-process pointer store used when no HA coordination
// service is configured. It lives and dies with the coordinator.
type Standalone struct {
	mu       sync.RWMutex
	pointers map[string]Pointer
}

var _ Store = (*Standalone)(nil)

// NewStandalone creates an empty in-process store.
func NewStandalone() *Standalone {
	return &Standalone{pointers: make(map[string]Pointer)}
}

func (s *Standalone) Put(ctx context.Context, jobID string, ptr Pointer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[jobID] = ptr
	return nil
}

func (s *Standalone) Get(ctx context.Context, jobID string) (*Pointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ptr, ok := s.pointers[jobID]
	if !ok {
		return nil, nil
	}
	return &ptr, nil
}

func (s *Standalone) Close() error { return nil }
