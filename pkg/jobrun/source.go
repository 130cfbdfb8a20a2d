package jobrun

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// EmitFunc is called by a source once per produced record.
type EmitFunc func()

// Source produces records until its context is cancelled. One source runs
// per parallel subtask.
type Source interface {
	Run(ctx context.Context, emit EmitFunc) error
}

// SourceFactory builds the source for a given subtask index.
type SourceFactory func(subtask int) Source

// InfiniteSource emits records forever, optionally paced.
type InfiniteSource struct {
	limiter *rate.Limiter
}

var _ Source = (*InfiniteSource)(nil)

// NewInfiniteSource creates a source emitting at most recordsPerSecond
// records per second. Zero or negative means unpaced, throttled only by a
// short fixed sleep to keep a subtask from spinning a core.
func NewInfiniteSource(recordsPerSecond float64) *InfiniteSource {
	s := &InfiniteSource{}
	if recordsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(recordsPerSecond), 1)
	}
	return s
}

func (s *InfiniteSource) Run(ctx context.Context, emit EmitFunc) error {
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		} else {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Millisecond):
			}
		}
		emit()
	}
}
