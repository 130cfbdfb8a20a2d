package lifecycle

import (
	"context"

	"github.com/fluxkit/resumer/pkg/jobrun"
)

// NotifyingSource wraps any source with a readiness report to the
// generation's barrier before the first record is produced. Composition
// keeps the readiness concern out of source implementations.
type NotifyingSource struct {
	Inner   jobrun.Source
	Barrier *Barrier
}

var _ jobrun.Source = (*NotifyingSource)(nil)

func (s *NotifyingSource) Run(ctx context.Context, emit jobrun.EmitFunc) error {
	s.Barrier.Arrive()
	return s.Inner.Run(ctx, emit)
}
