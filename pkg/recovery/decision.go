// Package recovery turns checkpoint discovery into a resume decision for
// the next job generation.
package recovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/fsview"
)

// ResumePointer tells job submission where to restore from. A nil pointer
// means start fresh with empty state.
type ResumePointer struct {
	// Location is the complete checkpoint directory to restore from.
	Location string `json:"location"`

	// AllowNonRestoredState permits submission even if the checkpoint
	// holds state for operators absent from the new job graph.
	AllowNonRestoredState bool `json:"allow_non_restored_state"`
}

// RetentionPolicy governs whether checkpoints created by a cancelled
// generation stay discoverable by the next one.
type RetentionPolicy string

const (
	// RetainOnCancellation keeps checkpoints after the job that created
	// them is cancelled. Required for the resume protocol to work.
	RetainOnCancellation RetentionPolicy = "retain"

	// DeleteOnCancellation removes a generation's checkpoints when it is
	// cancelled; the next generation starts fresh.
	DeleteOnCancellation RetentionPolicy = "delete"
)

// ParseRetentionPolicy maps a configuration string onto a RetentionPolicy.
func ParseRetentionPolicy(s string) (RetentionPolicy, error) {
	switch RetentionPolicy(s) {
	case RetainOnCancellation:
		return RetainOnCancellation, nil
	case DeleteOnCancellation:
		return DeleteOnCancellation, nil
	default:
		return "", &UnknownPolicyError{Value: s}
	}
}

// UnknownPolicyError reports an unrecognized retention policy string.
type UnknownPolicyError struct {
	Value string
}

func (e *UnknownPolicyError) Error() string {
	return "unknown retention policy " + e.Value
}

// Decider produces resume pointers from a previous generation's checkpoint
// root.
type Decider struct {
	view    fsview.View
	locator *checkpoint.Locator
	base    string
	layout  checkpoint.LayoutMode
	logger  *zap.Logger
}

// NewDecider creates a decider scanning checkpoints under base in the
// given layout. A nil logger disables logging.
func NewDecider(v fsview.View, loc *checkpoint.Locator, base string, layout checkpoint.LayoutMode, logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{view: v, locator: loc, base: base, layout: layout, logger: logger}
}

// Decide resolves the checkpoint root for previousJobID, locates its latest
// complete checkpoint, and returns the pointer to resume from. A nil
// pointer means start fresh.
//
// Absence is a common steady state, never an error: a first-ever generation
// and a predecessor that produced no checkpoint both yield nil. Only an
// invalid layout configuration or a non-transient listing failure at the
// root is returned as an error.
func (d *Decider) Decide(ctx context.Context, previousJobID string) (*ResumePointer, error) {
	root, err := checkpoint.ResolveRoot(d.view, d.base, previousJobID, d.layout)
	if err != nil {
		return nil, err
	}

	handle, err := d.locator.FindLatestComplete(ctx, root)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		d.logger.Info("no complete checkpoint found, starting fresh",
			zap.String("root", root),
			zap.String("previous_job_id", previousJobID))
		return nil, nil
	}

	d.logger.Info("resuming from checkpoint",
		zap.String("location", handle.Location),
		zap.Int64("sequence", handle.Sequence),
		zap.String("previous_job_id", previousJobID))
	return &ResumePointer{Location: handle.Location, AllowNonRestoredState: false}, nil
}

// Root exposes the resolved checkpoint root for a job id, mainly for
// status reporting.
func (d *Decider) Root(jobID string) (string, error) {
	return checkpoint.ResolveRoot(d.view, d.base, jobID, d.layout)
}
