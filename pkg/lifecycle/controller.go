// Package lifecycle drives job generations through the resume protocol:
// decide where to resume from, submit, wait for the sources to come up,
// wait for a fresh checkpoint to be externalized, record it, cancel, and
// wait for termination. The next generation is then chained off the one
// that just finished.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/fsview"
	"github.com/fluxkit/resumer/pkg/hapointer"
	"github.com/fluxkit/resumer/pkg/jobrun"
	"github.com/fluxkit/resumer/pkg/recovery"
)

// DefaultPollInterval is the fixed sleep between discovery and status
// polls. Short and constant: the polled operations are cheap and
// idempotent, so no backoff is needed.
const DefaultPollInterval = 50 * time.Millisecond

// pointerPutAttempts bounds retries of the HA pointer write; a pointer
// store that stays down longer than this fails the generation.
const pointerPutAttempts = 5

// JobClient is the job submission surface the controller consumes.
// jobrun.Cluster implements it; a real deployment would adapt its cluster
// client to the same three calls.
type JobClient interface {
	Submit(ctx context.Context, spec jobrun.Spec, resume *recovery.ResumePointer) (string, error)
	Cancel(ctx context.Context, jobID string) error
	Status(ctx context.Context, jobID string) (jobrun.Status, error)
}

// ProtocolViolationError reports a job reaching a terminal state the
// protocol does not expect, such as Failed while waiting for Canceled.
type ProtocolViolationError struct {
	JobID  string
	Status jobrun.Status
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("job %s reached unexpected terminal state %q", e.JobID, e.Status)
}

// Generation is the outcome of one submit→checkpoint→cancel cycle.
type Generation struct {
	// JobID identifies the generation; it seeds the next generation's
	// recovery decision.
	JobID string `json:"job_id"`

	// Resume is the pointer the generation was submitted with; nil means
	// it started fresh.
	Resume *recovery.ResumePointer `json:"resume,omitempty"`

	// Checkpoint is the first fresh complete checkpoint the generation
	// externalized.
	Checkpoint *checkpoint.Handle `json:"checkpoint"`
}

// Config tunes the controller.
type Config struct {
	// Base is the base checkpoint directory.
	Base string

	// Layout mirrors the deployment's directory layout mode.
	Layout checkpoint.LayoutMode

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration
}

// Controller owns the sequence of job generations. It is the only writer
// of "which generation is current"; the pointer store is the durable
// backing of that fact in HA deployments.
type Controller struct {
	client   JobClient
	view     fsview.View
	locator  *checkpoint.Locator
	decider  *recovery.Decider
	pointers hapointer.Store
	cfg      Config
	logger   *zap.Logger
}

// NewController wires the controller. pointers may be a Standalone store;
// a nil logger disables logging.
func NewController(client JobClient, view fsview.View, locator *checkpoint.Locator, decider *recovery.Decider, pointers hapointer.Store, cfg Config, logger *zap.Logger) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client:   client,
		view:     view,
		locator:  locator,
		decider:  decider,
		pointers: pointers,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunGeneration executes one full generation seeded from previousJobID.
//
// The waits inside carry no deadline of their own; the caller bounds the
// whole sequence through ctx. Transient discovery errors are retried
// indefinitely at the poll interval; a Failed job aborts immediately as a
// protocol violation.
func (c *Controller) RunGeneration(ctx context.Context, spec jobrun.Spec, previousJobID string) (*Generation, error) {
	resume, err := c.decider.Decide(ctx, previousJobID)
	if err != nil {
		return nil, fmt.Errorf("recovery decision for %s: %w", previousJobID, err)
	}

	parallelism := spec.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	barrier := NewBarrier(parallelism)

	inner := spec.NewSource
	if inner == nil {
		rate := spec.EmitRate
		inner = func(int) jobrun.Source { return jobrun.NewInfiniteSource(rate) }
	}
	spec.NewSource = func(subtask int) jobrun.Source {
		return &NotifyingSource{Inner: inner(subtask), Barrier: barrier}
	}

	jobID, err := c.client.Submit(ctx, spec, resume)
	if err != nil {
		return nil, fmt.Errorf("submit generation: %w", err)
	}
	c.logger.Info("generation submitted",
		zap.String("job_id", jobID),
		zap.String("previous_job_id", previousJobID),
		zap.Bool("resumed", resume != nil))

	// The checkpoint-interval clock must not race subtask startup lag:
	// without the rendezvous, "no checkpoint appeared yet" would be
	// ambiguous between a slow checkpoint and a job that never started.
	if err := barrier.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for %d subtasks to start: %w", parallelism, err)
	}

	root, err := checkpoint.ResolveRoot(c.view, c.cfg.Base, jobID, c.cfg.Layout)
	if err != nil {
		return nil, err
	}

	handle, err := c.waitForCheckpoint(ctx, root, baselineSequence(resume))
	if err != nil {
		return nil, err
	}
	c.logger.Info("checkpoint observed",
		zap.String("job_id", jobID),
		zap.String("location", handle.Location),
		zap.Int64("sequence", handle.Sequence))

	ptr := hapointer.Pointer{
		JobID:      jobID,
		Location:   handle.Location,
		Sequence:   handle.Sequence,
		RecordedAt: time.Now().UTC(),
	}
	err = retry.Do(
		func() error { return c.pointers.Put(ctx, jobID, ptr) },
		retry.Attempts(pointerPutAttempts),
		retry.Delay(c.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("record checkpoint pointer: %w", err)
	}

	if err := c.client.Cancel(ctx, jobID); err != nil {
		return nil, fmt.Errorf("cancel %s: %w", jobID, err)
	}
	if err := c.waitForCanceled(ctx, jobID); err != nil {
		return nil, err
	}
	c.logger.Info("generation canceled", zap.String("job_id", jobID))

	return &Generation{JobID: jobID, Resume: resume, Checkpoint: handle}, nil
}

// Chain runs n generations, seeding generation k+1 with generation k's job
// id so each resumes from its immediate predecessor's externalized
// checkpoint. seedJobID seeds the first generation; a synthetic or
// nonexistent id makes it start fresh.
//
// Generation k+1 is not submitted until generation k has terminated, so
// two generations never write overlapping checkpoint state concurrently.
func (c *Controller) Chain(ctx context.Context, spec jobrun.Spec, seedJobID string, n int) ([]*Generation, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chain: generation count must be positive, got %d", n)
	}

	generations := make([]*Generation, 0, n)
	previous := seedJobID
	for i := 0; i < n; i++ {
		gen, err := c.RunGeneration(ctx, spec, previous)
		if err != nil {
			return generations, fmt.Errorf("generation %d: %w", i+1, err)
		}
		generations = append(generations, gen)
		previous = gen.JobID
	}
	return generations, nil
}

// waitForCheckpoint polls the locator against the new job's own root until
// a complete checkpoint newer than the baseline appears. In a per-job
// layout the baseline is zero; in a flat shared directory it is the
// resumed checkpoint's sequence, which is what distinguishes a fresh
// checkpoint from the predecessor's leftovers in the same directory.
//
// Transient listing errors are retried forever; only ctx ends the loop.
func (c *Controller) waitForCheckpoint(ctx context.Context, root string, baseline int64) (*checkpoint.Handle, error) {
	for {
		handle, err := c.locator.FindLatestComplete(ctx, root)
		if err != nil {
			c.logger.Debug("checkpoint scan failed, retrying",
				zap.String("root", root), zap.Error(err))
		} else if handle != nil && handle.Sequence > baseline {
			return handle, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for checkpoint under %s: %w", root, ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// waitForCanceled polls job status until Canceled. Any other terminal
// state is surfaced immediately as a protocol violation.
func (c *Controller) waitForCanceled(ctx context.Context, jobID string) error {
	for {
		status, err := c.client.Status(ctx, jobID)
		if err != nil {
			return fmt.Errorf("status of %s: %w", jobID, err)
		}
		switch status {
		case jobrun.StatusCanceled:
			return nil
		case jobrun.StatusFailed:
			return &ProtocolViolationError{JobID: jobID, Status: status}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s to cancel: %w", jobID, ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// baselineSequence extracts the resumed checkpoint's sequence number from
// the pointer location's last path segment.
func baselineSequence(resume *recovery.ResumePointer) int64 {
	if resume == nil {
		return 0
	}
	seq, ok := checkpoint.ParseSequence(lastSegment(resume.Location))
	if !ok {
		return 0
	}
	return seq
}

func lastSegment(p string) string {
	p = strings.TrimRight(strings.ReplaceAll(p, "\\", "/"), "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
