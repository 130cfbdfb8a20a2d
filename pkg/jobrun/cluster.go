// Package jobrun is an in-process job runtime implementing the submission
// surface the lifecycle controller drives: submit a streaming job with a
// resume pointer, cancel it, and query its status.
//
// Each job runs its parallel source subtasks as goroutines and drives the
// snapshot backend on a fixed interval, writing checkpoints under the root
// resolved for its job id. The runtime stands in for an external cluster;
// the coordinator only ever talks to it through Submit, Cancel and Status.
package jobrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/fsview/local"
	"github.com/fluxkit/resumer/pkg/recovery"
	"github.com/fluxkit/resumer/pkg/snapshot"
)

// DefaultCheckpointInterval matches the original deployment's periodic
// checkpoint cadence.
const DefaultCheckpointInterval = 500 * time.Millisecond

// Spec describes one job generation to submit.
type Spec struct {
	// Name labels the logical job across generations.
	Name string

	// Parallelism is the number of source subtasks. Defaults to 1.
	Parallelism int

	// CheckpointInterval is the periodic snapshot cadence.
	// Defaults to DefaultCheckpointInterval.
	CheckpointInterval time.Duration

	// EmitRate paces each subtask in records per second. Zero means
	// unpaced.
	EmitRate float64

	// NewSource overrides the source built per subtask. Nil uses
	// an InfiniteSource at EmitRate.
	NewSource SourceFactory
}

func (s Spec) withDefaults() Spec {
	if s.Parallelism <= 0 {
		s.Parallelism = 1
	}
	if s.CheckpointInterval <= 0 {
		s.CheckpointInterval = DefaultCheckpointInterval
	}
	if s.NewSource == nil {
		rate := s.EmitRate
		s.NewSource = func(int) Source { return NewInfiniteSource(rate) }
	}
	return s
}

// Config configures the cluster's checkpoint placement and retention.
type Config struct {
	// BaseDir is the base checkpoint directory.
	BaseDir string

	// Layout determines whether jobs write under base/<jobID> or the
	// shared base directory.
	Layout checkpoint.LayoutMode

	// Retention governs what happens to a job's checkpoints on cancel.
	// Defaults to RetainOnCancellation.
	Retention recovery.RetentionPolicy
}

// Cluster runs jobs in-process.
type Cluster struct {
	cfg      Config
	backend  snapshot.Backend
	view     *local.View
	registry *Registry
	logger   *zap.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// NewCluster creates a cluster writing checkpoints through backend.
// registry may be nil to disable job.json persistence; a nil logger
// disables logging.
func NewCluster(cfg Config, backend snapshot.Backend, registry *Registry, logger *zap.Logger) (*Cluster, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("cluster: base checkpoint dir is required")
	}
	if cfg.Layout != checkpoint.PerJobSubdirectory && cfg.Layout != checkpoint.FlatSharedDirectory {
		return nil, fmt.Errorf("cluster: unknown layout mode %q", cfg.Layout)
	}
	if cfg.Retention == "" {
		cfg.Retention = recovery.RetainOnCancellation
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cluster{
		cfg:      cfg,
		backend:  backend,
		view:     local.New(),
		registry: registry,
		logger:   logger,
		jobs:     make(map[string]*job),
	}, nil
}

// job is one running generation.
type job struct {
	id     string
	spec   Spec
	root   string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  Status
	failure error
	emitted []int64
	baseSeq int64
	seq     int64
	written []string
	record  Record
}

// Submit starts a job configured from spec. When resume is non-nil the
// job's state is restored from the pointed-at checkpoint before any source
// starts, and checkpoint numbering continues after the restored sequence.
//
// The returned job id names the generation; it is also the directory key
// in a per-job layout.
func (c *Cluster) Submit(ctx context.Context, spec Spec, resume *recovery.ResumePointer) (string, error) {
	spec = spec.withDefaults()

	jobID := uuid.New().String()
	root, err := checkpoint.ResolveRoot(c.view, c.cfg.BaseDir, jobID, c.cfg.Layout)
	if err != nil {
		return "", err
	}

	j := &job{
		id:      jobID,
		spec:    spec,
		root:    root,
		done:    make(chan struct{}),
		status:  StatusRunning,
		emitted: make([]int64, spec.Parallelism),
		record: Record{
			JobID:          jobID,
			Name:           spec.Name,
			State:          StatusRunning,
			CheckpointRoot: root,
			Parallelism:    spec.Parallelism,
			SnapshotMode:   c.backend.Mode().String(),
			CreatedAt:      time.Now().UTC(),
		},
	}

	if resume != nil {
		restored, err := c.backend.Restore(ctx, resume.Location)
		if err != nil {
			return "", fmt.Errorf("restore from %s: %w", resume.Location, err)
		}
		if len(restored.State.Emitted) > spec.Parallelism && !resume.AllowNonRestoredState {
			return "", fmt.Errorf("checkpoint %s holds state for %d subtasks but job has %d (set allow_non_restored_state to drop the excess)",
				resume.Location, len(restored.State.Emitted), spec.Parallelism)
		}
		for i := 0; i < spec.Parallelism && i < len(restored.State.Emitted); i++ {
			j.emitted[i] = restored.State.Emitted[i]
		}
		j.baseSeq = restored.Sequence
		j.seq = restored.Sequence
		j.record.ResumedFrom = resume.Location

		c.logger.Info("restored job state",
			zap.String("job_id", jobID),
			zap.String("from", resume.Location),
			zap.Int64("sequence", restored.Sequence),
			zap.Int64("records", restored.State.Total()))
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	c.mu.Lock()
	c.jobs[jobID] = j
	c.mu.Unlock()
	c.persist(j)

	var wg sync.WaitGroup
	for i := 0; i < spec.Parallelism; i++ {
		subtask := i
		src := spec.NewSource(subtask)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := src.Run(jobCtx, func() {
				j.mu.Lock()
				j.emitted[subtask]++
				j.mu.Unlock()
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				c.fail(j, fmt.Errorf("subtask %d: %w", subtask, err))
			}
		}()
	}

	ckptDone := make(chan struct{})
	go c.checkpointLoop(jobCtx, j, ckptDone)

	go func() {
		wg.Wait()
		<-ckptDone
		c.finalize(j)
	}()

	c.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("root", root),
		zap.Int("parallelism", spec.Parallelism),
		zap.Duration("checkpoint_interval", spec.CheckpointInterval))

	return jobID, nil
}

// checkpointLoop drives the snapshot backend at the job's checkpoint
// interval until the job context ends.
func (c *Cluster) checkpointLoop(ctx context.Context, j *job, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.spec.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		j.mu.Lock()
		j.seq++
		seq := j.seq
		state := snapshot.State{Emitted: append([]int64(nil), j.emitted...)}
		j.mu.Unlock()

		dir, err := c.backend.Snapshot(ctx, j.root, seq, state)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.fail(j, fmt.Errorf("checkpoint %d: %w", seq, err))
			return
		}

		j.mu.Lock()
		j.written = append(j.written, dir)
		j.record.LastCheckpointSeq = seq
		j.record.LastCheckpointLocation = dir
		j.mu.Unlock()
		c.persist(j)

		c.logger.Debug("checkpoint written",
			zap.String("job_id", j.id),
			zap.Int64("sequence", seq),
			zap.String("dir", dir))
	}
}

// Cancel requests cancellation of the job. The request is one-shot; callers
// observe completion by polling Status until a terminal state.
func (c *Cluster) Cancel(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j, err := c.lookup(jobID)
	if err != nil {
		return err
	}

	j.mu.Lock()
	if j.status.Terminal() || j.status == StatusCanceling {
		j.mu.Unlock()
		return nil
	}
	j.status = StatusCanceling
	j.record.State = StatusCanceling
	j.mu.Unlock()
	c.persist(j)

	c.logger.Info("job cancel requested", zap.String("job_id", jobID))
	j.cancel()
	return nil
}

// Status returns the job's current lifecycle state.
func (c *Cluster) Status(ctx context.Context, jobID string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	j, err := c.lookup(jobID)
	if err != nil {
		return "", err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, nil
}

// Root returns the checkpoint root resolved for the job.
func (c *Cluster) Root(jobID string) (string, error) {
	j, err := c.lookup(jobID)
	if err != nil {
		return "", err
	}
	return j.root, nil
}

// Close cancels all running jobs and waits for them to terminate.
func (c *Cluster) Close() error {
	c.mu.Lock()
	jobs := make([]*job, 0, len(c.jobs))
	for _, j := range c.jobs {
		jobs = append(jobs, j)
	}
	c.mu.Unlock()

	for _, j := range jobs {
		j.mu.Lock()
		terminal := j.status.Terminal()
		if !terminal && j.status != StatusCanceling {
			j.status = StatusCanceling
			j.record.State = StatusCanceling
		}
		j.mu.Unlock()
		if !terminal {
			j.cancel()
		}
	}
	for _, j := range jobs {
		<-j.done
	}
	return nil
}

func (c *Cluster) lookup(jobID string) (*job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}
	return j, nil
}

// fail moves the job to Failed unless it is already being cancelled; a
// failure racing an explicit cancel still terminates as Canceled.
func (c *Cluster) fail(j *job, cause error) {
	j.mu.Lock()
	if j.status.Terminal() || j.status == StatusCanceling {
		j.mu.Unlock()
		return
	}
	j.status = StatusFailed
	j.failure = cause
	j.record.State = StatusFailed
	j.record.FailureReason = cause.Error()
	j.mu.Unlock()
	c.persist(j)

	c.logger.Error("job failed", zap.String("job_id", j.id), zap.Error(cause))
	j.cancel()
}

// finalize runs after all of the job's goroutines have exited.
func (c *Cluster) finalize(j *job) {
	j.mu.Lock()
	status := j.status
	j.mu.Unlock()

	if status == StatusCanceling {
		c.applyRetention(j)

		j.mu.Lock()
		j.status = StatusCanceled
		j.record.State = StatusCanceled
		j.mu.Unlock()

		c.logger.Info("job canceled", zap.String("job_id", j.id))
	}

	now := time.Now().UTC()
	j.mu.Lock()
	j.record.EndedAt = &now
	j.mu.Unlock()
	c.persist(j)

	close(j.done)
}

// applyRetention enforces the configured retention policy once a cancelled
// job has fully stopped. Only this generation's own checkpoints are
// touched; a predecessor's checkpoints in a flat shared directory are never
// deleted.
func (c *Cluster) applyRetention(j *job) {
	if c.cfg.Retention != recovery.DeleteOnCancellation {
		return
	}

	j.mu.Lock()
	written := append([]string(nil), j.written...)
	j.mu.Unlock()

	if c.cfg.Layout == checkpoint.PerJobSubdirectory {
		if err := os.RemoveAll(j.root); err != nil {
			c.logger.Warn("failed to delete checkpoint root",
				zap.String("job_id", j.id), zap.Error(err))
		}
		return
	}
	for _, dir := range written {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("failed to delete checkpoint",
				zap.String("job_id", j.id), zap.String("dir", dir), zap.Error(err))
		}
	}
}

// persist best-effort writes the job record; registry failures never take a
// job down.
func (c *Cluster) persist(j *job) {
	if c.registry == nil {
		return
	}
	j.mu.Lock()
	record := j.record
	j.mu.Unlock()
	if err := c.registry.Write(&record); err != nil {
		c.logger.Warn("failed to persist job record",
			zap.String("job_id", j.id), zap.Error(err))
	}
}
