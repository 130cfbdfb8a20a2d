package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/fsview/local"
	"github.com/fluxkit/resumer/pkg/hapointer"
	"github.com/fluxkit/resumer/pkg/jobrun"
	"github.com/fluxkit/resumer/pkg/recovery"
	"github.com/fluxkit/resumer/pkg/snapshot"
)

type harness struct {
	base       string
	cluster    *jobrun.Cluster
	pointers   hapointer.Store
	controller *Controller
	backend    snapshot.Backend
}

func newHarness(t *testing.T, layout checkpoint.LayoutMode, mode snapshot.Mode) *harness {
	t.Helper()

	base := t.TempDir()
	backend := snapshot.NewFS(mode)
	cluster, err := jobrun.NewCluster(jobrun.Config{
		BaseDir: base,
		Layout:  layout,
	}, backend, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cluster.Close() })

	view := local.New()
	locator := checkpoint.NewLocator(view, nil, nil)
	decider := recovery.NewDecider(view, locator, base, layout, nil)
	pointers := hapointer.NewStandalone()

	controller := NewController(cluster, view, locator, decider, pointers, Config{
		Base:         base,
		Layout:       layout,
		PollInterval: 5 * time.Millisecond,
	}, nil)

	return &harness{base: base, cluster: cluster, pointers: pointers, controller: controller, backend: backend}
}

func chainSpec() jobrun.Spec {
	return jobrun.Spec{
		Name:               "chained-resume",
		Parallelism:        2,
		CheckpointInterval: 20 * time.Millisecond,
	}
}

// seedJobID creates a synthetic predecessor whose root exists but holds no
// checkpoints, so the first generation starts fresh.
func seedJobID(t *testing.T, base string, layout checkpoint.LayoutMode) string {
	t.Helper()
	const seed = "seed-0000"
	if layout == checkpoint.PerJobSubdirectory {
		require.NoError(t, os.MkdirAll(filepath.Join(base, seed), 0755))
	}
	return seed
}

func TestChain_ThreeGenerationsEachResumeFromPredecessor(t *testing.T) {
	h := newHarness(t, checkpoint.PerJobSubdirectory, snapshot.ModeFull)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seed := seedJobID(t, h.base, checkpoint.PerJobSubdirectory)
	generations, err := h.controller.Chain(ctx, chainSpec(), seed, 3)
	require.NoError(t, err)
	require.Len(t, generations, 3)

	// The first generation found nothing under the seed and started fresh.
	assert.Nil(t, generations[0].Resume)

	// Every later generation resumed from its immediate predecessor's
	// recorded checkpoint.
	for i := 1; i < len(generations); i++ {
		require.NotNil(t, generations[i].Resume, "generation %d should have resumed", i+1)
		prev := generations[i-1].Checkpoint
		assert.Equal(t, prev.Location, generations[i].Resume.Location)
	}

	// Counters carry across the chain: restored totals never decrease.
	var lastTotal int64 = -1
	for i, gen := range generations {
		require.NotNil(t, gen.Checkpoint)
		restored, err := h.backend.Restore(ctx, gen.Checkpoint.Location)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, restored.State.Total(), lastTotal, "generation %d lost records", i+1)
		lastTotal = restored.State.Total()
	}

	// Each generation's pointer was durably recorded.
	for _, gen := range generations {
		ptr, err := h.pointers.Get(ctx, gen.JobID)
		require.NoError(t, err)
		require.NotNil(t, ptr)
		assert.Equal(t, gen.Checkpoint.Location, ptr.Location)
		assert.Equal(t, gen.Checkpoint.Sequence, ptr.Sequence)
	}
}

func TestChain_FlatLayoutDistinguishesFreshCheckpoints(t *testing.T) {
	h := newHarness(t, checkpoint.FlatSharedDirectory, snapshot.ModeFull)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	generations, err := h.controller.Chain(ctx, chainSpec(), "seed-0000", 2)
	require.NoError(t, err)
	require.Len(t, generations, 2)

	// Both generations share one directory; the second one's recorded
	// checkpoint must be newer than the first's, not a leftover.
	first := generations[0].Checkpoint
	second := generations[1].Checkpoint
	assert.Greater(t, second.Sequence, first.Sequence)
	require.NotNil(t, generations[1].Resume)
	assert.Equal(t, first.Location, generations[1].Resume.Location)
}

func TestChain_IncrementalSnapshotsResumeTheSameWay(t *testing.T) {
	h := newHarness(t, checkpoint.PerJobSubdirectory, snapshot.ModeIncremental)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seed := seedJobID(t, h.base, checkpoint.PerJobSubdirectory)
	generations, err := h.controller.Chain(ctx, chainSpec(), seed, 2)
	require.NoError(t, err)
	require.Len(t, generations, 2)
	require.NotNil(t, generations[1].Resume)
	assert.Equal(t, generations[0].Checkpoint.Location, generations[1].Resume.Location)
}

func TestChain_RejectsNonPositiveCount(t *testing.T) {
	h := newHarness(t, checkpoint.PerJobSubdirectory, snapshot.ModeFull)
	_, err := h.controller.Chain(context.Background(), chainSpec(), "seed", 0)
	assert.Error(t, err)
}

func TestRunGeneration_ContextBoundsTheWait(t *testing.T) {
	h := newHarness(t, checkpoint.PerJobSubdirectory, snapshot.ModeFull)

	// An interval far beyond the deadline: no checkpoint will ever appear.
	spec := chainSpec()
	spec.CheckpointInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	seed := seedJobID(t, h.base, checkpoint.PerJobSubdirectory)
	_, err := h.controller.RunGeneration(ctx, spec, seed)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// failingClient submits jobs that reach Failed instead of Canceled: the
// sources start (so the rendezvous opens) and one checkpoint is written,
// but every status poll reports failure.
type failingClient struct {
	base string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (f *failingClient) Submit(ctx context.Context, spec jobrun.Spec, resume *recovery.ResumePointer) (string, error) {
	const jobID = "doomed-job"

	srcCtx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	parallelism := spec.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	for i := 0; i < parallelism; i++ {
		src := spec.NewSource(i)
		go func() { _ = src.Run(srcCtx, func() {}) }()
	}

	root := filepath.Join(f.base, jobID)
	_, err := snapshot.NewFS(snapshot.ModeFull).Snapshot(ctx, root, 1, snapshot.State{Emitted: []int64{1}})
	return jobID, err
}

func (f *failingClient) Cancel(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
	return nil
}

func (f *failingClient) Status(ctx context.Context, jobID string) (jobrun.Status, error) {
	return jobrun.StatusFailed, nil
}

func TestRunGeneration_FailedJobIsAProtocolViolation(t *testing.T) {
	base := t.TempDir()
	view := local.New()
	locator := checkpoint.NewLocator(view, nil, nil)
	decider := recovery.NewDecider(view, locator, base, checkpoint.PerJobSubdirectory, nil)

	controller := NewController(&failingClient{base: base}, view, locator, decider,
		hapointer.NewStandalone(), Config{
			Base:         base,
			Layout:       checkpoint.PerJobSubdirectory,
			PollInterval: 5 * time.Millisecond,
		}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := controller.RunGeneration(ctx, chainSpec(), "seed-0000")
	require.Error(t, err)
	var violation *ProtocolViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "doomed-job", violation.JobID)
	assert.Equal(t, jobrun.StatusFailed, violation.Status)
}
