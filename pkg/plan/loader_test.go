package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPlan = `
name: nightly-resume
generations: 5
seed_job_id: seed-abc
parallelism: 4
emit_rate: 1000
checkpoint_interval: 250ms
poll_interval: 25ms
checkpoints:
  base: /var/checkpoints
  layout: flat
  retention: delete
  mode: incremental
ha:
  endpoint: localhost:6379
`

func TestLoadFromBytes_FullPlan(t *testing.T) {
	p, err := LoadFromBytes([]byte(fullPlan))
	require.NoError(t, err)

	assert.Equal(t, "nightly-resume", p.Name)
	assert.Equal(t, 5, p.Generations)
	assert.Equal(t, "seed-abc", p.SeedJobID)
	assert.Equal(t, 4, p.Parallelism)
	assert.Equal(t, float64(1000), p.EmitRate)
	assert.Equal(t, 250*time.Millisecond, p.CheckpointInterval.Std())
	assert.Equal(t, 25*time.Millisecond, p.PollInterval.Std())
	assert.Equal(t, "/var/checkpoints", p.Checkpoints.Base)
	assert.Equal(t, "flat", p.Layout().String())
	assert.Equal(t, "delete", string(p.Retention()))
	assert.Equal(t, "incremental", p.SnapshotMode().String())
	assert.Equal(t, "localhost:6379", p.HA.Endpoint)
}

func TestLoadFromBytes_MinimalPlanGetsDefaults(t *testing.T) {
	p, err := LoadFromBytes([]byte("checkpoints:\n  base: /tmp/ckpts\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultGenerations, p.Generations)
	assert.Equal(t, DefaultParallelism, p.Parallelism)
	assert.Equal(t, DefaultCheckpointInterval, p.CheckpointInterval.Std())
	assert.Equal(t, DefaultPollInterval, p.PollInterval.Std())
	assert.Equal(t, "per-job", p.Layout().String())
	assert.Equal(t, "retain", string(p.Retention()))
	assert.Equal(t, "full", p.SnapshotMode().String())
	assert.Empty(t, p.HA.Endpoint)
}

func TestLoadFromBytes_MissingBaseFails(t *testing.T) {
	_, err := LoadFromBytes([]byte("name: no-base\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoints.base")
}

func TestLoadFromBytes_UnknownFieldFails(t *testing.T) {
	_, err := LoadFromBytes([]byte("checkpoints:\n  base: /tmp/ckpts\n  lay0ut: flat\n"))
	assert.Error(t, err)
}

func TestLoadFromBytes_InvalidEnumsFail(t *testing.T) {
	cases := map[string]string{
		"layout":    "checkpoints:\n  base: /tmp/c\n  layout: nested\n",
		"retention": "checkpoints:\n  base: /tmp/c\n  retention: archive\n",
		"mode":      "checkpoints:\n  base: /tmp/c\n  mode: differential\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromBytes_BadDurationFails(t *testing.T) {
	_, err := LoadFromBytes([]byte("checkpoint_interval: fast\ncheckpoints:\n  base: /tmp/c\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")
}

func TestLoadFromBytes_EmptyFails(t *testing.T) {
	_, err := LoadFromBytes([]byte("   \n"))
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullPlan), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly-resume", p.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
