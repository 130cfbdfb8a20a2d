// Package plan loads the YAML run plan consumed by `resumer run`: the
// logical job's shape plus the checkpoint deployment it runs against.
package plan

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/recovery"
	"github.com/fluxkit/resumer/pkg/snapshot"
)

// Duration decodes YAML strings like "500ms" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Plan describes a chained run of job generations.
type Plan struct {
	// Name labels the logical job across generations.
	Name string `yaml:"name"`

	// Generations is how many submit→checkpoint→cancel cycles to chain.
	Generations int `yaml:"generations"`

	// SeedJobID seeds the first generation's recovery decision. Empty
	// generates a synthetic id with no checkpoints, exercising the
	// start-fresh path.
	SeedJobID string `yaml:"seed_job_id"`

	// Parallelism is the number of source subtasks per generation.
	Parallelism int `yaml:"parallelism"`

	// EmitRate paces each subtask in records per second. Zero is unpaced.
	EmitRate float64 `yaml:"emit_rate"`

	// CheckpointInterval is the periodic snapshot cadence.
	CheckpointInterval Duration `yaml:"checkpoint_interval"`

	// PollInterval is the controller's fixed poll sleep.
	PollInterval Duration `yaml:"poll_interval"`

	// Checkpoints configures placement and retention.
	Checkpoints Checkpoints `yaml:"checkpoints"`

	// HA configures the optional coordination service.
	HA HA `yaml:"ha"`
}

// Checkpoints configures where checkpoints live and how long they last.
type Checkpoints struct {
	// Base is the base checkpoint directory (required).
	Base string `yaml:"base"`

	// Layout is "per-job" or "flat".
	Layout string `yaml:"layout"`

	// Retention is "retain" or "delete".
	Retention string `yaml:"retention"`

	// Mode is the snapshot mode, "full" or "incremental".
	Mode string `yaml:"mode"`
}

// HA configures the coordination service for pointer storage.
type HA struct {
	// Endpoint is the Redis address, e.g. "localhost:6379". Empty runs
	// standalone with an in-process pointer store.
	Endpoint string `yaml:"endpoint"`
}

// Defaults mirror the original deployment's test constants.
const (
	DefaultGenerations        = 3
	DefaultParallelism        = 2
	DefaultCheckpointInterval = 500 * time.Millisecond
	DefaultPollInterval       = 50 * time.Millisecond
)

// applyDefaults fills optional fields.
func (p *Plan) applyDefaults() {
	if p.Name == "" {
		p.Name = "resume-test"
	}
	if p.Generations <= 0 {
		p.Generations = DefaultGenerations
	}
	if p.Parallelism <= 0 {
		p.Parallelism = DefaultParallelism
	}
	if p.CheckpointInterval <= 0 {
		p.CheckpointInterval = Duration(DefaultCheckpointInterval)
	}
	if p.PollInterval <= 0 {
		p.PollInterval = Duration(DefaultPollInterval)
	}
	if p.Checkpoints.Layout == "" {
		p.Checkpoints.Layout = checkpoint.PerJobSubdirectory.String()
	}
	if p.Checkpoints.Retention == "" {
		p.Checkpoints.Retention = string(recovery.RetainOnCancellation)
	}
	if p.Checkpoints.Mode == "" {
		p.Checkpoints.Mode = snapshot.ModeFull.String()
	}
}

// Validate checks the plan after defaults have been applied.
func (p *Plan) Validate() error {
	if p.Checkpoints.Base == "" {
		return fmt.Errorf("plan: checkpoints.base is required")
	}
	if _, err := checkpoint.ParseLayoutMode(p.Checkpoints.Layout); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if _, err := recovery.ParseRetentionPolicy(p.Checkpoints.Retention); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if _, err := snapshot.ParseMode(p.Checkpoints.Mode); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	return nil
}

// Layout returns the parsed layout mode. Call after Validate.
func (p *Plan) Layout() checkpoint.LayoutMode {
	mode, _ := checkpoint.ParseLayoutMode(p.Checkpoints.Layout)
	return mode
}

// Retention returns the parsed retention policy. Call after Validate.
func (p *Plan) Retention() recovery.RetentionPolicy {
	policy, _ := recovery.ParseRetentionPolicy(p.Checkpoints.Retention)
	return policy
}

// SnapshotMode returns the parsed snapshot mode. Call after Validate.
func (p *Plan) SnapshotMode() snapshot.Mode {
	mode, _ := snapshot.ParseMode(p.Checkpoints.Mode)
	return mode
}
