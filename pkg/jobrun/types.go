package jobrun

import "time"

// Status is the lifecycle state of a submitted job.
//
// NOTE: These values are persisted in job.json and are part of the stable
// on-disk contract.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCanceling Status = "canceling"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusFailed
}

// Record is the persistent record written to job.json for each submitted
// job generation.
//
// The schema is designed for backward-compatible extension (additive fields).
type Record struct {
	JobID          string   `json:"job_id"`
	Name           string   `json:"name,omitempty"`
	State          Status   `json:"state"`
	CheckpointRoot string   `json:"checkpoint_root"`
	ResumedFrom    string   `json:"resumed_from,omitempty"`
	Parallelism    int      `json:"parallelism"`
	SnapshotMode   string   `json:"snapshot_mode,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	LastCheckpointSeq      int64  `json:"last_checkpoint_seq,omitempty"`
	LastCheckpointLocation string `json:"last_checkpoint_location,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`
}
