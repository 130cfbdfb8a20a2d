// Package snapshot defines the state snapshot backend consumed by the job
// runtime, plus a filesystem implementation supporting full and incremental
// modes.
//
// A backend owns the layout of a single checkpoint directory: data files
// are written first, the metadata marker last, so discovery can use the
// marker as the sole completeness signal.
package snapshot

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects how much state each checkpoint captures.
type Mode string

const (
	// ModeFull captures the complete state in every checkpoint.
	ModeFull Mode = "full"

	// ModeIncremental captures only the delta since the prior checkpoint,
	// tracking lineage internally. Opaque to discovery.
	ModeIncremental Mode = "incremental"
)

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFull:
		return ModeFull, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown snapshot mode %q (want %q or %q)", s, ModeFull, ModeIncremental)
	}
}

func (m Mode) String() string {
	return string(m)
}

// State is the operator state captured by a checkpoint: the emit counter of
// each parallel source subtask.
type State struct {
	Emitted []int64 `json:"emitted"`
}

// Total sums the per-subtask counters.
func (s State) Total() int64 {
	var n int64
	for _, v := range s.Emitted {
		n += v
	}
	return n
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	out := State{Emitted: make([]int64, len(s.Emitted))}
	copy(out.Emitted, s.Emitted)
	return out
}

// Restored is the result of reading a completed checkpoint.
type Restored struct {
	// State is the reconstructed operator state.
	State State

	// Sequence is the checkpoint's sequence number; a resumed job
	// continues numbering from here so sequences stay monotonic even in
	// a flat shared directory.
	Sequence int64
}

// Backend writes and reads state snapshots.
type Backend interface {
	// Mode reports whether the backend captures full or incremental
	// snapshots.
	Mode() Mode

	// Snapshot writes checkpoint number seq of state under root and
	// returns the finalized checkpoint directory. The metadata marker is
	// the last write.
	Snapshot(ctx context.Context, root string, seq int64, state State) (string, error)

	// Restore reconstructs state from a completed checkpoint directory.
	Restore(ctx context.Context, location string) (*Restored, error)
}
