package checkpoint

import (
	"fmt"
	"strings"

	"github.com/fluxkit/resumer/pkg/fsview"
)

// LayoutMode selects how checkpoint directories are organized under the
// base directory. The mode is fixed per deployment, not per job.
type LayoutMode string

const (
	// PerJobSubdirectory keeps each job generation's checkpoints under
	// base/<jobID>, isolating generations from one another.
	PerJobSubdirectory LayoutMode = "per-job"

	// FlatSharedDirectory writes all generations' checkpoints directly
	// under the base directory, so the latest checkpoint is discoverable
	// regardless of which generation produced it.
	FlatSharedDirectory LayoutMode = "flat"
)

// ParseLayoutMode maps a configuration string onto a LayoutMode.
func ParseLayoutMode(s string) (LayoutMode, error) {
	switch LayoutMode(strings.ToLower(strings.TrimSpace(s))) {
	case PerJobSubdirectory:
		return PerJobSubdirectory, nil
	case FlatSharedDirectory:
		return FlatSharedDirectory, nil
	default:
		return "", fmt.Errorf("unknown layout mode %q (want %q or %q)", s, PerJobSubdirectory, FlatSharedDirectory)
	}
}

func (m LayoutMode) String() string {
	return string(m)
}

// ResolveRoot maps (base, jobID, mode) to the directory the job's
// checkpoints are written under. A non-existent root is valid and means
// "no checkpoints yet"; no I/O happens here.
func ResolveRoot(v fsview.View, base, jobID string, mode LayoutMode) (string, error) {
	switch mode {
	case PerJobSubdirectory:
		if strings.TrimSpace(jobID) == "" {
			return "", fmt.Errorf("resolve root: job id is required in %s layout", mode)
		}
		return v.Join(base, jobID), nil
	case FlatSharedDirectory:
		return base, nil
	default:
		return "", fmt.Errorf("resolve root: unknown layout mode %q", mode)
	}
}
