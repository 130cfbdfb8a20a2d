// Package checkpoint implements discovery of externalized checkpoints on
// durable storage: resolving the directory a job's checkpoints live under,
// deciding whether a candidate checkpoint is fully written, and selecting
// the most recent complete one.
//
// A checkpoint occupies one directory named by the checkpoint entry
// convention (chk-<n> by default) containing backend data files plus a
// single metadata marker written as the last, atomic step of finalization.
// The marker is the only completeness signal: data files appear first, so a
// directory without it must be treated as in-progress.
package checkpoint

import (
	"strconv"
	"strings"
)

// DefaultEntryPattern is the glob matched against candidate directory names.
const DefaultEntryPattern = "chk-*"

// DefaultMarkerSubstring identifies the metadata marker child entry.
const DefaultMarkerSubstring = "_metadata"

// Handle identifies one complete checkpoint on durable storage.
type Handle struct {
	// Location is the checkpoint directory path in view coordinates.
	Location string `json:"location"`

	// Sequence is the monotonic ordering key parsed from the entry name.
	Sequence int64 `json:"sequence"`

	// Complete reports that the metadata marker was observed. Handles
	// returned by the locator always have it set.
	Complete bool `json:"complete"`
}

// ParseSequence extracts the numeric sequence suffix from a checkpoint
// entry name such as "chk-42". The second return is false when the name
// carries no parseable suffix.
func ParseSequence(name string) (int64, bool) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx == len(name)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(name[idx+1:], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
