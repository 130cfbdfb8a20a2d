package checkpoint

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fluxkit/resumer/pkg/fsview"
)

// Detector decides whether a candidate directory is a fully written,
// restorable checkpoint.
//
// A candidate is complete iff its name matches the entry pattern with a
// numeric sequence suffix AND it contains at least one child whose name
// contains the marker substring. Listing errors on a candidate (for
// example a directory removed by retention between list and recurse) mean
// "not complete", never a propagated failure: concurrent cleanup must not
// break discovery.
type Detector struct {
	// Pattern is the glob matched against candidate names.
	// Empty means DefaultEntryPattern.
	Pattern string

	// MarkerSubstring identifies the metadata marker child.
	// Empty means DefaultMarkerSubstring.
	MarkerSubstring string
}

func (d *Detector) pattern() string {
	if d == nil || d.Pattern == "" {
		return DefaultEntryPattern
	}
	return d.Pattern
}

func (d *Detector) marker() string {
	if d == nil || d.MarkerSubstring == "" {
		return DefaultMarkerSubstring
	}
	return d.MarkerSubstring
}

// MatchEntry reports whether name follows the checkpoint entry convention
// and returns its sequence number when it does.
func (d *Detector) MatchEntry(name string) (int64, bool) {
	ok, err := doublestar.Match(d.pattern(), name)
	if err != nil || !ok {
		return 0, false
	}
	return ParseSequence(name)
}

// IsComplete reports whether the checkpoint directory at dir contains a
// metadata marker entry. Listing errors yield false.
func (d *Detector) IsComplete(ctx context.Context, v fsview.View, dir string) bool {
	children, err := v.List(ctx, dir)
	if err != nil {
		return false
	}
	marker := d.marker()
	for _, child := range children {
		if strings.Contains(child.Name, marker) {
			return true
		}
	}
	return false
}
