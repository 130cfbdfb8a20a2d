// Package local implements fsview.View for local filesystem trees.
package local

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fluxkit/resumer/pkg/fsview"
)

// View lists directories on the local filesystem.
//
// Paths are regular filesystem paths; Join uses filepath semantics.
type View struct{}

var _ fsview.View = (*View)(nil)

// New creates a local filesystem view.
func New() *View {
	return &View{}
}

func (v *View) Close() error { return nil }

func (v *View) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// List returns the immediate children of path.
//
// A missing path is reported as fsview.ErrNotFound so callers can treat it
// as "nothing there yet" rather than a failure.
func (v *View) List(ctx context.Context, path string) ([]fsview.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &fsview.ViewError{Op: "List", View: fsview.ViewLocal, Path: path, Err: fsview.ErrNotFound}
		}
		if os.IsPermission(err) {
			return nil, &fsview.ViewError{Op: "List", View: fsview.ViewLocal, Path: path, Err: fsview.ErrAccessDenied}
		}
		return nil, &fsview.ViewError{Op: "List", View: fsview.ViewLocal, Path: path, Err: err}
	}

	out := make([]fsview.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fsview.Entry{Name: e.Name(), Dir: e.IsDir()})
	}
	return out, nil
}
