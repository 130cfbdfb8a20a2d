// Package fsview defines the read-only directory-listing abstraction the
// checkpoint discovery protocol is built on.
//
// Views implement a minimal surface: list the immediate children of a path.
// Checkpoint trees are written by an active snapshot backend while they are
// being scanned, so implementations must treat "entry disappeared between
// list and recurse" as a normal condition, reported via ErrNotFound rather
// than a hard failure.
package fsview

import "context"

// Entry is a single child of a listed path.
type Entry struct {
	// Name is the entry's base name, without any parent path.
	Name string

	// Dir reports whether the entry can itself be listed.
	Dir bool
}

// View abstracts directory listing over a storage backend.
//
// Implementations should:
//   - Return ErrNotFound (possibly wrapped) when the path does not exist
//   - Be safe for concurrent use
type View interface {
	// List returns the immediate children of path.
	List(ctx context.Context, path string) ([]Entry, error)

	// Join builds a child path from path elements using the view's
	// separator conventions.
	Join(elem ...string) string

	// Close releases any resources held by the view.
	Close() error
}

// ViewType identifies a view implementation.
type ViewType string

const (
	// ViewLocal reads a local filesystem tree.
	ViewLocal ViewType = "local"

	// ViewS3 reads an S3 or S3-compatible prefix tree.
	ViewS3 ViewType = "s3"
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	return string(v)
}
