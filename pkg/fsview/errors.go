package fsview

import (
	"errors"
	"fmt"
)

// Sentinel errors for view operations.
var (
	// ErrNotFound indicates the requested path does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")
)

// ViewError wraps view-specific errors with context.
type ViewError struct {
	// Op is the operation that failed (e.g., "List").
	Op string

	// View is the view type (e.g., "local", "s3").
	View ViewType

	// Path is the path being listed, if applicable.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ViewError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.View, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.View, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ViewError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
