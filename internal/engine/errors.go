package engine

import "errors"

// Errors returned while configuring mounts.
var (
	// ErrEmptyMount is returned when a mount ID is empty.
	ErrEmptyMount = errors.New("mount id is empty")

	// ErrNotMountable is returned for a root that is neither a directory
	// nor a zip archive.
	ErrNotMountable = errors.New("search path is not a directory or zip archive")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("engine is closed")
)
