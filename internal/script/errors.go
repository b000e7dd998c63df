package script

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrInstructionLimit is returned when the host call budget is exhausted.
	ErrInstructionLimit = errors.New("lua instruction limit exceeded")

	// ErrNoFilesystem is returned when a script is run before OpenFilesystem.
	ErrNoFilesystem = errors.New("filesystem module not opened")
)
