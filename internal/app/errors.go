package app

import "errors"

// Application errors.
var (
	// ErrClosed indicates the application has been closed.
	ErrClosed = errors.New("application closed")

	// ErrNoWriteMount indicates the configuration has no DEFAULT_WRITE_PATH.
	ErrNoWriteMount = errors.New("no DEFAULT_WRITE_PATH mount configured")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
