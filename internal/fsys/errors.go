package fsys

import "errors"

var (
	// ErrEngineUnavailable is returned by New when the engine lacks the
	// roots the facade depends on.
	ErrEngineUnavailable = errors.New("filesystem engine unavailable")

	// ErrInvalidHandle is returned by every File method after Close.
	ErrInvalidHandle = errors.New("invalid FileHandle")

	// ErrInvalidSize is returned by Read for a length outside 1..2^32-1.
	ErrInvalidSize = errors.New("size out of bounds, must fit in a 32 bits unsigned integer and be bigger than 0")

	// ErrUnsupportedBits is returned for integer widths other than 8, 16, 32 and 64.
	ErrUnsupportedBits = errors.New("number of bits requested is not supported, must be 8, 16, 32 or 64")

	// ErrSeekRange is returned for offsets outside the int32 range.
	ErrSeekRange = errors.New("seek offset out of range, must fit in a 32 bits signed integer")
)
