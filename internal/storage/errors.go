package storage

import "errors"

// Sentinel errors for managed file operations.
var (
	// ErrNotFound indicates the handle is unknown, already deleted, or missing on disk.
	ErrNotFound = errors.New("file not found")

	// ErrOutsideRoot indicates a reference that escapes the storage directory.
	ErrOutsideRoot = errors.New("path outside storage directory")

	// ErrTooLarge indicates a file exceeding the configured size limit.
	ErrTooLarge = errors.New("file too large")
)
