package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidRange indicates --start/--end flags were missing or inconsistent.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrInvalidDuration indicates a non-positive duration flag.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")
)
