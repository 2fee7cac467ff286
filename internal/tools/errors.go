package tools

import "errors"

// ErrNotFound indicates a required external tool could not be located.
var ErrNotFound = errors.New("tool not found")
