package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// State is the lifecycle position of a managed file.
type State int

// Lifecycle states. Deleted is terminal.
const (
	StateCreated State = iota
	StateActive
	StateScheduled
	StateDeleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateScheduled:
		return "scheduled"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// File is a handle to a file owned by the Manager.
// The zero value is not a valid handle.
type File struct {
	Path    string
	Owner   string // prefix of the stage that created it
	Created time.Time
}

// Name returns the base file name.
func (f File) Name() string { return filepath.Base(f.Path) }

// Ext returns the lowercase extension without the leading dot.
func (f File) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Path)), ".")
}

// String returns the path, which is also the reference handed to clients.
func (f File) String() string { return f.Path }
