package proc

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for external process failures.
var (
	// ErrTimeout indicates the process exceeded its deadline and was killed.
	ErrTimeout = errors.New("process timed out")

	// ErrCommandFailed indicates the process could not start or exited non-zero.
	ErrCommandFailed = errors.New("command failed")
)

// Error describes a failed process invocation. It matches both its kind
// (ErrTimeout or ErrCommandFailed) and the underlying cause with errors.Is.
type Error struct {
	Name   string // base name of the executable
	Kind   error
	Cause  error
	Stderr string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Name, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if tail := LastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// LastLine returns the last non-empty line of s, which is where most
// command line tools put the actual error.
func LastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
