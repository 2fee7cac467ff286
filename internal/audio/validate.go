package audio

import (
	"context"
	"fmt"

	"github.com/alnah/go-clipscribe/internal/storage"
)

// Violation identifies which range constraint failed.
type Violation int

// Range violations, in the order they are checked.
const (
	ViolationNone Violation = iota
	ViolationNegativeStart
	ViolationEndBeforeStart
	ViolationUnreadable
	ViolationStartPastDuration
	ViolationEndPastDuration
)

// RangeCheck is the outcome of ValidateRange.
type RangeCheck struct {
	Valid     bool
	Violation Violation
	Reason    string
	Duration  float64 // measured duration, zero when metadata was not read or failed
}

// ValidateRange checks, in order, start >= 0, start < end, that f can be
// read, start < duration and end <= duration. It reports the first failure.
func (e *Engine) ValidateRange(ctx context.Context, f storage.File, start, end float64) RangeCheck {
	if start < 0 {
		return invalid(ViolationNegativeStart, "start time must be non-negative", 0)
	}
	if start >= end {
		return invalid(ViolationEndBeforeStart, "end time must be greater than start time", 0)
	}

	info, err := e.Info(ctx, f)
	if err != nil {
		return invalid(ViolationUnreadable, "cannot read media info", 0)
	}

	if start >= info.Duration {
		return invalid(ViolationStartPastDuration,
			fmt.Sprintf("start time %.1fs exceeds audio duration %.1fs", start, info.Duration), info.Duration)
	}
	if end > info.Duration {
		return invalid(ViolationEndPastDuration,
			fmt.Sprintf("end time %.1fs exceeds audio duration %.1fs", end, info.Duration), info.Duration)
	}
	return RangeCheck{Valid: true, Reason: "valid", Duration: info.Duration}
}

func invalid(v Violation, reason string, duration float64) RangeCheck {
	return RangeCheck{Violation: v, Reason: reason, Duration: duration}
}
