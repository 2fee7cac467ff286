package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/apierr"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/config"
	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/tools"
	"github.com/alnah/go-clipscribe/internal/transcribe"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitTransient  = 5
	ExitAuth       = 6
	ExitInterrupt  = 130
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so usage errors are matched by message.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	if errors.Is(err, tools.ErrNotFound) || errors.Is(err, config.ErrInvalid) ||
		errors.Is(err, transcribe.ErrEngineNotConfigured) || errors.Is(err, transcribe.ErrModelUnavailable) {
		return ExitSetup
	}

	if errors.Is(err, apierr.ErrAuthFailed) || errors.Is(err, acquire.ErrAuthRequired) {
		return ExitAuth
	}

	if errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrTimeout) || errors.Is(err, proc.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ExitTransient
	}

	if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidDuration) || errors.Is(err, ErrOutputExists) {
		return ExitValidation
	}
	switch clip.CodeOf(err) {
	case clip.CodeFileNotFound, clip.CodeInvalidTimeRange, clip.CodeInvalidStartTime,
		clip.CodeInvalidRequest, clip.CodeFileTooLarge, clip.CodeUnsupportedFormat:
		return ExitValidation
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
var cobraUsageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"flag needs an argument",
	"invalid argument",
	"if any flags in the group",
	"unknown command",
	"accepts ",
	"requires at least",
	"requires at most",
}

func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
