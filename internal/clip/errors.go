package clip

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable failure identifier.
type Code string

// Failure codes surfaced to clients.
const (
	CodeFileNotFound        Code = "file_not_found"
	CodeInvalidTimeRange    Code = "invalid_time_range"
	CodeInvalidStartTime    Code = "invalid_start_time"
	CodeFileTooLarge        Code = "file_too_large"
	CodeDownloadFailed      Code = "download_failed"
	CodeDownloadError       Code = "download_error"
	CodeTranscriptionFailed Code = "transcription_failed"
	CodeUnsupportedFormat   Code = "unsupported_format"
	CodeCutFailed           Code = "cut_failed"
	CodeNormalizeFailed     Code = "normalize_failed"
	CodeMetadataFailed      Code = "metadata_failed"
	CodeInvalidRequest      Code = "invalid_request"
	CodeSearchFailed        Code = "search_failed"
)

// Error is a user-visible failure. Message is safe to show; Err carries the
// internal cause and is only exposed in debug mode.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
