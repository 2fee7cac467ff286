// Package apierr provides shared error sentinels and retry infrastructure
// for the remote services clipscribe talks to: the speech API, the
// dictionary translation endpoint and the media extractor.
//
// Adapters classify provider-specific failures into these sentinels with
// fmt.Errorf("%s: %w", msg, sentinel). Callers check with errors.Is.
package apierr

import "errors"

// Sentinel errors for remote interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrServerError indicates the remote side failed (5xx). Retryable.
	ErrServerError = errors.New("server error")
)

// Retryable reports whether err belongs to a class worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerError)
}
