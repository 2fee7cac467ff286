package acquire

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for acquisition failures.
var (
	// ErrInvalidSource indicates a malformed source identifier.
	ErrInvalidSource = errors.New("invalid source identifier")

	// ErrUnsupportedFormat indicates a requested output format other than mp3 or wav.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrCertificate indicates a TLS/certificate failure. Transient: retried
	// once with relaxed certificate validation.
	ErrCertificate = errors.New("certificate error")

	// ErrAuthRequired indicates the source requires signing in. Fatal.
	ErrAuthRequired = errors.New("source requires authentication")

	// ErrUnavailable indicates a private or removed source. Fatal.
	ErrUnavailable = errors.New("source is private or unavailable")

	// ErrAgeRestricted indicates an age-gated source. Fatal.
	ErrAgeRestricted = errors.New("source is age-restricted")

	// ErrDownloadFailed is the generic fatal acquisition failure.
	ErrDownloadFailed = errors.New("download failed")
)

// IsTransient reports whether err is worth the single relaxed retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrCertificate)
}

// IsFatal reports whether err must surface without any retry.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrAgeRestricted) ||
		errors.Is(err, ErrDownloadFailed)
}

// ageMarkers are the extractor messages for age-gated content.
var ageMarkers = []string{
	"age-restricted",
	"age restricted",
	"confirm your age",
	"inappropriate for some users",
}

// classify maps a raw extractor failure to a sentinel, checking in priority
// order: certificate, authentication, availability, age restriction.
func classify(err error) error {
	msg := strings.ToLower(err.Error())

	var kind error
	switch {
	case strings.Contains(msg, "certificate") || strings.Contains(msg, "ssl"):
		kind = ErrCertificate
	case strings.Contains(msg, "sign in") || strings.Contains(msg, "login"):
		kind = ErrAuthRequired
	case strings.Contains(msg, "private") || strings.Contains(msg, "unavailable"):
		kind = ErrUnavailable
	case containsAny(msg, ageMarkers):
		kind = ErrAgeRestricted
	default:
		kind = ErrDownloadFailed
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
