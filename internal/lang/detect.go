package lang

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detector identifies the language of a piece of text.
type Detector interface {
	Detect(text string) (string, error)
}

// TrigramDetector detects languages with whatlanggo's trigram model.
type TrigramDetector struct {
	minConfidence float64
}

// Compile-time interface check.
var _ Detector = (*TrigramDetector)(nil)

// DetectorOption configures a TrigramDetector.
type DetectorOption func(*TrigramDetector)

// WithMinConfidence rejects detections below the given confidence.
// When zero, whatlanggo's own reliability check is used.
func WithMinConfidence(c float64) DetectorOption {
	return func(d *TrigramDetector) {
		d.minConfidence = c
	}
}

// NewTrigramDetector creates a detector backed by whatlanggo.
func NewTrigramDetector(opts ...DetectorOption) *TrigramDetector {
	d := &TrigramDetector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the normalized code of the text's language.
// Returns ErrUndetermined for empty text, unreliable results, or languages
// without an ISO 639-1 code.
func (d *TrigramDetector) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text: %w", ErrUndetermined)
	}

	info := whatlanggo.Detect(text)
	reliable := info.IsReliable()
	if d.minConfidence > 0 {
		reliable = info.Confidence >= d.minConfidence
	}
	if !reliable {
		return "", fmt.Errorf("confidence %.2f too low: %w", info.Confidence, ErrUndetermined)
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return "", fmt.Errorf("no ISO 639-1 code for %s: %w", info.Lang.String(), ErrUndetermined)
	}
	return Normalize(code), nil
}

// DetectOr runs d and returns Fallback when detection fails.
func DetectOr(d Detector, text string) string {
	code, err := d.Detect(text)
	if err != nil {
		return Fallback
	}
	return Normalize(code)
}
