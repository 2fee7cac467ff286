// Package translate translates transcript segments with either a local
// pivot-model engine (source to English to target) or a remote dictionary
// engine.
package translate

import (
	"context"
	"fmt"
	"strings"
)

// EngineName selects a translation engine.
type EngineName string

// Engine names.
const (
	EnginePivot      EngineName = "pivot"
	EngineDictionary EngineName = "dictionary"
)

// ParseEngine maps user input to an EngineName. Empty selects pivot;
// "ai_model" and "deep_translator" are accepted for pivot and dictionary.
func ParseEngine(s string) (EngineName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pivot", "ai_model":
		return EnginePivot, nil
	case "dictionary", "deep_translator", "google":
		return EngineDictionary, nil
	default:
		return "", fmt.Errorf("%q (use pivot or dictionary): %w", s, ErrUnknownEngine)
	}
}

// Capabilities describes what an engine can translate.
type Capabilities struct {
	Engine     EngineName        `json:"engine" msgpack:"engine"`
	Title      string            `json:"title" msgpack:"title"`
	Languages  []string          `json:"supported_languages" msgpack:"supported_languages"`
	Names      map[string]string `json:"language_names" msgpack:"language_names"`
	AutoDetect bool              `json:"auto_detect" msgpack:"auto_detect"`
}

// Engine translates text between normalized language codes.
// Implementations return the original (or best partial) text together
// with any error, so callers can degrade instead of failing.
type Engine interface {
	Capabilities() Capabilities
	Translate(ctx context.Context, text, src, tgt string) (string, error)
}
