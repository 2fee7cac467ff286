package translate

import (
	"errors"
	"fmt"
)

// ErrUnsupportedLanguage indicates the engine cannot translate into or out of a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrUnknownEngine indicates an engine name that maps to no engine.
var ErrUnknownEngine = errors.New("unknown translation engine")

// ErrEmptyTranslation indicates the engine answered without any text.
var ErrEmptyTranslation = errors.New("empty translation")

// HopError reports a failed leg of a pivot translation. The text returned
// alongside it is the best result obtained before the failure.
type HopError struct {
	From string
	To   string
	Err  error
}

func (e *HopError) Error() string {
	return fmt.Sprintf("translation hop %s->%s: %v", e.From, e.To, e.Err)
}

func (e *HopError) Unwrap() error { return e.Err }
