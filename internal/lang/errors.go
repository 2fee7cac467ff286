package lang

import "errors"

// ErrUndetermined indicates the detector could not settle on a language.
var ErrUndetermined = errors.New("language undetermined")
