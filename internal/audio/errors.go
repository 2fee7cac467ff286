package audio

import "errors"

// ErrMetadataFailed indicates ffprobe could not read or parse media info.
var ErrMetadataFailed = errors.New("metadata read failed")

// ErrTransformFailed indicates an ffmpeg invocation failed or timed out.
var ErrTransformFailed = errors.New("audio transform failed")

// ErrEmptyOutput indicates ffmpeg reported success but wrote nothing usable.
var ErrEmptyOutput = errors.New("transform produced no output")

// ErrUnsupportedFormat indicates a conversion target with no known codec.
var ErrUnsupportedFormat = errors.New("unsupported target format")

// ErrInvalidRange indicates a cut whose end does not follow its start.
var ErrInvalidRange = errors.New("invalid time range")
