package transcribe

import "errors"

// ErrEngineNotConfigured indicates the requested engine lacks credentials or setup.
var ErrEngineNotConfigured = errors.New("transcription engine not configured")

// ErrInferenceFailed indicates speech recognition did not produce a transcript.
var ErrInferenceFailed = errors.New("transcription failed")

// ErrFileTooLarge indicates the audio exceeds the engine's size limit.
var ErrFileTooLarge = errors.New("file too large for engine")

// ErrUnsupportedFormat indicates the audio extension is not accepted.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrUnknownEngine indicates an engine name that maps to no engine.
var ErrUnknownEngine = errors.New("unknown transcription engine")

// ErrModelUnavailable indicates the local model could not be resolved or downloaded.
var ErrModelUnavailable = errors.New("speech model unavailable")
