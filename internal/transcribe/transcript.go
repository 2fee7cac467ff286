// Package transcribe turns audio files into timestamped transcripts using a
// local whisper.cpp engine or the OpenAI speech API, with a one-way fallback
// from local to remote.
package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alnah/go-clipscribe/internal/storage"
)

// Segment is one timed span of recognized speech.
type Segment struct {
	Start       float64 `json:"start" msgpack:"start"`
	End         float64 `json:"end" msgpack:"end"`
	Text        string  `json:"text" msgpack:"text"`
	Language    string  `json:"language,omitempty" msgpack:"language,omitempty"`
	Translation string  `json:"translation,omitempty" msgpack:"translation,omitempty"`
}

// Transcript is the ordered result of recognition.
type Transcript struct {
	Language string    `json:"language" msgpack:"language"`
	Segments []Segment `json:"segments" msgpack:"segments"`
	Text     string    `json:"full_text" msgpack:"full_text"`
}

// NewTranscript orders segments by start time, drops blank ones, trims text
// and joins it into the full text.
func NewTranscript(language string, segments []Segment) *Transcript {
	kept := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		kept = append(kept, s)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	texts := make([]string, len(kept))
	for i, s := range kept {
		texts[i] = s.Text
	}
	return &Transcript{
		Language: language,
		Segments: kept,
		Text:     strings.Join(texts, " "),
	}
}

// EngineName selects a recognition engine.
type EngineName string

// Engine names.
const (
	EngineLocal  EngineName = "local"
	EngineRemote EngineName = "remote"
)

// ParseEngine maps user input to an EngineName. Empty selects local;
// "openai" is accepted for remote.
func ParseEngine(s string) (EngineName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local", "whisper":
		return EngineLocal, nil
	case "remote", "openai":
		return EngineRemote, nil
	default:
		return "", fmt.Errorf("%q (use local or remote): %w", s, ErrUnknownEngine)
	}
}

// Engine recognizes speech in one audio file.
type Engine interface {
	Name() EngineName
	MaxFileSize() int64
	Transcribe(ctx context.Context, f storage.File) (*Transcript, error)
}

// supportedFormats lists accepted upload extensions.
var supportedFormats = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

// IsSupportedFormat reports whether path has an accepted audio extension.
func IsSupportedFormat(path string) bool {
	return supportedFormats[strings.ToLower(filepath.Ext(path))]
}

// SupportedFormats returns the accepted extensions in sorted order.
func SupportedFormats() []string {
	out := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
