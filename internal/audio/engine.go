// Package audio wraps ffprobe and ffmpeg: media info, range validation,
// stream-copy cuts, container conversion and loudness normalization.
// Every output is a managed file; failed or empty outputs are deleted
// before the error is returned.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// Owner prefixes for derived artifacts.
const (
	PrefixCut        = "cut"
	PrefixConverted  = "converted"
	PrefixNormalized = "normalized"
	PrefixSpeech     = "speech"
)

// Default invocation timeouts.
const (
	defaultInfoTimeout  = 30 * time.Second
	defaultCutTimeout    = 120 * time.Second
	defaultEncodeTimeout = 180 * time.Second
)

// codecs maps a target container to its ffmpeg encoder and bitrate.
var codecs = map[string]struct {
	encoder string
	bitrate string
}{
	"mp3":  {"libmp3lame", "192k"},
	"wav":  {"pcm_s16le", ""},
	"m4a":  {"aac", "192k"},
	"aac":  {"aac", "192k"},
	"ogg":  {"libvorbis", "192k"},
	"opus": {"libopus", "128k"},
	"flac": {"flac", ""},
}

// Engine runs audio transforms through ffmpeg and ffprobe.
type Engine struct {
	runner  commandRunner
	store   *storage.Manager
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger

	infoTimeout  time.Duration
	cutTimeout    time.Duration
	encodeTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithFFmpegPath sets the ffmpeg binary.
func WithFFmpegPath(path string) Option {
	return func(e *Engine) { e.ffmpeg = path }
}

// WithFFprobePath sets the ffprobe binary.
func WithFFprobePath(path string) Option {
	return func(e *Engine) { e.ffprobe = path }
}

// WithTimeouts overrides the metadata, cut and encode timeouts. Zero keeps the default.
func WithTimeouts(info, cut, encode time.Duration) Option {
	return func(e *Engine) {
		if info > 0 {
			e.infoTimeout = info
		}
		if cut > 0 {
			e.cutTimeout = cut
		}
		if encode > 0 {
			e.encodeTimeout = encode
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine writing its outputs into store.
func NewEngine(runner commandRunner, store *storage.Manager, opts ...Option) *Engine {
	e := &Engine{
		runner:        runner,
		store:         store,
		ffmpeg:        "ffmpeg",
		ffprobe:       "ffprobe",
		logger:        slog.Default(),
		infoTimeout:  defaultInfoTimeout,
		cutTimeout:    defaultCutTimeout,
		encodeTimeout: defaultEncodeTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cut stream-copies [start, end) of f into a new file with the same
// container. Negative timestamps at the boundary are shifted to zero.
func (e *Engine) Cut(ctx context.Context, f storage.File, start, end float64) (storage.File, error) {
	if start < 0 || end <= start {
		return storage.File{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidRange, seconds(start), seconds(end))
	}

	out := e.store.Allocate(PrefixCut, f.Ext())
	args := []string{
		"-hide_banner", "-nostdin",
		"-i", f.Path,
		"-ss", seconds(start),
		"-t", seconds(end - start),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", out.Path,
	}
	return e.transform(ctx, "cut", out, args, e.cutTimeout)
}

// Convert re-encodes f into format with the codec registered for it.
func (e *Engine) Convert(ctx context.Context, f storage.File, format string) (storage.File, error) {
	codec, ok := codecs[format]
	if !ok {
		return storage.File{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	out := e.store.Allocate(PrefixConverted, format)
	args := []string{"-hide_banner", "-nostdin", "-i", f.Path, "-vn", "-c:a", codec.encoder}
	if codec.bitrate != "" {
		args = append(args, "-b:a", codec.bitrate)
	}
	args = append(args, "-y", out.Path)
	return e.transform(ctx, "convert", out, args, e.encodeTimeout)
}

// Normalize applies EBU R128 loudness normalization.
func (e *Engine) Normalize(ctx context.Context, f storage.File) (storage.File, error) {
	out := e.store.Allocate(PrefixNormalized, f.Ext())
	args := []string{
		"-hide_banner", "-nostdin",
		"-i", f.Path,
		"-filter:a", "loudnorm",
		"-y", out.Path,
	}
	return e.transform(ctx, "normalize", out, args, e.encodeTimeout)
}

// PrepareSpeech resamples f to 16 kHz mono PCM WAV, the input format of
// the local recognizer.
func (e *Engine) PrepareSpeech(ctx context.Context, f storage.File) (storage.File, error) {
	out := e.store.Allocate(PrefixSpeech, "wav")
	args := []string{
		"-hide_banner", "-nostdin",
		"-i", f.Path,
		"-vn", "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		"-y", out.Path,
	}
	return e.transform(ctx, "prepare speech", out, args, e.encodeTimeout)
}

// transform runs ffmpeg and only returns out when it holds data.
func (e *Engine) transform(ctx context.Context, op string, out storage.File, args []string, timeout time.Duration) (storage.File, error) {
	_, err := e.runner.Run(ctx, proc.Command{Path: e.ffmpeg, Args: args, Timeout: timeout})
	if err != nil {
		e.store.Delete(out)
		return storage.File{}, fmt.Errorf("%w: %s: %w", ErrTransformFailed, op, err)
	}

	if e.store.Size(out) == 0 {
		e.store.Delete(out)
		return storage.File{}, fmt.Errorf("%w: %s", ErrEmptyOutput, op)
	}

	e.store.Activate(out)
	e.logger.Debug("audio transform done", "op", op, "output", out.Name())
	return out, nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
