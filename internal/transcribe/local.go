package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alnah/go-clipscribe/internal/lang"
	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/registry"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// DefaultLocalMaxFileSize matches the default upload limit.
const DefaultLocalMaxFileSize int64 = 100 << 20

const defaultInferenceTimeout = 10 * time.Minute

// commandRunner executes external commands. *proc.Runner implements it.
type commandRunner interface {
	Run(ctx context.Context, cmd proc.Command) (proc.Result, error)
}

// speechPreparer converts audio into what whisper.cpp expects (16 kHz mono WAV).
type speechPreparer interface {
	PrepareSpeech(ctx context.Context, f storage.File) (storage.File, error)
}

var (
	_ Engine        = (*LocalEngine)(nil)
	_ commandRunner = (*proc.Runner)(nil)
)

// LocalEngine runs whisper.cpp's CLI against a lazily loaded ggml model.
type LocalEngine struct {
	runner      commandRunner
	prep        speechPreparer
	store       *storage.Manager
	models      *registry.Cache[Model]
	whisperPath string
	model       string
	maxSize     int64
	timeout     time.Duration
	logger      *slog.Logger
}

// LocalOption configures a LocalEngine.
type LocalOption func(*LocalEngine)

// WithWhisperPath sets the whisper-cli binary.
func WithWhisperPath(path string) LocalOption {
	return func(e *LocalEngine) { e.whisperPath = path }
}

// WithModelName sets the ggml model name (base, small, large-v3...).
func WithModelName(name string) LocalOption {
	return func(e *LocalEngine) {
		if name != "" {
			e.model = name
		}
	}
}

// WithLocalMaxFileSize sets the upload limit reported by MaxFileSize.
func WithLocalMaxFileSize(n int64) LocalOption {
	return func(e *LocalEngine) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// WithInferenceTimeout bounds one whisper-cli run.
func WithInferenceTimeout(d time.Duration) LocalOption {
	return func(e *LocalEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLocalLogger sets the logger.
func WithLocalLogger(l *slog.Logger) LocalOption {
	return func(e *LocalEngine) { e.logger = l }
}

// NewLocalEngine creates a LocalEngine. models is shared process-wide so
// that the first transcription loads the model once for every caller.
func NewLocalEngine(runner commandRunner, prep speechPreparer, store *storage.Manager, models *registry.Cache[Model], opts ...LocalOption) *LocalEngine {
	e := &LocalEngine{
		runner:      runner,
		prep:        prep,
		store:       store,
		models:      models,
		whisperPath: "whisper-cli",
		model:       DefaultModel,
		maxSize:     DefaultLocalMaxFileSize,
		timeout:     defaultInferenceTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Engine.
func (e *LocalEngine) Name() EngineName { return EngineLocal }

// MaxFileSize implements Engine.
func (e *LocalEngine) MaxFileSize() int64 { return e.maxSize }

// ModelState reports whether the configured model is loaded.
func (e *LocalEngine) ModelState() registry.State { return e.models.State(e.model) }

// Transcribe prepares f as 16 kHz WAV and runs whisper.cpp over it.
func (e *LocalEngine) Transcribe(ctx context.Context, f storage.File) (*Transcript, error) {
	model, err := e.models.GetOrLoad(ctx, e.model)
	if err != nil {
		return nil, err
	}

	wav, err := e.prep.PrepareSpeech(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("prepare audio: %w", err)
	}
	defer e.store.Delete(wav)

	base := strings.TrimSuffix(wav.Path, ".wav")
	out := storage.File{Path: base + ".json", Owner: wav.Owner, Created: wav.Created}
	defer e.store.Delete(out)

	e.logger.Debug("running whisper", "model", model.Name, "input", wav.Name())
	_, err = e.runner.Run(ctx, proc.Command{
		Path:    e.whisperPath,
		Args:    []string{"-m", model.Path, "-f", wav.Path, "-oj", "-of", base, "-l", "auto", "-np"},
		Timeout: e.timeout,
	})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(out.Path) // #nosec G304 -- path inside managed storage
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWhisperJSON(data)
}

// whisperOutput is the subset of whisper.cpp's -oj output we read.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON converts whisper.cpp output (millisecond offsets) to a Transcript.
func parseWhisperJSON(data []byte) (*Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		segments = append(segments, Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  s.Text,
		})
	}

	language := lang.Fallback
	if out.Result.Language != "" {
		language = lang.Normalize(out.Result.Language)
	}
	return NewTranscript(language, segments), nil
}
