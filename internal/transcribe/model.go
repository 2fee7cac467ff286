package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultModel is the whisper.cpp model used when none is configured.
const DefaultModel = "base"

// DefaultModelURL is where missing ggml models are fetched from.
const DefaultModelURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// modelName restricts model names to what upstream publishes (base, small.en, large-v3...).
var modelName = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]*$`)

// Model is a resolved ggml model file.
type Model struct {
	Name string
	Path string
}

// httpDoer abstracts HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// worker runs blocking work on the shared pool. *proc.Runner implements it.
type worker interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ModelLoader finds ggml models on disk and downloads missing ones.
// Its Load method is the registry loader for local speech models.
type ModelLoader struct {
	dir     string
	baseURL string
	client  httpDoer
	pool    worker
	logger  *slog.Logger
}

// ModelLoaderOption configures a ModelLoader.
type ModelLoaderOption func(*ModelLoader)

// WithModelURL sets the base URL models are downloaded from.
func WithModelURL(u string) ModelLoaderOption {
	return func(l *ModelLoader) { l.baseURL = u }
}

// WithModelHTTPClient sets the HTTP client used for downloads.
func WithModelHTTPClient(c httpDoer) ModelLoaderOption {
	return func(l *ModelLoader) { l.client = c }
}

// WithModelLogger sets the logger.
func WithModelLogger(lg *slog.Logger) ModelLoaderOption {
	return func(l *ModelLoader) { l.logger = lg }
}

// NewModelLoader creates a loader storing models in dir. Downloads run on pool.
func NewModelLoader(dir string, pool worker, opts ...ModelLoaderOption) *ModelLoader {
	l := &ModelLoader{
		dir:     dir,
		baseURL: DefaultModelURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
		pool:    pool,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns where the named model lives on disk.
func (l *ModelLoader) Path(name string) string {
	return filepath.Join(l.dir, "ggml-"+name+".bin")
}

// Load returns the named model, downloading it first if missing.
func (l *ModelLoader) Load(ctx context.Context, name string) (Model, error) {
	if !modelName.MatchString(name) {
		return Model{}, fmt.Errorf("invalid model name %q: %w", name, ErrModelUnavailable)
	}

	path := l.Path(name)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return Model{Name: name, Path: path}, nil
	}

	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return Model{}, fmt.Errorf("create model dir: %w", err)
	}

	l.logger.Info("downloading speech model", "model", name, "dest", path)
	start := time.Now()
	err := l.pool.Do(ctx, func(ctx context.Context) error {
		return l.download(ctx, l.baseURL+filepath.Base(path), path)
	})
	if err != nil {
		return Model{}, fmt.Errorf("download %s: %w: %w", name, ErrModelUnavailable, err)
	}
	l.logger.Info("speech model ready", "model", name, "elapsed", time.Since(start))

	return Model{Name: name, Path: path}, nil
}

// download writes url to a temporary file and renames it into place, so an
// interrupted transfer never leaves a truncated model behind.
func (l *ModelLoader) download(ctx context.Context, url, dest string) error {
	tmpPath := dest + ".tmp"
	defer func() { _ = os.Remove(tmpPath) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	file, err := os.Create(tmpPath) // #nosec G304 -- path built from validated model name
	if err != nil {
		return err
	}
	n, err := io.Copy(file, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("empty response body")
	}

	return os.Rename(tmpPath, dest)
}
