package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-clipscribe/internal/apierr"
	"github.com/alnah/go-clipscribe/internal/lang"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// RemoteMaxFileSize is the upload limit of the OpenAI speech API.
const RemoteMaxFileSize int64 = 25 << 20

// Default retry configuration.
const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// audioTranscriber is an internal interface for OpenAI audio transcription.
// *openai.Client implements this implicitly.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Engine           = (*RemoteEngine)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// RemoteEngine transcribes audio with OpenAI's whisper-1 model.
// It retries rate limits, timeouts and server errors with exponential backoff.
type RemoteEngine struct {
	client     audioTranscriber
	store      *storage.Manager
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger
}

// RemoteOption configures a RemoteEngine.
type RemoteOption func(*RemoteEngine)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) RemoteOption {
	return func(e *RemoteEngine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) RemoteOption {
	return func(e *RemoteEngine) {
		if base > 0 {
			e.baseDelay = base
		}
		if max > 0 {
			e.maxDelay = max
		}
	}
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(e *RemoteEngine) { e.logger = l }
}

// NewRemoteEngine creates a RemoteEngine. An empty apiKey yields an engine
// that fails every call with ErrEngineNotConfigured.
func NewRemoteEngine(apiKey string, store *storage.Manager, opts ...RemoteOption) *RemoteEngine {
	var client audioTranscriber
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return newRemoteEngine(client, store, opts...)
}

func newRemoteEngine(client audioTranscriber, store *storage.Manager, opts ...RemoteOption) *RemoteEngine {
	e := &RemoteEngine{
		client:     client,
		store:      store,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Engine.
func (e *RemoteEngine) Name() EngineName { return EngineRemote }

// MaxFileSize implements Engine.
func (e *RemoteEngine) MaxFileSize() int64 { return RemoteMaxFileSize }

// Configured reports whether an API key was supplied.
func (e *RemoteEngine) Configured() bool { return e.client != nil }

// Transcribe sends f to the speech API and returns its segments.
func (e *RemoteEngine) Transcribe(ctx context.Context, f storage.File) (*Transcript, error) {
	if !e.Configured() {
		return nil, fmt.Errorf("OPENAI_API_KEY not set: %w", ErrEngineNotConfigured)
	}
	if size := e.store.Size(f); size > RemoteMaxFileSize {
		return nil, fmt.Errorf("%.1fMB (max %dMB): %w",
			float64(size)/(1<<20), RemoteMaxFileSize>>20, ErrFileTooLarge)
	}

	req := openai.AudioRequest{
		Model:                  openai.Whisper1,
		FilePath:               f.Path,
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularitySegment},
	}

	cfg := apierr.RetryConfig{
		MaxRetries: e.maxRetries,
		BaseDelay:  e.baseDelay,
		MaxDelay:   e.maxDelay,
		OnRetry: func(attempt int, err error) {
			e.logger.Warn("retrying speech API", "attempt", attempt, "error", err)
		},
	}

	resp, err := apierr.RetryWithBackoff(ctx, cfg, func() (openai.AudioResponse, error) {
		resp, err := e.client.CreateTranscription(ctx, req)
		if err != nil {
			return openai.AudioResponse{}, classifyError(err)
		}
		return resp, nil
	}, isRetryableError)
	if err != nil {
		return nil, err
	}

	language := lang.Fallback
	if code, ok := lang.CodeForName(resp.Language); ok {
		language = code
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	t := NewTranscript(language, segments)
	if len(t.Segments) == 0 {
		t.Text = strings.TrimSpace(resp.Text)
	}
	return t, nil
}

// classifyError maps OpenAI API errors to sentinel errors.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// Quota exhaustion needs user action; plain rate limits clear on their own.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusRequestEntityTooLarge:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrServerError)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}

// isRetryableError determines if an error is transient and should be retried.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return apierr.Retryable(err)
}
