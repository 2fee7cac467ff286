package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alnah/go-clipscribe/internal/apierr"
	"github.com/alnah/go-clipscribe/internal/lang"
)

const (
	// DefaultDictionaryURL is the public Google Translate endpoint used by
	// the gtx web client.
	DefaultDictionaryURL = "https://translate.googleapis.com/translate_a/single"

	defaultDictMaxRetries  = 3
	defaultDictBaseDelay   = 500 * time.Millisecond
	defaultDictMaxDelay    = 10 * time.Second
	defaultDictHTTPTimeout = 30 * time.Second

	maxResponseSize = 1 << 20
)

// wireCodes maps normalized codes to the codes the endpoint expects.
var wireCodes = map[string]string{
	"zh": "zh-CN",
}

var _ Engine = (*DictionaryEngine)(nil)

// DictionaryEngine translates directly from source to target with one HTTP
// round trip per call.
type DictionaryEngine struct {
	baseURL    string
	httpClient httpDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger
}

// DictionaryOption configures a DictionaryEngine.
type DictionaryOption func(*DictionaryEngine)

// WithDictionaryURL overrides the endpoint.
func WithDictionaryURL(u string) DictionaryOption {
	return func(e *DictionaryEngine) { e.baseURL = u }
}

// WithDictionaryHTTPClient sets the HTTP client.
func WithDictionaryHTTPClient(c httpDoer) DictionaryOption {
	return func(e *DictionaryEngine) { e.httpClient = c }
}

// WithDictionaryRetries sets the retry count and backoff delays.
func WithDictionaryRetries(n int, base, max time.Duration) DictionaryOption {
	return func(e *DictionaryEngine) {
		if n >= 0 {
			e.maxRetries = n
		}
		if base > 0 {
			e.baseDelay = base
		}
		if max > 0 {
			e.maxDelay = max
		}
	}
}

// WithDictionaryLogger sets the logger.
func WithDictionaryLogger(l *slog.Logger) DictionaryOption {
	return func(e *DictionaryEngine) { e.logger = l }
}

// NewDictionaryEngine creates a DictionaryEngine.
func NewDictionaryEngine(opts ...DictionaryOption) *DictionaryEngine {
	e := &DictionaryEngine{
		baseURL:    DefaultDictionaryURL,
		httpClient: &http.Client{Timeout: defaultDictHTTPTimeout},
		maxRetries: defaultDictMaxRetries,
		baseDelay:  defaultDictBaseDelay,
		maxDelay:   defaultDictMaxDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capabilities implements Engine.
func (e *DictionaryEngine) Capabilities() Capabilities {
	codes := lang.Codes()
	return Capabilities{
		Engine:     EngineDictionary,
		Title:      "Google Translate",
		Languages:  codes,
		Names:      lang.Names(codes),
		AutoDetect: true,
	}
}

// Translate sends text to the endpoint. Unknown sources are sent as "auto";
// an unknown target returns the original text with ErrUnsupportedLanguage.
// Any failure returns the original text alongside the error.
func (e *DictionaryEngine) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	src, tgt = lang.Normalize(src), lang.Normalize(tgt)
	if src == tgt {
		return text, nil
	}
	if !lang.Known(tgt) {
		return text, fmt.Errorf("target %q: %w", tgt, ErrUnsupportedLanguage)
	}

	sl := "auto"
	if lang.Known(src) {
		sl = wireCode(src)
	}

	cfg := apierr.RetryConfig{
		MaxRetries: e.maxRetries,
		BaseDelay:  e.baseDelay,
		MaxDelay:   e.maxDelay,
		OnRetry: func(attempt int, err error) {
			e.logger.Debug("retrying dictionary request", "attempt", attempt, "error", err)
		},
	}
	out, err := apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		return e.call(ctx, text, sl, wireCode(tgt))
	}, apierr.Retryable)
	if err != nil {
		return text, err
	}
	if strings.TrimSpace(out) == "" {
		return text, ErrEmptyTranslation
	}
	return out, nil
}

func wireCode(code string) string {
	if w, ok := wireCodes[code]; ok {
		return w
	}
	return code
}

// call performs one request and returns the concatenated translated sentences.
func (e *DictionaryEngine) call(ctx context.Context, text, sl, tl string) (_ string, err error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", sl)
	q.Set("tl", tl)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%v: %w", err, apierr.ErrTimeout)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode)
	}
	return parseDictionaryResponse(body)
}

// classifyStatus maps HTTP failures to sentinel errors.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("HTTP %d: %w", code, apierr.ErrRateLimit)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return fmt.Errorf("HTTP %d: %w", code, apierr.ErrTimeout)
	case code >= 500:
		return fmt.Errorf("HTTP %d: %w", code, apierr.ErrServerError)
	default:
		return fmt.Errorf("HTTP %d: %w", code, apierr.ErrBadRequest)
	}
}

// parseDictionaryResponse reads the nested-array payload:
// [[["translated","original",...], ...], null, "detected", ...].
func parseDictionaryResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(payload) == 0 {
		return "", ErrEmptyTranslation
	}

	var sentences [][]any
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", fmt.Errorf("failed to parse sentences: %w", err)
	}

	var b strings.Builder
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		if part, ok := s[0].(string); ok {
			b.WriteString(part)
		}
	}
	return b.String(), nil
}
