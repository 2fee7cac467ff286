// Package acquire resolves a source identifier to a managed audio file.
// Extraction failures are classified as transient (one relaxed retry) or
// fatal, and the acquired container is reconciled with the requested format.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/alnah/go-clipscribe/internal/apierr"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// Format is a requested output container.
type Format string

// Supported output formats.
const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// Formats lists the supported output formats.
func Formats() []Format { return []Format{FormatMP3, FormatWAV} }

// ParseFormat validates a format name. Empty means mp3.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatMP3:
		return FormatMP3, nil
	case FormatWAV:
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: mp3, wav)", ErrUnsupportedFormat, s)
	}
}

// PrefixDownload is the owner prefix of acquired files.
const PrefixDownload = "download"

// Metadata fallbacks when the extractor reports nothing.
const (
	UnknownTitle  = "Unknown"
	UnknownArtist = "Unknown Artist"
)

// minSourceIDLength rejects obviously truncated identifiers.
const minSourceIDLength = 5

// candidateExts are the containers yt-dlp may produce for bestaudio.
var candidateExts = []string{"mp3", "m4a", "webm", "opus", "wav"}

// transformer is the subset of the audio engine acquisition needs.
type transformer interface {
	Convert(ctx context.Context, f storage.File, format string) (storage.File, error)
	Info(ctx context.Context, f storage.File) (*audio.MediaInfo, error)
}

var _ transformer = (*audio.Engine)(nil)

// Result is a successfully acquired file.
type Result struct {
	File     storage.File
	Title    string
	Artist   string
	Duration *float64 // nil when the file metadata was unreadable
	Format   Format
	Size     int64
}

// Service acquires audio into managed storage.
type Service struct {
	extractor  Extractor
	searcher   Searcher
	store      *storage.Manager
	audio      transformer
	maxSize    int64
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxSize rejects acquired files larger than n bytes. Zero disables the check.
func WithMaxSize(n int64) Option {
	return func(s *Service) { s.maxSize = n }
}

// WithRetryDelay sets the pause before the relaxed-certificate retry.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) { s.retryDelay = d }
}

// WithSearcher sets the search backend. By default the extractor is used
// when it can search.
func WithSearcher(sr Searcher) Option {
	return func(s *Service) { s.searcher = sr }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an acquisition Service.
func NewService(extractor Extractor, store *storage.Manager, transform transformer, opts ...Option) *Service {
	s := &Service{
		extractor:  extractor,
		store:      store,
		audio:      transform,
		retryDelay: time.Second,
		logger:     slog.Default(),
	}
	if sr, ok := extractor.(Searcher); ok {
		s.searcher = sr
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceURL turns a bare identifier into a watch URL. Full URLs pass through.
func SourceURL(id string) (string, error) {
	id = strings.TrimSpace(id)
	if len(id) < minSourceIDLength {
		return "", fmt.Errorf("%w: %q is too short", ErrInvalidSource, id)
	}
	if strings.ContainsFunc(id, unicode.IsSpace) {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidSource, id)
	}
	if strings.HasPrefix(id, "https://") || strings.HasPrefix(id, "http://") {
		return id, nil
	}
	return "https://www.youtube.com/watch?v=" + id, nil
}

// Acquire downloads id, converting to format when the extractor produced a
// different container. Every file it created is removed before an error
// is returned.
func (s *Service) Acquire(ctx context.Context, id string, format Format) (*Result, error) {
	url, err := SourceURL(id)
	if err != nil {
		return nil, err
	}

	expected := s.store.Allocate(PrefixDownload, string(format))
	base := strings.TrimSuffix(expected.Path, filepath.Ext(expected.Path))
	insecure := false

	ext, err := apierr.RetryWithBackoff(ctx,
		apierr.RetryConfig{
			MaxRetries: 1,
			BaseDelay:  s.retryDelay,
			MaxDelay:   s.retryDelay,
			OnRetry: func(_ int, err error) {
				insecure = true
				s.logger.Warn("certificate problem, retrying with relaxed validation", "source", id, "error", err)
			},
		},
		func() (Extraction, error) {
			got, err := s.extractor.Extract(ctx, ExtractRequest{
				URL:            url,
				OutputTemplate: base + ".%(ext)s",
				InsecureTLS:    insecure,
			})
			if err != nil {
				return Extraction{}, classify(err)
			}
			return got, nil
		},
		IsTransient,
	)
	if err != nil {
		s.removeArtifacts(base)
		s.store.Delete(expected)
		return nil, fmt.Errorf("acquire %s: %w", id, err)
	}

	f, err := s.locate(base, ext)
	if err != nil {
		s.removeArtifacts(base)
		s.store.Delete(expected)
		return nil, fmt.Errorf("acquire %s: %w", id, err)
	}
	if f.Path != expected.Path {
		s.store.Delete(expected)
	}

	f = s.reconcile(ctx, f, format)

	size := s.store.Size(f)
	if s.maxSize > 0 && size > s.maxSize {
		s.store.Delete(f)
		return nil, fmt.Errorf("acquire %s: %w: %d bytes exceeds limit of %d bytes", id, storage.ErrTooLarge, size, s.maxSize)
	}

	result := &Result{
		File:   f,
		Title:  orDefault(ext.Title, UnknownTitle),
		Artist: orDefault(ext.Uploader, UnknownArtist),
		Format: format,
		Size:   size,
	}
	if info, err := s.audio.Info(ctx, f); err == nil {
		result.Duration = &info.Duration
	} else {
		s.logger.Warn("downloaded file metadata unreadable", "path", f.Name(), "error", err)
	}

	s.logger.Info("download complete", "source", id, "path", f.Name(), "bytes", size)
	return result, nil
}

// locate finds the file the extractor wrote, preferring the path it reported.
func (s *Service) locate(base string, ext Extraction) (storage.File, error) {
	var candidates []string
	if ext.Path != "" {
		candidates = append(candidates, ext.Path)
	}
	for _, e := range candidateExts {
		candidates = append(candidates, base+"."+e)
	}

	for _, c := range candidates {
		if f, err := s.store.Resolve(c); err == nil {
			s.store.Activate(f)
			return f, nil
		}
	}
	return storage.File{}, fmt.Errorf("%w: downloaded file not found", ErrDownloadFailed)
}

// reconcile converts f to format. A failed conversion keeps the original;
// the original is only removed once a distinct converted file exists.
func (s *Service) reconcile(ctx context.Context, f storage.File, format Format) storage.File {
	if f.Ext() == string(format) {
		return f
	}

	converted, err := s.audio.Convert(ctx, f, string(format))
	if err != nil {
		s.logger.Warn("format conversion failed, keeping original", "path", f.Name(), "want", format, "error", err)
		return f
	}
	if converted.Path != f.Path {
		s.store.Delete(f)
	}
	return converted
}

// removeArtifacts deletes anything the extractor left next to base,
// including .part fragments.
func (s *Service) removeArtifacts(base string) {
	matches, err := filepath.Glob(globEscape(base) + ".*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			s.store.Delete(storage.File{Path: m})
		}
	}
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
