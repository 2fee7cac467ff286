// Package clip composes the pipeline stages behind one request-level API:
// acquisition, cutting, probing, transcription and translation. Every
// failure leaving this package is an *Error with a stable Code.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/format"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/tools"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// DefaultMaxFileSize is the download and local upload limit.
const DefaultMaxFileSize = 100 << 20

// Service runs pipeline operations against managed storage.
type Service struct {
	store      *storage.Manager
	acquirer   acquirer
	media      mediaEditor
	recognizer recognizer
	translator segmentTranslator

	maxFileSize   int64
	tools         []tools.Status
	downloadGrace time.Duration
	derivedGrace  time.Duration
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxFileSize sets the download size limit reported in errors.
func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithGrace overrides the deferred-deletion windows of downloads and of
// derived artifacts (cuts, normalized files, uploads).
func WithGrace(download, derived time.Duration) Option {
	return func(s *Service) {
		if download > 0 {
			s.downloadGrace = download
		}
		if derived > 0 {
			s.derivedGrace = derived
		}
	}
}

// WithTools records the resolved external tools for health reports.
func WithTools(ts []tools.Status) Option {
	return func(s *Service) { s.tools = ts }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(
	store *storage.Manager,
	acq acquirer,
	media mediaEditor,
	rec recognizer,
	tr segmentTranslator,
	opts ...Option,
) *Service {
	s := &Service{
		store:         store,
		acquirer:      acq,
		media:         media,
		recognizer:    rec,
		translator:    tr,
		maxFileSize:   DefaultMaxFileSize,
		downloadGrace: storage.GraceDownload,
		derivedGrace:  storage.GraceDerived,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Download
// ---------------------------------------------------------------------------

// DownloadRequest asks for a source to be acquired in a given format.
type DownloadRequest struct {
	VideoID string `json:"video_id" msgpack:"video_id"`
	Format  string `json:"format" msgpack:"format"`
}

// DownloadResult describes an acquired file.
type DownloadResult struct {
	Path     string   `json:"filepath" msgpack:"filepath"`
	Title    string   `json:"title" msgpack:"title"`
	Artist   string   `json:"artist" msgpack:"artist"`
	Duration *float64 `json:"duration" msgpack:"duration"`
	Format   string   `json:"format" msgpack:"format"`
	FileSize int64    `json:"file_size" msgpack:"file_size"`
}

// FormatInfo describes a download format.
type FormatInfo struct {
	Value       string `json:"value" msgpack:"value"`
	Name        string `json:"name" msgpack:"name"`
	Description string `json:"description" msgpack:"description"`
}

// Formats lists the supported download formats.
func Formats() []FormatInfo {
	return []FormatInfo{
		{Value: string(acquire.FormatMP3), Name: "MP3", Description: "Default format, good quality and small size"},
		{Value: string(acquire.FormatWAV), Name: "WAV", Description: "Lossless quality, larger file"},
	}
}

// Download acquires req.VideoID and schedules the file for deletion after
// the download grace window.
func (s *Service) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	fmtReq, err := acquire.ParseFormat(req.Format)
	if err != nil {
		return nil, newError(CodeInvalidRequest, fmt.Sprintf("unsupported format %q (use mp3 or wav)", req.Format), err)
	}

	s.logger.Info("download requested", "source", req.VideoID, "format", fmtReq)
	res, err := s.acquirer.Acquire(ctx, req.VideoID, fmtReq)
	if err != nil {
		s.logger.Warn("download failed", "source", req.VideoID, "error", err)
		return nil, s.downloadError(err)
	}

	s.store.ScheduleDelete(res.File, s.downloadGrace)
	return &DownloadResult{
		Path:     res.File.Path,
		Title:    res.Title,
		Artist:   res.Artist,
		Duration: res.Duration,
		Format:   string(res.Format),
		FileSize: res.Size,
	}, nil
}

func (s *Service) downloadError(err error) *Error {
	switch {
	case errors.Is(err, acquire.ErrInvalidSource):
		return newError(CodeInvalidRequest, "invalid video id", err)
	case errors.Is(err, storage.ErrTooLarge):
		return newError(CodeFileTooLarge, "file exceeds the "+format.Size(s.maxFileSize)+" limit", err)
	case errors.Is(err, acquire.ErrAuthRequired):
		return newError(CodeDownloadFailed, "source requires signing in", err)
	case errors.Is(err, acquire.ErrUnavailable):
		return newError(CodeDownloadFailed, "source is private or unavailable", err)
	case errors.Is(err, acquire.ErrAgeRestricted):
		return newError(CodeDownloadFailed, "source is age-restricted", err)
	case acquire.IsFatal(err) || acquire.IsTransient(err):
		return newError(CodeDownloadFailed, "audio download failed", err)
	default:
		return newError(CodeDownloadError, "internal download error", err)
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// SearchRequest is a free-text query. Limit zero means the default.
type SearchRequest struct {
	Query string `json:"query" msgpack:"query" query:"query"`
	Limit int    `json:"limit" msgpack:"limit" query:"limit"`
}

// SearchResult lists matches whose VideoID can be passed to Download.
type SearchResult struct {
	Results      []acquire.Hit `json:"results" msgpack:"results"`
	TotalResults int           `json:"total_results" msgpack:"total_results"`
}

// Search looks up sources matching req.Query.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	s.logger.Info("search requested", "query", req.Query, "limit", req.Limit)
	hits, err := s.acquirer.Search(ctx, req.Query, req.Limit)
	switch {
	case errors.Is(err, acquire.ErrInvalidQuery):
		return nil, newError(CodeInvalidRequest, fmt.Sprintf("query must not be empty and limit must be 1-%d", acquire.MaxSearchLimit), err)
	case err != nil:
		s.logger.Warn("search failed", "query", req.Query, "error", err)
		return nil, newError(CodeSearchFailed, "music search failed", err)
	}
	if hits == nil {
		hits = []acquire.Hit{}
	}
	return &SearchResult{Results: hits, TotalResults: len(hits)}, nil
}

// ---------------------------------------------------------------------------
// Cut, metadata and normalize
// ---------------------------------------------------------------------------

// CutRequest selects [Start, End) seconds of a managed file.
type CutRequest struct {
	Path  string  `json:"filepath" msgpack:"filepath"`
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
}

// CutResult describes a cut segment.
type CutResult struct {
	Path             string  `json:"filepath" msgpack:"filepath"`
	OriginalDuration float64 `json:"original_duration" msgpack:"original_duration"`
	CutDuration      float64 `json:"cut_duration" msgpack:"cut_duration"`
	Start            float64 `json:"start" msgpack:"start"`
	End              float64 `json:"end" msgpack:"end"`
	FileSize         int64   `json:"file_size" msgpack:"file_size"`
}

// Cut extracts a segment of a managed file. The range is checked before
// any process runs; the cut file is deleted after the derived grace window.
func (s *Service) Cut(ctx context.Context, req CutRequest) (*CutResult, error) {
	f, err := s.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	if req.Start >= req.End {
		return nil, newError(CodeInvalidTimeRange, "end must be greater than start", nil)
	}
	if req.Start < 0 {
		return nil, newError(CodeInvalidStartTime, "start must not be negative", nil)
	}

	check := s.media.ValidateRange(ctx, f, req.Start, req.End)
	if !check.Valid {
		switch check.Violation {
		case audio.ViolationUnreadable:
			return nil, newError(CodeCutFailed, "could not read audio metadata", audio.ErrMetadataFailed)
		case audio.ViolationNegativeStart:
			return nil, newError(CodeInvalidStartTime, check.Reason, audio.ErrInvalidRange)
		default:
			return nil, newError(CodeInvalidTimeRange, check.Reason, audio.ErrInvalidRange)
		}
	}

	s.logger.Info("cut requested", "path", f.Name(), "start", req.Start, "end", req.End)
	out, err := s.media.Cut(ctx, f, req.Start, req.End)
	if err != nil {
		return nil, newError(CodeCutFailed, "audio cut failed", err)
	}

	s.store.ScheduleDelete(out, s.derivedGrace)
	return &CutResult{
		Path:             out.Path,
		OriginalDuration: check.Duration,
		CutDuration:      req.End - req.Start,
		Start:            req.Start,
		End:              req.End,
		FileSize:         s.store.Size(out),
	}, nil
}

// Metadata reads the metadata of a managed file.
func (s *Service) Metadata(ctx context.Context, ref string) (*audio.MediaInfo, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, newError(CodeInvalidRequest, "filepath is required", nil)
	}
	f, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	info, err := s.media.Info(ctx, f)
	if err != nil {
		return nil, newError(CodeMetadataFailed, "could not read audio metadata", err)
	}
	return info, nil
}

// NormalizeResult describes a loudness-normalized copy.
type NormalizeResult struct {
	Path     string `json:"filepath" msgpack:"filepath"`
	FileSize int64  `json:"file_size" msgpack:"file_size"`
}

// Normalize writes a loudness-normalized copy of a managed file.
func (s *Service) Normalize(ctx context.Context, ref string) (*NormalizeResult, error) {
	f, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	out, err := s.media.Normalize(ctx, f)
	if err != nil {
		return nil, newError(CodeNormalizeFailed, "audio normalization failed", err)
	}
	s.store.ScheduleDelete(out, s.derivedGrace)
	return &NormalizeResult{Path: out.Path, FileSize: s.store.Size(out)}, nil
}

// ---------------------------------------------------------------------------
// Transcribe
// ---------------------------------------------------------------------------

// TranscribeRequest carries an uploaded file and engine selections.
// TargetLang empty means no translation.
type TranscribeRequest struct {
	Data              []byte
	Filename          string
	Engine            string
	TargetLang        string
	TranslationEngine string
}

// Transcribe stores the upload, transcribes it and optionally translates
// every segment. The upload is deleted immediately on failure and after
// the derived grace window on success.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*transcribe.Transcript, error) {
	engine, err := transcribe.ParseEngine(req.Engine)
	if err != nil {
		return nil, newError(CodeInvalidRequest, err.Error(), err)
	}

	target := strings.TrimSpace(req.TargetLang)
	var translator translate.EngineName
	if target != "" {
		if translator, err = translate.ParseEngine(req.TranslationEngine); err != nil {
			return nil, newError(CodeInvalidRequest, err.Error(), err)
		}
		if _, err := s.translator.Capabilities(translator); err != nil {
			return nil, newError(CodeInvalidRequest, err.Error(), err)
		}
	}

	limit, err := s.recognizer.MaxFileSize(engine)
	if err != nil {
		return nil, newError(CodeInvalidRequest, err.Error(), err)
	}
	if size := int64(len(req.Data)); size > limit {
		msg := fmt.Sprintf("file too large: %s (max %s for %s)", format.Size(size), format.Size(limit), engine)
		return nil, newError(CodeFileTooLarge, msg, transcribe.ErrFileTooLarge)
	}

	f, err := s.store.Persist(req.Data, req.Filename)
	if err != nil {
		return nil, newError(CodeTranscriptionFailed, "could not store upload", err)
	}
	if !transcribe.IsSupportedFormat(f.Path) {
		s.store.Delete(f)
		msg := fmt.Sprintf("unsupported audio format %q (supported: %s)",
			filepath.Ext(req.Filename), strings.Join(transcribe.SupportedFormats(), ", "))
		return nil, newError(CodeUnsupportedFormat, msg, transcribe.ErrUnsupportedFormat)
	}

	s.logger.Info("transcription requested", "engine", engine, "path", f.Name(), "target_lang", target)
	tr, err := s.recognizer.Transcribe(ctx, f, engine)
	if err != nil {
		s.store.Delete(f)
		return nil, newError(CodeTranscriptionFailed, "audio transcription failed", err)
	}

	if target != "" {
		segs, err := s.translator.TranslateSegments(ctx, tr.Segments, target, translator)
		if err != nil {
			s.store.Delete(f)
			return nil, newError(CodeTranscriptionFailed, "transcript translation failed", err)
		}
		out := *tr
		out.Segments = segs
		tr = &out
	}

	s.store.ScheduleDelete(f, s.derivedGrace)
	s.logger.Info("transcription complete", "segments", len(tr.Segments), "language", tr.Language)
	return tr, nil
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// Import copies an external file into managed storage so the pipeline can
// work on it. The copy gets the derived grace window.
func (s *Service) Import(path string) (storage.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.File{}, newError(CodeFileNotFound, "audio file not found", err)
		}
		return storage.File{}, newError(CodeInvalidRequest, "could not read file", err)
	}
	f, err := s.store.Persist(data, filepath.Base(path))
	if err != nil {
		return storage.File{}, newError(CodeInvalidRequest, "could not store file", err)
	}
	s.store.ScheduleDelete(f, s.derivedGrace)
	return f, nil
}

// Open resolves a client reference to a servable managed file.
func (s *Service) Open(ref string) (storage.File, error) {
	return s.resolve(ref)
}

// Delete removes a managed file right away, cancelling any deferred deletion.
func (s *Service) Delete(ref string) error {
	f, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if !s.store.Delete(f) {
		return newError(CodeFileNotFound, "audio file not found", storage.ErrNotFound)
	}
	s.logger.Info("file deleted", "path", f.Name())
	return nil
}

func (s *Service) resolve(ref string) (storage.File, error) {
	f, err := s.store.Resolve(ref)
	if err != nil {
		return storage.File{}, newError(CodeFileNotFound, "audio file not found", err)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Engines and languages
// ---------------------------------------------------------------------------

// Engines lists recognition and translation engines.
type Engines struct {
	Transcription []transcribe.EngineInfo `json:"engines" msgpack:"engines"`
	Default       transcribe.EngineName   `json:"default" msgpack:"default"`
	Translation   []translate.EngineName  `json:"translation_engines" msgpack:"translation_engines"`
}

// Engines reports the available engines.
func (s *Service) Engines() Engines {
	return Engines{
		Transcription: s.recognizer.Describe(),
		Default:       transcribe.EngineLocal,
		Translation:   s.translator.Engines(),
	}
}

// Languages returns the capabilities of a translation engine.
func (s *Service) Languages(engine string) (translate.Capabilities, error) {
	name, err := translate.ParseEngine(engine)
	if err != nil {
		return translate.Capabilities{}, newError(CodeInvalidRequest, err.Error(), err)
	}
	caps, err := s.translator.Capabilities(name)
	if err != nil {
		return translate.Capabilities{}, newError(CodeInvalidRequest, err.Error(), err)
	}
	return caps, nil
}

// Health summarizes service state.
type Health struct {
	Status           string                  `json:"status" msgpack:"status"`
	Engines          []transcribe.EngineName `json:"engines" msgpack:"engines"`
	RemoteConfigured bool                    `json:"openai_configured" msgpack:"openai_configured"`
	Tools            []tools.Status          `json:"tools,omitempty" msgpack:"tools,omitempty"`
	MaxFileSizeMB    int64                   `json:"max_file_size_mb" msgpack:"max_file_size_mb"`
	PendingDeletions int                     `json:"pending_deletions" msgpack:"pending_deletions"`
}

// Health reports engines, tool availability, the size limit and pending
// deferred deletions. Status is "degraded" when a recorded tool is missing.
func (s *Service) Health() Health {
	h := Health{
		Status:           "healthy",
		Tools:            s.tools,
		MaxFileSizeMB:    s.maxFileSize >> 20,
		PendingDeletions: s.store.Pending(),
	}
	for _, info := range s.recognizer.Describe() {
		h.Engines = append(h.Engines, info.Name)
		if info.Name == transcribe.EngineRemote {
			h.RemoteConfigured = true
		}
	}
	for _, t := range s.tools {
		if !t.Available {
			h.Status = "degraded"
		}
	}
	return h
}
