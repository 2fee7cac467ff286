package clip_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/apierr"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/tools"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// ---------------------------------------------------------------------------
// TestService_Cut
// ---------------------------------------------------------------------------

func TestService_Cut_Success(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	src := fx.upload(t, "song.mp3")

	res, err := fx.svc.Cut(context.Background(), clip.CutRequest{Path: src.Path, Start: 30, End: 60})
	if err != nil {
		t.Fatalf("Cut() unexpected error: %v", err)
	}
	if res.CutDuration != 30 {
		t.Errorf("CutDuration = %v, want 30", res.CutDuration)
	}
	if res.OriginalDuration != 120 {
		t.Errorf("OriginalDuration = %v, want 120", res.OriginalDuration)
	}
	if res.Start != 30 || res.End != 60 {
		t.Errorf("range = [%v, %v), want [30, 60)", res.Start, res.End)
	}
	if res.FileSize == 0 {
		t.Error("FileSize = 0, want size of cut file")
	}
	if !strings.HasSuffix(res.Path, ".mp3") {
		t.Errorf("Path = %q, want .mp3 extension", res.Path)
	}

	out, err := fx.store.Resolve(res.Path)
	if err != nil {
		t.Fatalf("Resolve(cut) error = %v", err)
	}
	if got := fx.store.State(out); got != storage.StateScheduled {
		t.Errorf("cut file state = %s, want scheduled", got)
	}
}

func TestService_Cut_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end float64
		infoErr   error
		ffmpegErr  error
		wantCode   clip.Code
		wantMsg    string
		wantFFmpeg int
	}{
		{name: "end before start", start: 60, end: 30, wantCode: clip.CodeInvalidTimeRange, wantMsg: "end must be greater than start"},
		{name: "empty range", start: 10, end: 10, wantCode: clip.CodeInvalidTimeRange},
		{name: "negative start", start: -5, end: 10, wantCode: clip.CodeInvalidStartTime},
		{name: "start past duration", start: 125, end: 130, wantCode: clip.CodeInvalidTimeRange, wantMsg: "exceeds audio duration"},
		{name: "end past duration", start: 100, end: 130, wantCode: clip.CodeInvalidTimeRange, wantMsg: "exceeds audio duration"},
		{name: "unreadable", start: 0, end: 10, infoErr: errors.New("exit 1"), wantCode: clip.CodeCutFailed},
		{name: "ffmpeg fails", start: 0, end: 10, ffmpegErr: proc.ErrCommandFailed, wantCode: clip.CodeCutFailed, wantFFmpeg: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			fx.runner.infoErr = tt.infoErr
			fx.runner.ffmpegErr = tt.ffmpegErr
			src := fx.upload(t, "song.mp3")

			_, err := fx.svc.Cut(context.Background(), clip.CutRequest{Path: src.Path, Start: tt.start, End: tt.end})
			ce := assertCode(t, err, tt.wantCode)
			if tt.wantMsg != "" && !strings.Contains(ce.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", ce.Message, tt.wantMsg)
			}
			if n := fx.runner.ffmpegCalls(); n != tt.wantFFmpeg {
				t.Errorf("ffmpeg calls = %d, want %d", n, tt.wantFFmpeg)
			}
			if files := fx.files(t); len(files) != 1 {
				t.Errorf("storage holds %v, want only the source", files)
			}
		})
	}
}

func TestService_Cut_FileNotFound(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	refs := []string{"missing.mp3", "../../etc/passwd", ""}
	for _, ref := range refs {
		_, err := fx.svc.Cut(context.Background(), clip.CutRequest{Path: ref, Start: 0, End: 1})
		assertCode(t, err, clip.CodeFileNotFound)
	}

	// Existence is checked before the range.
	_, err := fx.svc.Cut(context.Background(), clip.CutRequest{Path: "missing.mp3", Start: 60, End: 30})
	assertCode(t, err, clip.CodeFileNotFound)
}

// ---------------------------------------------------------------------------
// TestService_Metadata / Normalize
// ---------------------------------------------------------------------------

func TestService_Metadata(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	src := fx.upload(t, "song.mp3")

	info, err := fx.svc.Metadata(context.Background(), src.Name())
	if err != nil {
		t.Fatalf("Metadata() unexpected error: %v", err)
	}
	if info.Duration != 120 || info.Codec != "mp3" || info.SampleRate != 44100 || info.Channels != 2 {
		t.Errorf("Metadata() = %+v", info)
	}

	_, err = fx.svc.Metadata(context.Background(), " ")
	assertCode(t, err, clip.CodeInvalidRequest)

	_, err = fx.svc.Metadata(context.Background(), "nope.mp3")
	assertCode(t, err, clip.CodeFileNotFound)

	fx.runner.infoErr = errors.New("exit 1")
	_, err = fx.svc.Metadata(context.Background(), src.Name())
	assertCode(t, err, clip.CodeMetadataFailed)
}

func TestService_Normalize(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	src := fx.upload(t, "song.wav")

	res, err := fx.svc.Normalize(context.Background(), src.Path)
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	if !strings.HasSuffix(res.Path, ".wav") || res.FileSize == 0 {
		t.Errorf("Normalize() = %+v", res)
	}

	fx.runner.ffmpegErr = proc.ErrTimeout
	_, err = fx.svc.Normalize(context.Background(), src.Path)
	assertCode(t, err, clip.CodeNormalizeFailed)
}

// ---------------------------------------------------------------------------
// TestService_Download
// ---------------------------------------------------------------------------

func TestService_Download_Success(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	res, err := fx.svc.Download(context.Background(), clip.DownloadRequest{VideoID: "dQw4w9WgXcQ", Format: "WAV"})
	if err != nil {
		t.Fatalf("Download() unexpected error: %v", err)
	}
	if res.Format != "wav" || res.Title != "Song" || res.Artist != "Band" {
		t.Errorf("Download() = %+v", res)
	}
	if res.Duration == nil || *res.Duration != 212.5 {
		t.Errorf("Duration = %v, want 212.5", res.Duration)
	}
	if fx.store.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", fx.store.Pending())
	}
}

func TestService_Download_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		format    string
		err       error
		wantCode  clip.Code
		wantCalls int
	}{
		{name: "bad format", format: "flac", wantCode: clip.CodeInvalidRequest},
		{name: "bad id", format: "mp3", err: fmt.Errorf("%w: too short", acquire.ErrInvalidSource), wantCode: clip.CodeInvalidRequest, wantCalls: 1},
		{name: "too large", err: fmt.Errorf("acquire x: %w", storage.ErrTooLarge), wantCode: clip.CodeFileTooLarge, wantCalls: 1},
		{name: "private", err: fmt.Errorf("acquire x: %w", acquire.ErrUnavailable), wantCode: clip.CodeDownloadFailed, wantCalls: 1},
		{name: "login", err: acquire.ErrAuthRequired, wantCode: clip.CodeDownloadFailed, wantCalls: 1},
		{name: "certificate", err: acquire.ErrCertificate, wantCode: clip.CodeDownloadFailed, wantCalls: 1},
		{name: "unexpected", err: errors.New("disk on fire"), wantCode: clip.CodeDownloadError, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			fx.acquirer.err = tt.err

			_, err := fx.svc.Download(context.Background(), clip.DownloadRequest{VideoID: "dQw4w9WgXcQ", Format: tt.format})
			ce := assertCode(t, err, tt.wantCode)
			if tt.err != nil && !errors.Is(ce, tt.err) {
				t.Errorf("error does not wrap cause %v", tt.err)
			}
			if fx.acquirer.calls != tt.wantCalls {
				t.Errorf("Acquire calls = %d, want %d", fx.acquirer.calls, tt.wantCalls)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestService_Transcribe
// ---------------------------------------------------------------------------

func TestService_Transcribe_WithTranslation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	tr, err := fx.svc.Transcribe(context.Background(), clip.TranscribeRequest{
		Data:       []byte("fake-mp3"),
		Filename:   "Voice Memo.MP3",
		TargetLang: "pt",
	})
	if err != nil {
		t.Fatalf("Transcribe() unexpected error: %v", err)
	}
	if tr.Text != "Hello world" || tr.Language != "en" {
		t.Errorf("Transcript = %+v", tr)
	}
	if len(tr.Segments) != 2 || tr.Segments[0].Translation != "pt:Hello" {
		t.Errorf("Segments = %+v", tr.Segments)
	}

	if len(fx.recognizer.seen) != 1 {
		t.Fatalf("recognizer calls = %d, want 1", len(fx.recognizer.seen))
	}
	upload := fx.recognizer.seen[0]
	if upload.Owner != storage.PrefixUpload || upload.Ext() != "mp3" {
		t.Errorf("upload = %+v, want upload_*.mp3", upload)
	}
	if got := fx.store.State(upload); got != storage.StateScheduled {
		t.Errorf("upload state = %s, want scheduled", got)
	}
}

func TestService_Transcribe_NoTarget(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"", "  "} {
		fx := newFixture(t)
		fx.translator.err = errors.New("must not be called")

		tr, err := fx.svc.Transcribe(context.Background(), clip.TranscribeRequest{
			Data: []byte("x"), Filename: "a.wav", TargetLang: target, TranslationEngine: "bogus",
		})
		if err != nil {
			t.Fatalf("Transcribe(target %q) unexpected error: %v", target, err)
		}
		if tr.Segments[0].Translation != "" {
			t.Errorf("Transcribe(target %q) Translation = %q, want empty", target, tr.Segments[0].Translation)
		}
	}
}

func TestService_Transcribe_Errors(t *testing.T) {
	t.Parallel()

	inference := fmt.Errorf("%w: %w", transcribe.ErrInferenceFailed, apierr.ErrTimeout)

	tests := []struct {
		name          string
		req           clip.TranscribeRequest
		recognizerErr error
		translatorErr error
		wantCode      clip.Code
		wantIs        error
		wantCalls     int
	}{
		{
			name:     "unknown engine",
			req:      clip.TranscribeRequest{Data: []byte("x"), Filename: "a.mp3", Engine: "vosk"},
			wantCode: clip.CodeInvalidRequest,
			wantIs:   transcribe.ErrUnknownEngine,
		},
		{
			name:     "unknown translation engine",
			req:      clip.TranscribeRequest{Data: []byte("x"), Filename: "a.mp3", TargetLang: "pt", TranslationEngine: "dictionary"},
			wantCode: clip.CodeInvalidRequest,
			wantIs:   translate.ErrUnknownEngine,
		},
		{
			name:     "too large",
			req:      clip.TranscribeRequest{Data: make([]byte, 2<<20), Filename: "a.mp3", Engine: "openai"},
			wantCode: clip.CodeFileTooLarge,
			wantIs:   transcribe.ErrFileTooLarge,
		},
		{
			name:     "unsupported extension",
			req:      clip.TranscribeRequest{Data: []byte("x"), Filename: "notes.txt"},
			wantCode: clip.CodeUnsupportedFormat,
			wantIs:   transcribe.ErrUnsupportedFormat,
		},
		{
			name:          "inference fails",
			req:           clip.TranscribeRequest{Data: []byte("x"), Filename: "a.flac"},
			recognizerErr: inference,
			wantCode:      clip.CodeTranscriptionFailed,
			wantIs:        transcribe.ErrInferenceFailed,
			wantCalls:     1,
		},
		{
			name:          "translation cancelled",
			req:           clip.TranscribeRequest{Data: []byte("x"), Filename: "a.ogg", TargetLang: "fr"},
			translatorErr: context.Canceled,
			wantCode:      clip.CodeTranscriptionFailed,
			wantIs:        context.Canceled,
			wantCalls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			fx.recognizer.err = tt.recognizerErr
			fx.translator.err = tt.translatorErr

			_, err := fx.svc.Transcribe(context.Background(), tt.req)
			assertCode(t, err, tt.wantCode)
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want it to wrap %v", err, tt.wantIs)
			}
			if n := len(fx.recognizer.seen); n != tt.wantCalls {
				t.Errorf("recognizer calls = %d, want %d", n, tt.wantCalls)
			}
			if files := fx.files(t); len(files) != 0 {
				t.Errorf("storage holds %v after failure, want empty", files)
			}
		})
	}
}

func TestService_Transcribe_TooLargeMessage(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, err := fx.svc.Transcribe(context.Background(), clip.TranscribeRequest{
		Data:     make([]byte, 3<<20),
		Filename: "a.mp3",
		Engine:   "remote",
	})
	ce := assertCode(t, err, clip.CodeFileTooLarge)
	if want := "file too large: 3 MB (max 1 MB for remote)"; ce.Message != want {
		t.Errorf("Message = %q, want %q", ce.Message, want)
	}
}

// ---------------------------------------------------------------------------
// TestService_Files
// ---------------------------------------------------------------------------

func TestService_Delete(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	f := fx.upload(t, "a.mp3")
	fx.store.ScheduleDelete(f, storage.GraceDerived)

	if err := fx.svc.Delete(f.Path); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if fx.store.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after explicit delete", fx.store.Pending())
	}
	assertCode(t, fx.svc.Delete(f.Path), clip.CodeFileNotFound)

	if _, err := fx.svc.Open(f.Path); clip.CodeOf(err) != clip.CodeFileNotFound {
		t.Errorf("Open(deleted) error = %v, want file_not_found", err)
	}
}

func TestService_Import(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	src := fx.upload(t, "outside.m4a")

	f, err := fx.svc.Import(src.Path)
	if err != nil {
		t.Fatalf("Import() unexpected error: %v", err)
	}
	if f.Path == src.Path || f.Ext() != "m4a" {
		t.Errorf("Import() = %+v, want a new .m4a handle", f)
	}

	_, err = fx.svc.Import("/does/not/exist.mp3")
	assertCode(t, err, clip.CodeFileNotFound)
}

// ---------------------------------------------------------------------------
// TestService_Listings
// ---------------------------------------------------------------------------

func TestService_Listings(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	eng := fx.svc.Engines()
	if eng.Default != transcribe.EngineLocal || len(eng.Transcription) != 1 {
		t.Errorf("Engines() = %+v", eng)
	}
	if !slices.Equal(eng.Translation, []translate.EngineName{translate.EnginePivot}) {
		t.Errorf("Translation = %v", eng.Translation)
	}

	caps, err := fx.svc.Languages("ai_model")
	if err != nil || caps.Engine != translate.EnginePivot {
		t.Errorf("Languages(ai_model) = (%+v, %v)", caps, err)
	}
	_, err = fx.svc.Languages("deepl")
	assertCode(t, err, clip.CodeInvalidRequest)
	_, err = fx.svc.Languages("dictionary")
	assertCode(t, err, clip.CodeInvalidRequest)

	h := fx.svc.Health()
	if h.Status != "healthy" || !slices.Equal(h.Engines, []transcribe.EngineName{transcribe.EngineLocal}) {
		t.Errorf("Health() = %+v", h)
	}

	formats := clip.Formats()
	if len(formats) != 2 || formats[0].Value != "mp3" || formats[1].Value != "wav" {
		t.Errorf("Formats() = %+v", formats)
	}
}

func TestService_Search(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.acquirer.hits = []acquire.Hit{
		{VideoID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Artist: "Rick Astley"},
		{VideoID: "abcdefghijk", Title: "Bones", Artist: acquire.UnknownArtist},
	}

	res, err := fx.svc.Search(context.Background(), clip.SearchRequest{Query: "rick", Limit: 2})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if res.TotalResults != 2 || res.Results[0].VideoID != "dQw4w9WgXcQ" {
		t.Errorf("Search() = %+v", res)
	}

	fx.acquirer.hits = nil
	res, err = fx.svc.Search(context.Background(), clip.SearchRequest{Query: "nothing"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if res.Results == nil || res.TotalResults != 0 {
		t.Errorf("Search() with no hits = %+v, want empty non-nil results", res)
	}
}

func TestService_Search_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode clip.Code
	}{
		{name: "invalid query", err: fmt.Errorf("%w: query is empty", acquire.ErrInvalidQuery), wantCode: clip.CodeInvalidRequest},
		{name: "backend failure", err: fmt.Errorf("%w: exit status 1", acquire.ErrSearchFailed), wantCode: clip.CodeSearchFailed},
		{name: "search unavailable", err: acquire.ErrSearchUnavailable, wantCode: clip.CodeSearchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			fx.acquirer.searchErr = tt.err

			_, err := fx.svc.Search(context.Background(), clip.SearchRequest{Query: "x"})
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestService_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tools      []tools.Status
		wantStatus string
	}{
		{name: "no tools recorded", wantStatus: "healthy"},
		{
			name:       "all tools found",
			tools:      []tools.Status{{Name: "ffmpeg", Path: "/usr/bin/ffmpeg", Available: true}},
			wantStatus: "healthy",
		},
		{
			name: "missing optional tool",
			tools: []tools.Status{
				{Name: "ffmpeg", Path: "/usr/bin/ffmpeg", Available: true},
				{Name: "yt-dlp"},
			},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := storage.NewManager(t.TempDir())
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}
			t.Cleanup(store.Close)
			svc := clip.NewService(store, &fakeAcquirer{store: store}, nil,
				&fakeRecognizer{limit: 1 << 20}, &fakeTranslator{},
				clip.WithTools(tt.tools), clip.WithMaxFileSize(50<<20))

			h := svc.Health()
			if h.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", h.Status, tt.wantStatus)
			}
			if h.MaxFileSizeMB != 50 {
				t.Errorf("MaxFileSizeMB = %d, want 50", h.MaxFileSizeMB)
			}
			if h.RemoteConfigured {
				t.Error("RemoteConfigured = true with a local-only recognizer")
			}
			if len(h.Tools) != len(tt.tools) {
				t.Errorf("Tools = %+v, want %+v", h.Tools, tt.tools)
			}
		})
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &clip.Error{Code: clip.CodeCutFailed, Message: "audio cut failed", Err: cause}
	if got, want := err.Error(), "cut_failed: audio cut failed: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("Error should unwrap to its cause")
	}
	if clip.CodeOf(fmt.Errorf("wrapped: %w", err)) != clip.CodeCutFailed {
		t.Error("CodeOf should see through wrapping")
	}
	if clip.CodeOf(cause) != "" {
		t.Error("CodeOf(plain error) should be empty")
	}
}
