package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/api"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/tools"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// mockPipeline records requests and returns canned results or errors.
type mockPipeline struct {
	mu sync.Mutex

	err        error
	file       storage.File
	lastCut    clip.CutRequest
	lastDL     clip.DownloadRequest
	lastSearch clip.SearchRequest
	lastUpload clip.TranscribeRequest
	deleted    []string
}

func (m *mockPipeline) Search(_ context.Context, req clip.SearchRequest) (*clip.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSearch = req
	if m.err != nil {
		return nil, m.err
	}
	return &clip.SearchResult{
		Results:      []acquire.Hit{{VideoID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Artist: "Rick Astley"}},
		TotalResults: 1,
	}, nil
}

func (m *mockPipeline) Download(_ context.Context, req clip.DownloadRequest) (*clip.DownloadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDL = req
	if m.err != nil {
		return nil, m.err
	}
	return &clip.DownloadResult{Path: "/tmp/clipscribe/download_x.mp3", Title: "Song", Artist: "Band", Format: "mp3", FileSize: 42}, nil
}

func (m *mockPipeline) Cut(_ context.Context, req clip.CutRequest) (*clip.CutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCut = req
	if m.err != nil {
		return nil, m.err
	}
	return &clip.CutResult{
		Path:             "/tmp/clipscribe/cut_x.mp3",
		OriginalDuration: 120,
		CutDuration:      req.End - req.Start,
		Start:            req.Start,
		End:              req.End,
		FileSize:         1000,
	}, nil
}

func (m *mockPipeline) Metadata(_ context.Context, ref string) (*audio.MediaInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &audio.MediaInfo{Duration: 120, Codec: "mp3", SampleRate: 44100, Channels: 2}, nil
}

func (m *mockPipeline) Transcribe(_ context.Context, req clip.TranscribeRequest) (*transcribe.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpload = req
	if m.err != nil {
		return nil, m.err
	}
	segs := []transcribe.Segment{{Start: 0, End: 1.5, Text: "Hello", Language: "en", Translation: "Olá"}}
	return transcribe.NewTranscript("en", segs), nil
}

func (m *mockPipeline) Engines() clip.Engines {
	return clip.Engines{
		Transcription: []transcribe.EngineInfo{{Name: transcribe.EngineLocal, Title: "Whisper Local", MaxFileSize: 100 << 20}},
		Default:       transcribe.EngineLocal,
		Translation:   []translate.EngineName{translate.EngineDictionary, translate.EnginePivot},
	}
}

func (m *mockPipeline) Languages(engine string) (translate.Capabilities, error) {
	if m.err != nil {
		return translate.Capabilities{}, m.err
	}
	return translate.Capabilities{Engine: translate.EnginePivot, Languages: []string{"en", "pt"}, Names: map[string]string{"en": "English", "pt": "Portuguese"}}, nil
}

func (m *mockPipeline) Health() clip.Health {
	return clip.Health{
		Status:        "healthy",
		Engines:       []transcribe.EngineName{transcribe.EngineLocal},
		Tools:         []tools.Status{{Name: "ffmpeg", Path: "/usr/bin/ffmpeg", Available: true}},
		MaxFileSizeMB: 100,
	}
}

func (m *mockPipeline) Open(ref string) (storage.File, error) {
	if m.err != nil {
		return storage.File{}, m.err
	}
	return m.file, nil
}

func (m *mockPipeline) Delete(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, ref)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code" msgpack:"code"`
		Message string `json:"message" msgpack:"message"`
		Details string `json:"details" msgpack:"details"`
	} `json:"error" msgpack:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{}, api.WithRateLimit(5))
	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","engines":["local"],"openai_configured":false,`+
		`"tools":[{"name":"ffmpeg","path":"/usr/bin/ffmpeg","available":true}],`+
		`"max_file_size_mb":100,"pending_deletions":0,"rate_limit_rps":5}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSearch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  *http.Request
		want clip.SearchRequest
	}{
		{
			name: "GET query string",
			req:  httptest.NewRequest(http.MethodGet, "/search?query=rick+astley&limit=10", nil),
			want: clip.SearchRequest{Query: "rick astley", Limit: 10},
		},
		{
			name: "GET without limit",
			req:  httptest.NewRequest(http.MethodGet, "/search?query=bones", nil),
			want: clip.SearchRequest{Query: "bones"},
		},
		{
			name: "POST body",
			req:  jsonRequest(http.MethodPost, "/search", `{"query":"Imagine Dragons Bones"}`),
			want: clip.SearchRequest{Query: "Imagine Dragons Bones"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := &mockPipeline{}
			rec := do(t, api.New(m).Handler(), tt.req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"results":[{"video_id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up",`+
				`"artist":"Rick Astley"}],"total_results":1}`, rec.Body.String())
			assert.Equal(t, tt.want, m.lastSearch)
		})
	}
}

func TestSearch_Errors(t *testing.T) {
	t.Parallel()

	t.Run("non-numeric limit", func(t *testing.T) {
		t.Parallel()

		rec := do(t, api.New(&mockPipeline{}).Handler(), httptest.NewRequest(http.MethodGet, "/search?query=x&limit=many", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decodeError(t, rec).Error.Code)
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()

		m := &mockPipeline{err: &clip.Error{Code: clip.CodeSearchFailed, Message: "music search failed"}}
		rec := do(t, api.New(m).Handler(), httptest.NewRequest(http.MethodGet, "/search?query=x", nil))
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "search_failed", decodeError(t, rec).Error.Code)
	})
}

func TestDownload(t *testing.T) {
	t.Parallel()

	m := &mockPipeline{}
	srv := api.New(m)
	rec := do(t, srv.Handler(), jsonRequest(http.MethodPost, "/download", `{"video_id":"dQw4w9WgXcQ","format":"wav"}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, clip.DownloadRequest{VideoID: "dQw4w9WgXcQ", Format: "wav"}, m.lastDL)

	var res clip.DownloadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Song", res.Title)
	assert.Equal(t, int64(42), res.FileSize)
}

func TestDownload_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})
	rec := do(t, srv.Handler(), jsonRequest(http.MethodPost, "/download", `{"video_id":`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error.Code)
}

func TestFormats(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})
	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/download/formats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":"mp3"`)
	assert.Contains(t, rec.Body.String(), `"value":"wav"`)
}

func TestCut(t *testing.T) {
	t.Parallel()

	m := &mockPipeline{}
	srv := api.New(m)
	rec := do(t, srv.Handler(), jsonRequest(http.MethodPost, "/cut", `{"filepath":"download_x.mp3","start":30,"end":60}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, clip.CutRequest{Path: "download_x.mp3", Start: 30, End: 60}, m.lastCut)

	var res clip.CutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.InDelta(t, 30, res.CutDuration, 1e-9)
	assert.InDelta(t, 120, res.OriginalDuration, 1e-9)
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})
	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/cut/metadata?filepath=a.mp3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sample_rate":44100`)
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	m := &mockPipeline{}
	srv := api.New(m)
	req := uploadRequest(t, "/transcribe?engine=remote&target_lang=pt&translation_engine=dictionary", "memo.m4a", []byte("audio"))
	rec := do(t, srv.Handler(), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "memo.m4a", m.lastUpload.Filename)
	assert.Equal(t, []byte("audio"), m.lastUpload.Data)
	assert.Equal(t, "remote", m.lastUpload.Engine)
	assert.Equal(t, "pt", m.lastUpload.TargetLang)
	assert.Equal(t, "dictionary", m.lastUpload.TranslationEngine)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Hello", body["full_text"])
	assert.Equal(t, "en", body["language"])
}

func TestTranscribe_MissingFile(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})
	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/transcribe", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error.Code)
}

func TestEnginesAndLanguages(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})

	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/transcribe/engines", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"default":"local"`)
	assert.Contains(t, rec.Body.String(), `"value":"local"`)

	rec = do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/translate/languages?engine=pivot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pt":"Portuguese"`)
}

func TestFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cut_x.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3-audio"), 0o600))

	m := &mockPipeline{file: storage.File{Path: path}}
	srv := api.New(m)

	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/files?filepath=cut_x.mp3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID3-audio", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cut_x.mp3")

	rec = do(t, srv.Handler(), httptest.NewRequest(http.MethodDelete, "/files?filepath=cut_x.mp3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cut_x.mp3"}, m.deleted)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", &clip.Error{Code: clip.CodeFileNotFound, Message: "audio file not found"}, http.StatusNotFound, "file_not_found"},
		{"time range", &clip.Error{Code: clip.CodeInvalidTimeRange, Message: "end must be greater than start"}, http.StatusBadRequest, "invalid_time_range"},
		{"start time", &clip.Error{Code: clip.CodeInvalidStartTime}, http.StatusBadRequest, "invalid_start_time"},
		{"too large", &clip.Error{Code: clip.CodeFileTooLarge}, http.StatusRequestEntityTooLarge, "file_too_large"},
		{"unsupported", &clip.Error{Code: clip.CodeUnsupportedFormat}, http.StatusUnsupportedMediaType, "unsupported_format"},
		{"download failed", &clip.Error{Code: clip.CodeDownloadFailed}, http.StatusBadGateway, "download_failed"},
		{"search failed", &clip.Error{Code: clip.CodeSearchFailed}, http.StatusBadGateway, "search_failed"},
		{"download error", &clip.Error{Code: clip.CodeDownloadError}, http.StatusInternalServerError, "download_error"},
		{"cut failed", &clip.Error{Code: clip.CodeCutFailed}, http.StatusInternalServerError, "cut_failed"},
		{
			"engine not configured",
			&clip.Error{Code: clip.CodeTranscriptionFailed, Err: fmt.Errorf("remote: %w", transcribe.ErrEngineNotConfigured)},
			http.StatusServiceUnavailable, "transcription_failed",
		},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := api.New(&mockPipeline{err: tt.err})
			rec := do(t, srv.Handler(), jsonRequest(http.MethodPost, "/cut", `{"filepath":"a.mp3","start":1,"end":2}`))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestErrorDetails_OnlyInDebug(t *testing.T) {
	t.Parallel()

	cause := &clip.Error{Code: clip.CodeCutFailed, Message: "audio cut failed", Err: fmt.Errorf("ffmpeg: exit status 1")}

	rec := do(t, api.New(&mockPipeline{err: cause}).Handler(), jsonRequest(http.MethodPost, "/cut", `{}`))
	body := decodeError(t, rec)
	assert.Equal(t, "audio cut failed", body.Error.Message)
	assert.Empty(t, body.Error.Details)

	rec = do(t, api.New(&mockPipeline{err: cause}, api.WithDebug(true)).Handler(), jsonRequest(http.MethodPost, "/cut", `{}`))
	assert.Equal(t, "ffmpeg: exit status 1", decodeError(t, rec).Error.Details)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	rec := do(t, api.New(&mockPipeline{}).Handler(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)
}

// ---------------------------------------------------------------------------
// Negotiation and middleware
// ---------------------------------------------------------------------------

func TestMsgpackNegotiation(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})
	req := jsonRequest(http.MethodPost, "/cut", `{"filepath":"a.mp3","start":30,"end":60}`)
	req.Header.Set("Accept", api.MIMEMsgpack)
	rec := do(t, srv.Handler(), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.MIMEMsgpack, rec.Header().Get("Content-Type"))

	var res clip.CutResult
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &res))
	assert.InDelta(t, 30, res.CutDuration, 1e-9)
}

func TestMsgpackErrors(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{err: &clip.Error{Code: clip.CodeFileNotFound, Message: "audio file not found"}})
	req := httptest.NewRequest(http.MethodGet, "/cut/metadata?filepath=x", nil)
	req.Header.Set("Accept", "application/x-msgpack")
	rec := do(t, srv.Handler(), req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "file_not_found", body.Error.Code)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{}, api.WithRateLimit(1))
	h := srv.Handler()

	first := do(t, h, httptest.NewRequest(http.MethodGet, "/download/formats", nil))
	second := do(t, h, httptest.NewRequest(http.MethodGet, "/download/formats", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate_limited", decodeError(t, second).Error.Code)

	// Health checks bypass the limiter.
	for range 3 {
		assert.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{}, api.WithBodyLimitMB(1))
	req := uploadRequest(t, "/transcribe", "big.mp3", make([]byte, 3<<20))
	rec := do(t, srv.Handler(), req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "file_too_large", decodeError(t, rec).Error.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{}, api.WithCORSOrigins([]string{"https://app.example"}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := do(t, srv.Handler(), req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	srv := api.New(&mockPipeline{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	cancel()
	require.NoError(t, <-done)
}
