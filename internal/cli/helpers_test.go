package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/config"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	cfg config.Config
	err error

	mu    sync.Mutex
	paths []string
}

func (m *mockConfigLoader) Load(path string) (config.Config, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	return m.cfg, m.err
}

// ---------------------------------------------------------------------------
// Mock pipeline
// ---------------------------------------------------------------------------

// mockService imports into a real store and records every request.
type mockService struct {
	store *storage.Manager
	err   error

	mu          sync.Mutex
	downloads   []clip.DownloadRequest
	searches    []clip.SearchRequest
	cuts        []clip.CutRequest
	metadata    []string
	normalized  []string
	transcribed []clip.TranscribeRequest
	deleted     []string
	languages   []string
}

func (m *mockService) Download(_ context.Context, req clip.DownloadRequest) (*clip.DownloadResult, error) {
	m.mu.Lock()
	m.downloads = append(m.downloads, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	d := 212.5
	return &clip.DownloadResult{
		Path: "/tmp/clipscribe/download_x.mp3", Title: "Never Gonna Give You Up", Artist: "Rick Astley",
		Duration: &d, Format: req.Format, FileSize: 3 << 20,
	}, nil
}

func (m *mockService) Search(_ context.Context, req clip.SearchRequest) (*clip.SearchResult, error) {
	m.mu.Lock()
	m.searches = append(m.searches, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	d := 213.0
	hits := []acquire.Hit{
		{VideoID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Artist: "Rick Astley", Duration: &d},
		{VideoID: "yPYZpwSpKmA", Title: "Together Forever", Artist: acquire.UnknownArtist},
	}
	return &clip.SearchResult{Results: hits, TotalResults: len(hits)}, nil
}

func (m *mockService) Import(path string) (storage.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storage.File{}, err
	}
	return m.store.Persist(data, path)
}

func (m *mockService) Cut(_ context.Context, req clip.CutRequest) (*clip.CutResult, error) {
	m.mu.Lock()
	m.cuts = append(m.cuts, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &clip.CutResult{
		Path: "/tmp/clipscribe/cut_x.mp3", OriginalDuration: 120, CutDuration: req.End - req.Start,
		Start: req.Start, End: req.End, FileSize: 2048,
	}, nil
}

func (m *mockService) Metadata(_ context.Context, ref string) (*audio.MediaInfo, error) {
	m.mu.Lock()
	m.metadata = append(m.metadata, ref)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &audio.MediaInfo{Duration: 125, Codec: "mp3", Format: "mp3", SampleRate: 44100, Channels: 2, Bitrate: 192000, Size: 3 << 20}, nil
}

func (m *mockService) Normalize(_ context.Context, ref string) (*clip.NormalizeResult, error) {
	m.mu.Lock()
	m.normalized = append(m.normalized, ref)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &clip.NormalizeResult{Path: "/tmp/clipscribe/normalized_x.mp3", FileSize: 4096}, nil
}

func (m *mockService) Transcribe(_ context.Context, req clip.TranscribeRequest) (*transcribe.Transcript, error) {
	m.mu.Lock()
	m.transcribed = append(m.transcribed, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	segs := []transcribe.Segment{
		{Start: 0, End: 2, Text: "Hello", Language: "en"},
		{Start: 65, End: 67, Text: "Goodbye", Language: "en"},
	}
	if req.TargetLang != "" {
		segs[0].Translation = "Olá"
		segs[1].Translation = "Adeus"
	}
	return transcribe.NewTranscript("en", segs), nil
}

func (m *mockService) Engines() clip.Engines {
	return clip.Engines{
		Transcription: []transcribe.EngineInfo{
			{Name: transcribe.EngineLocal, Title: "Whisper Local", Description: "whisper.cpp on this machine", MaxFileSize: 100 << 20},
			{Name: transcribe.EngineRemote, Title: "OpenAI Whisper", Description: "OpenAI audio API", MaxFileSize: 25 << 20},
		},
		Default:     transcribe.EngineLocal,
		Translation: []translate.EngineName{translate.EngineDictionary, translate.EnginePivot},
	}
}

func (m *mockService) Languages(engine string) (translate.Capabilities, error) {
	m.mu.Lock()
	m.languages = append(m.languages, engine)
	m.mu.Unlock()
	if m.err != nil {
		return translate.Capabilities{}, m.err
	}
	return translate.Capabilities{
		Engine:    translate.EngineName(engine),
		Languages: []string{"de", "pt"},
		Names:     map[string]string{"de": "German", "pt": "Portuguese"},
	}, nil
}

func (m *mockService) Health() clip.Health { return clip.Health{Status: "healthy"} }

func (m *mockService) Open(ref string) (storage.File, error) { return m.store.Resolve(ref) }

func (m *mockService) Delete(ref string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, ref)
	m.mu.Unlock()
	f, err := m.store.Resolve(ref)
	if err != nil {
		return err
	}
	m.store.Delete(f)
	return nil
}

var _ clipService = (*mockService)(nil)

// ---------------------------------------------------------------------------
// Mock AppFactory
// ---------------------------------------------------------------------------

type mockAppFactory struct {
	svc *mockService
	err error

	mu    sync.Mutex
	calls int
	cfgs  []config.Config
}

func (m *mockAppFactory) NewApp(_ context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	m.mu.Lock()
	m.calls++
	m.cfgs = append(m.cfgs, cfg)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &App{Config: cfg, Store: m.svc.store, Service: m.svc, Logger: logger}, nil
}

func (m *mockAppFactory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

type testMocks struct {
	stdout  *syncBuffer
	stderr  *syncBuffer
	loader  *mockConfigLoader
	factory *mockAppFactory
	service *mockService
}

// testEnv creates an Env whose storage directory is a fresh temp dir.
func testEnv(t *testing.T) (*Env, *testMocks) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.TempDir = t.TempDir()
	cfg.Transcribe.OpenAIAPIKey = "sk-test-secret"

	store, err := storage.NewManager(cfg.Storage.TempDir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(store.Close)

	svc := &mockService{store: store}
	mocks := &testMocks{
		stdout:  &syncBuffer{},
		stderr:  &syncBuffer{},
		loader:  &mockConfigLoader{cfg: cfg},
		factory: &mockAppFactory{svc: svc},
		service: svc,
	}

	env := &Env{
		Stdout:       mocks.stdout,
		Stderr:       mocks.stderr,
		Getenv:       func(string) string { return "" },
		ConfigLoader: mocks.loader,
		AppFactory:   mocks.factory,
	}
	return env, mocks
}

// execute runs the command tree with args.
func execute(t *testing.T, env *Env, args ...string) error {
	t.Helper()
	return executeContext(context.Background(), env, args...)
}

func executeContext(ctx context.Context, env *Env, args ...string) error {
	root := RootCmd(env, "test")
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(ctx)
}
