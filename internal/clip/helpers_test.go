package clip_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// mediaRunner stands in for ffprobe and ffmpeg behind a real audio.Engine.
type mediaRunner struct {
	mu        sync.Mutex
	calls     []proc.Command
	infoJSON string
	infoErr  error
	ffmpegErr error
}

func (r *mediaRunner) Run(_ context.Context, cmd proc.Command) (proc.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	if cmd.Path == "ffprobe" {
		return proc.Result{Stdout: []byte(r.infoJSON)}, r.infoErr
	}
	if r.ffmpegErr != nil {
		return proc.Result{}, r.ffmpegErr
	}
	_ = os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("ID3-cut-audio"), 0o600)
	return proc.Result{}, nil
}

func (r *mediaRunner) ffmpegCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Path == "ffmpeg" {
			n++
		}
	}
	return n
}

// infoJSON builds ffprobe output for a file of the given duration.
func infoJSON(duration string) string {
	return `{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"44100","channels":2}],` +
		`"format":{"format_name":"mp3","duration":"` + duration + `","size":"1920000","bit_rate":"128000"}}`
}

// fakeAcquirer writes a download into the store or fails with err.
type fakeAcquirer struct {
	store *storage.Manager
	err   error
	calls int

	hits      []acquire.Hit
	searchErr error
	queries   []string
}

func (a *fakeAcquirer) Search(_ context.Context, query string, _ int) ([]acquire.Hit, error) {
	a.queries = append(a.queries, query)
	if a.searchErr != nil {
		return nil, a.searchErr
	}
	return a.hits, nil
}

func (a *fakeAcquirer) Acquire(_ context.Context, _ string, format acquire.Format) (*acquire.Result, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	f, err := a.store.Persist([]byte("downloaded-audio"), "track."+string(format))
	if err != nil {
		return nil, err
	}
	d := 212.5
	return &acquire.Result{
		File:     f,
		Title:    "Song",
		Artist:   "Band",
		Duration: &d,
		Format:   format,
		Size:     a.store.Size(f),
	}, nil
}

// fakeRecognizer returns a canned transcript.
type fakeRecognizer struct {
	mu       sync.Mutex
	err      error
	limit    int64
	seen     []storage.File
	language string
}

func (r *fakeRecognizer) Transcribe(_ context.Context, f storage.File, _ transcribe.EngineName) (*transcribe.Transcript, error) {
	r.mu.Lock()
	r.seen = append(r.seen, f)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return transcribe.NewTranscript(r.language, []transcribe.Segment{
		{Start: 0, End: 2, Text: "Hello"},
		{Start: 2, End: 4, Text: "world"},
	}), nil
}

func (r *fakeRecognizer) MaxFileSize(name transcribe.EngineName) (int64, error) {
	switch name {
	case transcribe.EngineLocal, transcribe.EngineRemote:
		return r.limit, nil
	}
	return 0, transcribe.ErrUnknownEngine
}

func (r *fakeRecognizer) Describe() []transcribe.EngineInfo {
	return []transcribe.EngineInfo{{Name: transcribe.EngineLocal, Title: "Whisper Local", MaxFileSize: r.limit}}
}

// fakeTranslator tags each segment with the target language.
type fakeTranslator struct {
	err error
}

func (t *fakeTranslator) TranslateSegments(_ context.Context, segs []transcribe.Segment, target string, _ translate.EngineName) ([]transcribe.Segment, error) {
	if t.err != nil {
		return nil, t.err
	}
	out := make([]transcribe.Segment, len(segs))
	for i, s := range segs {
		s.Language = "en"
		s.Translation = target + ":" + s.Text
		out[i] = s
	}
	return out, nil
}

func (t *fakeTranslator) Engines() []translate.EngineName {
	return []translate.EngineName{translate.EnginePivot}
}

func (t *fakeTranslator) Capabilities(name translate.EngineName) (translate.Capabilities, error) {
	if name != translate.EnginePivot {
		return translate.Capabilities{}, translate.ErrUnknownEngine
	}
	return translate.Capabilities{Engine: name, Languages: []string{"en", "pt"}}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	store      *storage.Manager
	runner     *mediaRunner
	acquirer   *fakeAcquirer
	recognizer *fakeRecognizer
	translator *fakeTranslator
	svc        *clip.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("storage.NewManager() error = %v", err)
	}
	t.Cleanup(store.Close)

	fx := &fixture{
		store:      store,
		runner:     &mediaRunner{infoJSON: infoJSON("120.0")},
		acquirer:   &fakeAcquirer{store: store},
		recognizer: &fakeRecognizer{limit: 1 << 20, language: "en"},
		translator: &fakeTranslator{},
	}
	media := audio.NewEngine(fx.runner, store, audio.WithFFmpegPath("ffmpeg"), audio.WithFFprobePath("ffprobe"))
	fx.svc = clip.NewService(store, fx.acquirer, media, fx.recognizer, fx.translator)
	return fx
}

// upload places a managed file in the store.
func (fx *fixture) upload(t *testing.T, name string) storage.File {
	t.Helper()
	f, err := fx.store.Persist([]byte("audio-bytes"), name)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	return f
}

// files lists the names present in the storage directory.
func (fx *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(fx.store.Root())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func assertCode(t *testing.T, err error, want clip.Code) *clip.Error {
	t.Helper()
	var ce *clip.Error
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v (%T), want *clip.Error with code %s", err, err, want)
	}
	if ce.Code != want {
		t.Fatalf("Code = %s, want %s (message %q)", ce.Code, want, ce.Message)
	}
	return ce
}
