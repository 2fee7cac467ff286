package translate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alnah/go-clipscribe/internal/registry"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// fakeHop tags text with its language pair: "Hello" via en-pt -> "[pt]Hello".
type fakeHop struct {
	to  string
	err error
}

func (h fakeHop) Translate(_ context.Context, text string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "[" + h.to + "]" + text, nil
}

// fakeHopLoader records loads and can fail specific hops.
type fakeHopLoader struct {
	mu       sync.Mutex
	loads    []string
	failLoad map[string]bool
	failRun  map[string]bool
}

func (l *fakeHopLoader) Load(_ context.Context, key string) (translate.HopModel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, key)
	if l.failLoad[key] {
		return nil, errors.New("package not available")
	}
	_, to, _ := strings.Cut(key, "-")
	if l.failRun[key] {
		return fakeHop{to: to, err: errors.New("inference crashed")}, nil
	}
	return fakeHop{to: to}, nil
}

func (l *fakeHopLoader) Loads() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loads...)
}

// fixedDetector always reports the same language.
type fixedDetector struct {
	code string
}

func (d fixedDetector) Detect(string) (string, error) {
	if d.code == "" {
		return "", errors.New("undetermined")
	}
	return d.code, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newPivot(t *testing.T, loader *fakeHopLoader) *translate.PivotEngine {
	t.Helper()
	models, err := registry.New[translate.HopModel](translate.HopCacheSize, loader.Load)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return translate.NewPivotEngine(models)
}
