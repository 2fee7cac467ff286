package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alnah/go-clipscribe/internal/lang"
	"github.com/alnah/go-clipscribe/internal/registry"
)

// HopCacheSize is how many hop models stay loaded at once.
const HopCacheSize = 8

// pivotLanguage is the language every hop goes through.
const pivotLanguage = "en"

// PivotLanguages lists the codes the pivot engine has models for.
var PivotLanguages = []string{"pt", "en", "es", "fr", "de", "it", "ru", "zh", "ja", "ko", "ar", "hi", "tr", "nl", "pl"}

// HopModel translates text along one fixed language pair.
type HopModel interface {
	Translate(ctx context.Context, text string) (string, error)
}

// HopKey returns the registry key of the src->tgt model.
func HopKey(src, tgt string) string { return src + "-" + tgt }

// splitHopKey is the inverse of HopKey.
func splitHopKey(key string) (src, tgt string, err error) {
	src, tgt, ok := strings.Cut(key, "-")
	if !ok || src == "" || tgt == "" {
		return "", "", fmt.Errorf("malformed hop key %q", key)
	}
	return src, tgt, nil
}

var _ Engine = (*PivotEngine)(nil)

// PivotEngine translates through English with at most two hop models,
// each loaded once and shared through a bounded cache.
type PivotEngine struct {
	models    *registry.Cache[HopModel]
	supported map[string]bool
	logger    *slog.Logger
}

// PivotOption configures a PivotEngine.
type PivotOption func(*PivotEngine)

// WithPivotLogger sets the logger.
func WithPivotLogger(l *slog.Logger) PivotOption {
	return func(e *PivotEngine) { e.logger = l }
}

// NewPivotEngine creates a PivotEngine backed by models, whose keys are
// HopKey values.
func NewPivotEngine(models *registry.Cache[HopModel], opts ...PivotOption) *PivotEngine {
	e := &PivotEngine{
		models:    models,
		supported: make(map[string]bool, len(PivotLanguages)),
		logger:    slog.Default(),
	}
	for _, code := range PivotLanguages {
		e.supported[code] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capabilities implements Engine.
func (e *PivotEngine) Capabilities() Capabilities {
	return Capabilities{
		Engine:     EnginePivot,
		Title:      "Local pivot models (via English)",
		Languages:  append([]string(nil), PivotLanguages...),
		Names:      lang.Names(PivotLanguages),
		AutoDetect: true,
	}
}

// Translate routes src->en->tgt, skipping legs that start or end in English.
// On a hop failure it returns the text obtained so far and a *HopError.
func (e *PivotEngine) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	src, tgt = lang.Normalize(src), lang.Normalize(tgt)
	if src == tgt {
		return text, nil
	}

	current := text
	if src != pivotLanguage {
		out, err := e.hop(ctx, current, src, pivotLanguage)
		if err != nil {
			return text, err
		}
		current = out
	}
	if tgt != pivotLanguage {
		out, err := e.hop(ctx, current, pivotLanguage, tgt)
		if err != nil {
			return current, err
		}
		current = out
	}
	return current, nil
}

func (e *PivotEngine) hop(ctx context.Context, text, from, to string) (string, error) {
	for _, code := range []string{from, to} {
		if !e.supported[code] {
			return "", &HopError{From: from, To: to, Err: fmt.Errorf("%q: %w", code, ErrUnsupportedLanguage)}
		}
	}

	model, err := e.models.GetOrLoad(ctx, HopKey(from, to))
	if err != nil {
		return "", &HopError{From: from, To: to, Err: err}
	}
	out, err := model.Translate(ctx, text)
	if err != nil {
		return "", &HopError{From: from, To: to, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &HopError{From: from, To: to, Err: ErrEmptyTranslation}
	}
	return out, nil
}
