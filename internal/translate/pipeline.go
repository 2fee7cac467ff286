package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-clipscribe/internal/lang"
	"github.com/alnah/go-clipscribe/internal/transcribe"
)

// DefaultConcurrency bounds how many segments are translated at once.
const DefaultConcurrency = 4

// Pipeline detects each segment's language and translates it with the
// selected engine. Translation problems never fail the pipeline: the
// segment keeps the best text available and the problem is logged.
type Pipeline struct {
	engines  map[EngineName]Engine
	detector lang.Detector
	limit    int
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithConcurrency sets how many segments are translated in parallel.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithEngine registers an engine under name.
func WithEngine(name EngineName, e Engine) PipelineOption {
	return func(p *Pipeline) { p.engines[name] = e }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline using detector for source languages.
func NewPipeline(detector lang.Detector, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		engines:  make(map[EngineName]Engine),
		detector: detector,
		limit:    DefaultConcurrency,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engines returns registered engine names in sorted order.
func (p *Pipeline) Engines() []EngineName {
	names := make([]EngineName, 0, len(p.engines))
	for name := range p.engines {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Capabilities returns the capabilities of the named engine.
func (p *Pipeline) Capabilities(name EngineName) (Capabilities, error) {
	e, ok := p.engines[name]
	if !ok {
		return Capabilities{}, fmt.Errorf("%q: %w", name, ErrUnknownEngine)
	}
	return e.Capabilities(), nil
}

// TranslateSegments returns copies of segments carrying their detected
// language and translation into target, in input order. An empty or blank
// target returns segments itself. Only an unknown engine or a cancelled ctx
// produce an error.
func (p *Pipeline) TranslateSegments(ctx context.Context, segments []transcribe.Segment, target string, engine EngineName) ([]transcribe.Segment, error) {
	if strings.TrimSpace(target) == "" {
		return segments, nil
	}
	e, ok := p.engines[engine]
	if !ok {
		return nil, fmt.Errorf("%q: %w", engine, ErrUnknownEngine)
	}
	target = lang.Normalize(target)

	out := make([]transcribe.Segment, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i, seg := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.translateOne(gctx, e, seg, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) translateOne(ctx context.Context, e Engine, seg transcribe.Segment, target string) transcribe.Segment {
	src := lang.DetectOr(p.detector, seg.Text)

	text, err := e.Translate(ctx, seg.Text, src, target)
	if err != nil {
		var hopErr *HopError
		switch {
		case errors.As(err, &hopErr):
			p.logger.Warn("translation hop failed", "from", hopErr.From, "to", hopErr.To, "error", hopErr.Err)
		case errors.Is(err, ErrUnsupportedLanguage):
			p.logger.Warn("translation language unsupported", "source", src, "target", target, "error", err)
		default:
			p.logger.Warn("translation failed", "source", src, "target", target, "error", err)
		}
	}
	if text == "" {
		text = seg.Text
	}

	seg.Language = src
	seg.Translation = text
	return seg
}
