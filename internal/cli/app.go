package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/config"
	"github.com/alnah/go-clipscribe/internal/lang"
	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/registry"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/tools"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// clipService is what commands need from the pipeline. *clip.Service implements it.
type clipService interface {
	Download(ctx context.Context, req clip.DownloadRequest) (*clip.DownloadResult, error)
	Search(ctx context.Context, req clip.SearchRequest) (*clip.SearchResult, error)
	Import(path string) (storage.File, error)
	Cut(ctx context.Context, req clip.CutRequest) (*clip.CutResult, error)
	Metadata(ctx context.Context, ref string) (*audio.MediaInfo, error)
	Normalize(ctx context.Context, ref string) (*clip.NormalizeResult, error)
	Transcribe(ctx context.Context, req clip.TranscribeRequest) (*transcribe.Transcript, error)
	Engines() clip.Engines
	Languages(engine string) (translate.Capabilities, error)
	Health() clip.Health
	Open(ref string) (storage.File, error)
	Delete(ref string) error
}

var _ clipService = (*clip.Service)(nil)

// App is a wired pipeline.
type App struct {
	Config  config.Config
	Store   *storage.Manager
	Service clipService
	Logger  *slog.Logger
}

// Close cancels pending deferred deletions.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// Build resolves the external tools and wires every component from cfg.
// ffmpeg and ffprobe are required. The other tools are optional: when one
// is missing a warning is logged and commands that need it fail at run time.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	resolver := tools.NewResolver(
		tools.WithOverride(tools.FFmpeg, cfg.Tools.FFmpeg),
		tools.WithOverride(tools.FFprobe, cfg.Tools.FFprobe),
		tools.WithOverride(tools.YTDLP, cfg.Tools.YTDLP),
		tools.WithOverride(tools.Whisper, cfg.Tools.Whisper),
		tools.WithOverride(tools.Argos, cfg.Tools.Argos),
		tools.WithOverride(tools.ArgosPM, cfg.Tools.ArgosPM),
	)

	ffmpegPath, err := resolver.Resolve(tools.FFmpeg)
	if err != nil {
		return nil, err
	}
	ffprobePath, err := resolver.Resolve(tools.FFprobe)
	if err != nil {
		return nil, err
	}
	optional := func(t tools.Tool) string {
		p, err := resolver.Resolve(t)
		if err != nil {
			logger.Warn("optional tool unavailable", "tool", t.Name, "error", err)
			return t.Binary
		}
		return p
	}

	runner := proc.NewRunner(cfg.Workers, proc.WithLogger(logger))
	tools.NewVersionChecker(runner, logger).Check(ctx, ffmpegPath)

	store, err := storage.NewManager(cfg.Storage.TempDir, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	media := audio.NewEngine(runner, store,
		audio.WithFFmpegPath(ffmpegPath),
		audio.WithFFprobePath(ffprobePath),
		audio.WithLogger(logger),
	)

	extractor := acquire.NewYTDLP(runner, acquire.WithYTDLPPath(optional(tools.YTDLP)))
	acq := acquire.NewService(extractor, store, media,
		acquire.WithMaxSize(cfg.MaxFileSize()),
		acquire.WithLogger(logger),
	)

	recognizer, err := buildRecognizer(cfg, runner, media, store, optional(tools.Whisper), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	translator, err := buildTranslator(cfg, runner, optional(tools.Argos), optional(tools.ArgosPM), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := clip.NewService(store, acq, media, recognizer, translator,
		clip.WithMaxFileSize(cfg.MaxFileSize()),
		clip.WithGrace(cfg.Storage.DownloadGrace.Std(), cfg.Storage.DerivedGrace.Std()),
		clip.WithTools(resolver.Report(tools.FFmpeg, tools.FFprobe, tools.YTDLP, tools.Whisper, tools.Argos, tools.ArgosPM)),
		clip.WithLogger(logger),
	)

	return &App{Config: cfg, Store: store, Service: svc, Logger: logger}, nil
}

func buildRecognizer(cfg config.Config, runner *proc.Runner, media *audio.Engine, store *storage.Manager, whisperPath string, logger *slog.Logger) (*transcribe.Orchestrator, error) {
	loaderOpts := []transcribe.ModelLoaderOption{transcribe.WithModelLogger(logger)}
	if cfg.Transcribe.ModelURL != "" {
		loaderOpts = append(loaderOpts, transcribe.WithModelURL(cfg.Transcribe.ModelURL))
	}
	loader := transcribe.NewModelLoader(cfg.Transcribe.ModelDir, runner, loaderOpts...)

	// One resident model per process.
	models, err := registry.New[transcribe.Model](1, loader.Load, registry.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}

	local := transcribe.NewLocalEngine(runner, media, store, models,
		transcribe.WithWhisperPath(whisperPath),
		transcribe.WithModelName(cfg.Transcribe.Model),
		transcribe.WithLocalMaxFileSize(cfg.MaxFileSize()),
		transcribe.WithLocalLogger(logger),
	)

	var remote transcribe.Engine
	if cfg.Transcribe.OpenAIAPIKey != "" {
		remote = transcribe.NewRemoteEngine(cfg.Transcribe.OpenAIAPIKey, store, transcribe.WithRemoteLogger(logger))
	} else {
		logger.Info("remote transcription disabled", "reason", config.EnvOpenAIKey+" not set")
	}

	return transcribe.NewOrchestrator(local, remote, transcribe.WithOrchestratorLogger(logger)), nil
}

func buildTranslator(cfg config.Config, runner *proc.Runner, argosPath, argospmPath string, logger *slog.Logger) (*translate.Pipeline, error) {
	loader := translate.NewArgosLoader(runner,
		translate.WithArgosPaths(argosPath, argospmPath),
		translate.WithArgosLogger(logger),
	)
	hops, err := registry.New[translate.HopModel](translate.HopCacheSize, loader.Load, registry.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("translation registry: %w", err)
	}

	dictOpts := []translate.DictionaryOption{translate.WithDictionaryLogger(logger)}
	if cfg.Translate.DictionaryURL != "" {
		dictOpts = append(dictOpts, translate.WithDictionaryURL(cfg.Translate.DictionaryURL))
	}

	return translate.NewPipeline(lang.NewTrigramDetector(),
		translate.WithEngine(translate.EnginePivot, translate.NewPivotEngine(hops, translate.WithPivotLogger(logger))),
		translate.WithEngine(translate.EngineDictionary, translate.NewDictionaryEngine(dictOpts...)),
		translate.WithConcurrency(cfg.Translate.Concurrency),
		translate.WithPipelineLogger(logger),
	), nil
}
