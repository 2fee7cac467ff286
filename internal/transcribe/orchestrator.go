package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alnah/go-clipscribe/internal/storage"
)

// EngineInfo describes an available engine for listings.
type EngineInfo struct {
	Name        EngineName `json:"value" msgpack:"value"`
	Title       string     `json:"name" msgpack:"name"`
	Description string     `json:"description" msgpack:"description"`
	MaxFileSize int64      `json:"max_file_size" msgpack:"max_file_size"`
}

// Orchestrator dispatches transcriptions to the selected engine. When the
// local engine fails and a remote engine exists, it retries once remotely.
// Remote failures are never retried locally.
type Orchestrator struct {
	local     Engine
	remote    Engine // nil when not configured
	fallbacks atomic.Int64
	logger    *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an Orchestrator. remote may be nil.
func NewOrchestrator(local, remote Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		local:  local,
		remote: remote,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe runs f through the named engine.
// Failures wrap ErrInferenceFailed; a missing remote engine is reported as
// ErrEngineNotConfigured without any attempt.
func (o *Orchestrator) Transcribe(ctx context.Context, f storage.File, name EngineName) (*Transcript, error) {
	switch name {
	case EngineRemote:
		if o.remote == nil {
			return nil, fmt.Errorf("remote engine: %w", ErrEngineNotConfigured)
		}
		t, err := o.remote.Transcribe(ctx, f)
		if err != nil {
			return nil, o.failure(ctx, err)
		}
		return t, nil

	case EngineLocal:
		t, err := o.local.Transcribe(ctx, f)
		if err == nil {
			return t, nil
		}
		o.logger.Error("local transcription failed", "file", f.Name(), "error", err)
		if o.remote == nil || ctx.Err() != nil {
			return nil, o.failure(ctx, err)
		}

		o.fallbacks.Add(1)
		o.logger.Info("falling back to remote engine", "file", f.Name())
		t, rerr := o.remote.Transcribe(ctx, f)
		if rerr != nil {
			o.logger.Error("remote fallback failed", "file", f.Name(), "error", rerr)
			return nil, o.failure(ctx, fmt.Errorf("%w (remote fallback: %v)", err, rerr))
		}
		return t, nil

	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownEngine)
	}
}

func (o *Orchestrator) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", ErrInferenceFailed, err)
}

// Fallbacks returns how many local failures were retried remotely.
func (o *Orchestrator) Fallbacks() int64 { return o.fallbacks.Load() }

// AvailableEngines lists local, plus remote when configured.
func (o *Orchestrator) AvailableEngines() []EngineName {
	engines := []EngineName{EngineLocal}
	if o.remote != nil {
		engines = append(engines, EngineRemote)
	}
	return engines
}

// MaxFileSize returns the upload limit of the named engine.
func (o *Orchestrator) MaxFileSize(name EngineName) (int64, error) {
	switch name {
	case EngineLocal:
		return o.local.MaxFileSize(), nil
	case EngineRemote:
		if o.remote == nil {
			return RemoteMaxFileSize, nil
		}
		return o.remote.MaxFileSize(), nil
	default:
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownEngine)
	}
}

// Describe returns listing details for every available engine.
func (o *Orchestrator) Describe() []EngineInfo {
	infos := make([]EngineInfo, 0, 2)
	for _, name := range o.AvailableEngines() {
		size, _ := o.MaxFileSize(name)
		info := EngineInfo{Name: name, MaxFileSize: size}
		switch name {
		case EngineLocal:
			info.Title = "Whisper Local"
			info.Description = "Local transcription with whisper.cpp (free)"
		case EngineRemote:
			info.Title = "OpenAI API"
			info.Description = "Transcription through the OpenAI speech API (requires an API key)"
		}
		infos = append(infos, info)
	}
	return infos
}
