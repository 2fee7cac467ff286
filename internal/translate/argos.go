package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alnah/go-clipscribe/internal/proc"
)

const (
	defaultInstallTimeout   = 10 * time.Minute
	defaultTranslateTimeout = 2 * time.Minute
)

// ArgosLoader loads hop models backed by the argos-translate CLI, installing
// the language package with argospm when it is missing.
type ArgosLoader struct {
	runner           commandRunner
	argosPath        string
	argospmPath      string
	installTimeout   time.Duration
	translateTimeout time.Duration
	logger           *slog.Logger

	updateOnce sync.Once
}

// ArgosOption configures an ArgosLoader.
type ArgosOption func(*ArgosLoader)

// WithArgosPaths sets the argos-translate and argospm binaries.
func WithArgosPaths(argos, argospm string) ArgosOption {
	return func(l *ArgosLoader) {
		if argos != "" {
			l.argosPath = argos
		}
		if argospm != "" {
			l.argospmPath = argospm
		}
	}
}

// WithArgosTimeouts sets the package install and per-call translate timeouts.
func WithArgosTimeouts(install, translate time.Duration) ArgosOption {
	return func(l *ArgosLoader) {
		if install > 0 {
			l.installTimeout = install
		}
		if translate > 0 {
			l.translateTimeout = translate
		}
	}
}

// WithArgosLogger sets the logger.
func WithArgosLogger(lg *slog.Logger) ArgosOption {
	return func(l *ArgosLoader) { l.logger = lg }
}

// NewArgosLoader creates an ArgosLoader.
func NewArgosLoader(runner commandRunner, opts ...ArgosOption) *ArgosLoader {
	l := &ArgosLoader{
		runner:           runner,
		argosPath:        "argos-translate",
		argospmPath:      "argospm",
		installTimeout:   defaultInstallTimeout,
		translateTimeout: defaultTranslateTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load is a registry loader keyed by HopKey.
func (l *ArgosLoader) Load(ctx context.Context, key string) (HopModel, error) {
	src, tgt, err := splitHopKey(key)
	if err != nil {
		return nil, err
	}

	pkg := "translate-" + src + "_" + tgt
	installed, err := l.installed(ctx)
	if err != nil {
		return nil, err
	}
	if !installed[pkg] {
		if err := l.install(ctx, pkg); err != nil {
			return nil, err
		}
	}

	return &argosModel{loader: l, src: src, tgt: tgt}, nil
}

// installed lists packages reported by "argospm list".
func (l *ArgosLoader) installed(ctx context.Context) (map[string]bool, error) {
	res, err := l.runner.Run(ctx, proc.Command{
		Path:    l.argospmPath,
		Args:    []string{"list"},
		Timeout: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	pkgs := make(map[string]bool)
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			pkgs[name] = true
		}
	}
	return pkgs, nil
}

func (l *ArgosLoader) install(ctx context.Context, pkg string) error {
	l.updateOnce.Do(func() {
		_, err := l.runner.Run(ctx, proc.Command{Path: l.argospmPath, Args: []string{"update"}, Timeout: l.installTimeout})
		if err != nil {
			l.logger.Warn("argospm index update failed", "error", err)
		}
	})

	l.logger.Info("installing translation package", "package", pkg)
	_, err := l.runner.Run(ctx, proc.Command{
		Path:    l.argospmPath,
		Args:    []string{"install", pkg},
		Timeout: l.installTimeout,
	})
	if err != nil {
		return fmt.Errorf("install %s: %w", pkg, err)
	}
	return nil
}

// argosModel translates one language pair through argos-translate.
type argosModel struct {
	loader *ArgosLoader
	src    string
	tgt    string
}

func (m *argosModel) Translate(ctx context.Context, text string) (string, error) {
	res, err := m.loader.runner.Run(ctx, proc.Command{
		Path:    m.loader.argosPath,
		Args:    []string{"--from-lang", m.src, "--to-lang", m.tgt, "--", text},
		Timeout: m.loader.translateTimeout,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}
