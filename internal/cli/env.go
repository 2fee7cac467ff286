package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alnah/go-clipscribe/internal/config"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing commands in isolation.
//
// All fields have production defaults via DefaultEnv(). Tests override
// specific fields using the With* options or by building an Env directly.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Factories for domain objects
	ConfigLoader ConfigLoader
	AppFactory   AppFactory
}

// ConfigLoader loads the effective configuration. An empty path means the
// default location.
type ConfigLoader interface {
	Load(path string) (config.Config, error)
}

// AppFactory wires the pipeline from a configuration.
type AppFactory interface {
	NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithAppFactory sets the pipeline factory.
func WithAppFactory(f AppFactory) EnvOption {
	return func(e *Env) {
		e.AppFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Getenv:       os.Getenv,
		ConfigLoader: &defaultConfigLoader{getenv: os.Getenv},
		AppFactory:   defaultAppFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct {
	getenv func(string) string
}

func (l defaultConfigLoader) Load(path string) (config.Config, error) {
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return config.Config{}, err
		}
		path = p
	}
	return config.LoadFile(path, l.getenv)
}

// defaultAppFactory implements AppFactory with the production wiring.
type defaultAppFactory struct{}

func (defaultAppFactory) NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	return Build(ctx, cfg, logger)
}

// Compile-time interface verification.
var (
	_ ConfigLoader = (*defaultConfigLoader)(nil)
	_ AppFactory   = defaultAppFactory{}
)
