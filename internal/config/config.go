// Package config loads clipscribe settings in layers: built-in defaults,
// an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvConfigFile  = "CLIPSCRIBE_CONFIG"
	EnvOpenAIKey   = "OPENAI_API_KEY" // #nosec G101 -- env var name, not a credential
	EnvTempDir     = "CLIPSCRIBE_TEMP_DIR"
	EnvHost        = "CLIPSCRIBE_HOST"
	EnvPort        = "CLIPSCRIBE_PORT"
	EnvDebug       = "CLIPSCRIBE_DEBUG"
	EnvWorkers     = "CLIPSCRIBE_WORKERS"
	EnvMaxFileSize = "CLIPSCRIBE_MAX_FILE_SIZE_MB"
	EnvFFmpeg      = "FFMPEG_PATH"
	EnvFFprobe     = "FFPROBE_PATH"
	EnvYTDLP       = "YTDLP_PATH"
	EnvWhisper     = "WHISPER_PATH"
	EnvModel       = "WHISPER_MODEL"
	EnvModelDir    = "WHISPER_MODEL_DIR"
	EnvArgos       = "ARGOS_PATH"
	EnvArgosPM     = "ARGOSPM_PATH"
)

// ErrInvalid indicates a configuration value out of range or unparsable.
var ErrInvalid = errors.New("invalid configuration")

// Config is the effective configuration.
type Config struct {
	Workers    int              `yaml:"workers"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Tools      ToolsConfig      `yaml:"tools"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Translate  TranslateConfig  `yaml:"translate"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Debug           bool     `yaml:"debug"`
	LogFormat       string   `yaml:"log_format"` // text or json
	CORSOrigins     []string `yaml:"cors_origins"`
	RateLimit       float64  `yaml:"rate_limit"` // requests per second per client, 0 disables
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StorageConfig configures the managed file directory.
type StorageConfig struct {
	TempDir       string   `yaml:"temp_dir"`
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	SweepInterval Duration `yaml:"sweep_interval"`
	SweepMaxAge   Duration `yaml:"sweep_max_age"`
	DownloadGrace Duration `yaml:"download_grace"`
	DerivedGrace  Duration `yaml:"derived_grace"`
}

// ToolsConfig holds explicit binary paths. Empty means PATH lookup.
type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	YTDLP   string `yaml:"yt_dlp"`
	Whisper string `yaml:"whisper"`
	Argos   string `yaml:"argos_translate"`
	ArgosPM string `yaml:"argospm"`
}

// TranscribeConfig configures the recognition engines.
type TranscribeConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Model        string `yaml:"model"`
	ModelDir     string `yaml:"model_dir"`
	ModelURL     string `yaml:"model_url"`
}

// TranslateConfig configures the translation pipeline.
type TranslateConfig struct {
	Concurrency   int    `yaml:"concurrency"`
	DictionaryURL string `yaml:"dictionary_url"`
}

// Duration is a time.Duration written as a string ("1h", "30m") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers: 4,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			LogFormat:       "text",
			CORSOrigins:     []string{"*"},
			RateLimit:       10,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			TempDir:       filepath.Join(os.TempDir(), "clipscribe"),
			MaxFileSizeMB: 100,
			SweepInterval: Duration(time.Hour),
			SweepMaxAge:   Duration(time.Hour),
			DownloadGrace: Duration(time.Hour),
			DerivedGrace:  Duration(30 * time.Minute),
		},
		Transcribe: TranscribeConfig{
			Model:    "base",
			ModelDir: defaultModelDir(),
		},
		Translate: TranslateConfig{
			Concurrency: 4,
		},
	}
}

func defaultModelDir() string {
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "clipscribe", "models")
	}
	return filepath.Join(os.TempDir(), "clipscribe-models")
}

// dir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/clipscribe.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "clipscribe"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "clipscribe"), nil
}

// Path returns the config file location: $CLIPSCRIBE_CONFIG, or
// config.yaml in the configuration directory.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return ExpandPath(p), nil
	}
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Load builds the configuration from defaults, the config file and the
// process environment, then validates it.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(p, os.Getenv)
}

// LoadFile is Load with an explicit file and environment lookup.
// A missing file is not an error.
func LoadFile(p string, getenv func(string) string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(p) // #nosec G304 -- path comes from the user's own config location
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalid, p, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	cfg.Storage.TempDir = ExpandPath(cfg.Storage.TempDir)
	cfg.Transcribe.ModelDir = ExpandPath(cfg.Transcribe.ModelDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields with the non-empty environment values.
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvOpenAIKey, &c.Transcribe.OpenAIAPIKey},
		{EnvTempDir, &c.Storage.TempDir},
		{EnvHost, &c.Server.Host},
		{EnvFFmpeg, &c.Tools.FFmpeg},
		{EnvFFprobe, &c.Tools.FFprobe},
		{EnvYTDLP, &c.Tools.YTDLP},
		{EnvWhisper, &c.Tools.Whisper},
		{EnvModel, &c.Transcribe.Model},
		{EnvModelDir, &c.Transcribe.ModelDir},
		{EnvArgos, &c.Tools.Argos},
		{EnvArgosPM, &c.Tools.ArgosPM},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(getenv(s.key)); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvPort, &c.Server.Port},
		{EnvWorkers, &c.Workers},
		{EnvMaxFileSize, &c.Storage.MaxFileSizeMB},
	}
	for _, i := range ints {
		v := strings.TrimSpace(getenv(i.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, i.key, v)
		}
		*i.dst = n
	}

	if v := strings.TrimSpace(getenv(EnvDebug)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, EnvDebug, v)
		}
		c.Server.Debug = b
	}
	return nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Workers > 0, "workers must be positive, got %d", c.Workers)
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be in 1-65535, got %d", c.Server.Port)
	check(c.Server.LogFormat == "text" || c.Server.LogFormat == "json", "server.log_format must be text or json, got %q", c.Server.LogFormat)
	check(c.Server.RateLimit >= 0, "server.rate_limit must not be negative")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")
	check(c.Storage.TempDir != "", "storage.temp_dir must be set")
	check(c.Storage.MaxFileSizeMB > 0, "storage.max_file_size_mb must be positive, got %d", c.Storage.MaxFileSizeMB)
	check(c.Storage.SweepInterval > 0, "storage.sweep_interval must be positive")
	check(c.Storage.SweepMaxAge > 0, "storage.sweep_max_age must be positive")
	check(c.Storage.DownloadGrace > 0, "storage.download_grace must be positive")
	check(c.Storage.DerivedGrace > 0, "storage.derived_grace must be positive")
	check(c.Transcribe.Model != "", "transcribe.model must be set")
	check(c.Translate.Concurrency > 0, "translate.concurrency must be positive, got %d", c.Translate.Concurrency)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// MaxFileSize returns the storage size limit in bytes.
func (c Config) MaxFileSize() int64 {
	return int64(c.Storage.MaxFileSizeMB) << 20
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Transcribe.OpenAIAPIKey != "" {
		c.Transcribe.OpenAIAPIKey = "***"
	}
	c.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return c
}

// YAML renders c, with secrets redacted.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
