// Package tools locates the external programs the pipeline shells out to.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/alnah/go-clipscribe/internal/proc"
)

// Tool names an external program and how to find it.
type Tool struct {
	Name   string // human name used in messages
	Binary string // executable looked up in PATH
	EnvVar string // environment override
	Hint   string // install instructions
}

// Known tools.
var (
	FFmpeg = Tool{Name: "ffmpeg", Binary: "ffmpeg", EnvVar: "FFMPEG_PATH",
		Hint: "install ffmpeg (brew install ffmpeg / apt install ffmpeg)"}
	FFprobe = Tool{Name: "ffprobe", Binary: "ffprobe", EnvVar: "FFPROBE_PATH",
		Hint: "ffprobe ships with ffmpeg"}
	YTDLP = Tool{Name: "yt-dlp", Binary: "yt-dlp", EnvVar: "YTDLP_PATH",
		Hint: "install yt-dlp (pip install yt-dlp / brew install yt-dlp)"}
	Whisper = Tool{Name: "whisper.cpp", Binary: "whisper-cli", EnvVar: "WHISPER_PATH",
		Hint: "build whisper.cpp and put whisper-cli in PATH"}
	Argos = Tool{Name: "argos-translate", Binary: "argos-translate", EnvVar: "ARGOS_PATH",
		Hint: "pip install argostranslate"}
	ArgosPM = Tool{Name: "argospm", Binary: "argospm", EnvVar: "ARGOSPM_PATH",
		Hint: "argospm ships with argostranslate"}
)

// Resolver finds tool binaries.
type Resolver struct {
	files     fileStatter
	env       envProvider
	overrides map[string]string
	goos      string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOverride pins a tool to an explicit path, typically from the config file.
func WithOverride(t Tool, path string) ResolverOption {
	return func(r *Resolver) {
		if path != "" {
			r.overrides[t.Binary] = path
		}
	}
}

// WithFileStatter sets the filesystem used for existence checks (for testing).
func WithFileStatter(f fileStatter) ResolverOption {
	return func(r *Resolver) { r.files = f }
}

// WithEnvProvider sets the environment provider (for testing).
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		files:     osFileStatter{},
		env:       osEnvProvider{},
		overrides: make(map[string]string),
		goos:      runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds t using the following precedence:
//  1. explicit override (error if set but missing)
//  2. the tool's environment variable (error if set but missing)
//  3. system PATH
func (r *Resolver) Resolve(t Tool) (string, error) {
	if path := r.overrides[t.Binary]; path != "" {
		return r.checkExplicit(t, path, "configured path")
	}
	if path := r.env.Getenv(t.EnvVar); path != "" {
		return r.checkExplicit(t, path, t.EnvVar)
	}

	binary := t.Binary
	if r.goos == "windows" && !strings.HasSuffix(binary, ".exe") {
		binary += ".exe"
	}
	if path, err := r.env.LookPath(binary); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s not in PATH (%s)", ErrNotFound, t.Name, t.Hint)
}

// Status reports where a tool resolved, if anywhere.
type Status struct {
	Name      string `json:"name" msgpack:"name"`
	Path      string `json:"path,omitempty" msgpack:"path,omitempty"`
	Available bool   `json:"available" msgpack:"available"`
}

// Report resolves every tool in ts and reports each outcome. It never fails.
func (r *Resolver) Report(ts ...Tool) []Status {
	out := make([]Status, 0, len(ts))
	for _, t := range ts {
		path, err := r.Resolve(t)
		out = append(out, Status{Name: t.Name, Path: path, Available: err == nil})
	}
	return out
}

func (r *Resolver) checkExplicit(t Tool, path, source string) (string, error) {
	if _, err := r.files.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s is set to %q but %s was not found",
			ErrNotFound, source, path, t.Name)
	}
	return path, nil
}

// minFFmpegMajorVersion is the oldest ffmpeg with a reliable loudnorm filter.
const minFFmpegMajorVersion = 4

// VersionChecker verifies ffmpeg version requirements.
type VersionChecker struct {
	runner *proc.Runner
	logger *slog.Logger
}

// NewVersionChecker creates a VersionChecker.
func NewVersionChecker(runner *proc.Runner, logger *slog.Logger) *VersionChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionChecker{runner: runner, logger: logger}
}

// Check logs a warning when ffmpeg is older than recommended but never fails.
// It returns false when the version could not be determined.
func (vc *VersionChecker) Check(ctx context.Context, ffmpegPath string) bool {
	res, err := vc.runner.Run(ctx, proc.Command{Path: ffmpegPath, Args: []string{"-version"}, Timeout: 10 * time.Second})
	if err != nil {
		return false
	}

	major, ok := parseMajorVersion(string(res.Stdout))
	if !ok {
		return false
	}
	if major < minFFmpegMajorVersion {
		vc.logger.Warn("ffmpeg is older than recommended",
			"version", major, "recommended", minFFmpegMajorVersion)
	}
	return true
}

// parseMajorVersion reads "ffmpeg version 6.1.1 ..." or "ffmpeg version n6.1 ...".
func parseMajorVersion(output string) (int, bool) {
	first, _, _ := strings.Cut(output, "\n")
	var major int
	if _, err := fmt.Sscanf(first, "ffmpeg version %d", &major); err == nil {
		return major, true
	}
	if _, err := fmt.Sscanf(first, "ffmpeg version n%d", &major); err == nil {
		return major, true
	}
	return 0, false
}
