// Package proc runs external tools (ffmpeg, yt-dlp, whisper, argos) on a
// bounded worker pool with a deadline per invocation.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// waitDelay bounds how long Wait blocks on pipes after the process is killed.
const waitDelay = 5 * time.Second

// Command describes one process invocation.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration // zero means no deadline beyond ctx
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// runFn executes a command and captures its output.
type runFn func(ctx context.Context, cmd Command) (Result, error)

// Runner executes commands with bounded concurrency.
type Runner struct {
	sem    *semaphore.Weighted
	run    runFn
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRunFunc replaces process execution (for testing).
func WithRunFunc(fn func(ctx context.Context, cmd Command) (Result, error)) Option {
	return func(r *Runner) { r.run = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner returns a Runner allowing at most workers concurrent invocations.
func NewRunner(workers int, opts ...Option) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	r := &Runner{
		sem:    semaphore.NewWeighted(int64(workers)),
		run:    defaultRun,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run waits for a free worker, then executes cmd. A deadline hit yields an
// *Error of kind ErrTimeout; a start failure or non-zero exit yields kind
// ErrCommandFailed. Output captured so far is returned in both cases.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer r.sem.Release(1)

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	name := filepath.Base(cmd.Path)
	start := time.Now()
	res, err := r.run(runCtx, cmd)
	r.logger.Debug("process finished", "cmd", name, "elapsed", time.Since(start), "error", err)

	if err == nil {
		return res, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, &Error{Name: name, Kind: ErrTimeout, Cause: fmt.Errorf("after %v", cmd.Timeout), Stderr: string(res.Stderr)}
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, &Error{Name: name, Kind: ErrCommandFailed, Cause: err, Stderr: string(res.Stderr)}
}

// Do runs fn on a pool worker. It is used for blocking work that is not a
// process, such as model downloads.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	return fn(ctx)
}

// defaultRun is the production implementation.
func defaultRun(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...) // #nosec G204 -- paths come from tool resolution
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}
