// Package interrupt turns SIGINT/SIGTERM into context cancellation. The first
// signal cancels the context so servers drain and commands clean up their
// files; a second one within the force window exits immediately.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// forceWindow is the time window for a second signal to force exit.
const forceWindow = 2 * time.Second

const (
	drainMessage = "\nShutting down (press Ctrl+C again to force)..."
	forceMessage = "\nForced exit."
)

// Handler cancels a context on the first signal and force-exits on a second
// signal received within forceWindow.
type Handler struct {
	mu          sync.Mutex
	first       time.Time
	interrupted bool
	forced      bool
	stopped     bool
	cancelFunc  context.CancelFunc
	done        chan struct{}

	// Injected dependencies (for testing)
	exitFunc func(int)
	nowFunc  func() time.Time
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr receives user-facing messages. It must be safe for concurrent writes.
	Stderr io.Writer
}

// NewHandler listens for SIGINT/SIGTERM and returns a context cancelled on
// the first one.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return NewHandlerWithOptions(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		cancelFunc: cancel,
		done:       make(chan struct{}),
		exitFunc:   opts.ExitFunc,
		nowFunc:    opts.NowFunc,
		stderr:     opts.Stderr,
	}
	if h.exitFunc == nil {
		h.exitFunc = os.Exit
	}
	if h.nowFunc == nil {
		h.nowFunc = time.Now
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}

	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle processes one signal and reports whether listening should stop.
func (h *Handler) handle() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	now := h.nowFunc()

	if !h.interrupted {
		h.interrupted = true
		h.first = now
		h.cancelFunc()
		h.mu.Unlock()
		_, _ = fmt.Fprintln(h.stderr, drainMessage)
		return false
	}

	if now.Sub(h.first) > forceWindow {
		// Too late to count as a double press; restart the window.
		h.first = now
		h.mu.Unlock()
		_, _ = fmt.Fprintln(h.stderr, drainMessage)
		return false
	}

	h.forced = true
	h.mu.Unlock()
	_, _ = fmt.Fprintln(h.stderr, forceMessage)
	h.exitFunc(ExitInterrupt)
	return true
}

// WasInterrupted reports whether at least one signal was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Forced reports whether a second signal forced the exit.
func (h *Handler) Forced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forced
}

// Stop releases the signal handlers. It is safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
	h.cancelFunc()
}
