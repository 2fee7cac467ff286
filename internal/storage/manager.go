// Package storage owns the flat temporary directory every pipeline stage
// reads from and writes to: unique handle allocation, size checks,
// idempotent deletion, deferred per-artifact cleanup and TTL sweeps.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PrefixUpload is the owner prefix for caller-supplied bytes.
const PrefixUpload = "upload"

// dirPerm and filePerm restrict managed files to the current user.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// entry tracks the lifecycle of a handle created or resolved by this process.
type entry struct {
	state   State
	created time.Time
	changed time.Time
	pending *pendingDelete
}

// Manager owns a single flat directory of managed files.
type Manager struct {
	root   string
	now    func() time.Time
	random func() string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for names, sweeps and tombstones.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates the storage directory if needed and returns a Manager for it.
func NewManager(root string, opts ...Option) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	m := &Manager{
		root:    abs,
		now:     time.Now,
		random:  func() string { return uuid.NewString()[:8] },
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the absolute storage directory.
func (m *Manager) Root() string { return m.root }

// Allocate reserves a fresh path named <prefix>_<timestamp>-<rand>.<ext>.
// Nothing is written; the caller (usually an external process) creates the file.
func (m *Manager) Allocate(prefix, ext string) File {
	now := m.now()
	prefix = sanitize(prefix)
	if prefix == "" {
		prefix = "file"
	}

	name := fmt.Sprintf("%s_%s_%06d-%s", prefix, now.Format("20060102_150405"), now.Nanosecond()/1000, m.random())
	if ext = sanitize(strings.TrimPrefix(ext, ".")); ext != "" {
		name += "." + ext
	}

	f := File{Path: filepath.Join(m.root, name), Owner: prefix, Created: now}

	m.mu.Lock()
	m.entries[f.Path] = &entry{state: StateCreated, created: now, changed: now}
	m.mu.Unlock()
	return f
}

// Persist writes data to a new managed file. The extension of originalName
// is kept so format checks keep working on the stored copy.
func (m *Manager) Persist(data []byte, originalName string) (File, error) {
	f := m.Allocate(PrefixUpload, filepath.Ext(filepath.Base(originalName)))

	if err := os.WriteFile(f.Path, data, filePerm); err != nil {
		_ = os.Remove(f.Path)
		m.markDeleted(f.Path)
		return File{}, fmt.Errorf("persist %s: %w", originalName, err)
	}

	m.Activate(f)
	return f, nil
}

// Activate marks a file as written and in use.
// Handles already scheduled or deleted keep their state.
func (m *Manager) Activate(f File) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entryLocked(f)
	if e.state == StateCreated {
		e.state = StateActive
		e.changed = m.now()
	}
}

// Exists reports whether f is live and present on disk.
func (m *Manager) Exists(f File) bool {
	if m.State(f) == StateDeleted {
		return false
	}
	info, err := os.Stat(f.Path)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the file size in bytes, or 0 if the file is absent.
func (m *Manager) Size(f File) int64 {
	if !m.Exists(f) {
		return 0
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ValidateSize reports whether f is at most maxBytes long.
func (m *Manager) ValidateSize(f File, maxBytes int64) bool {
	return m.Size(f) <= maxBytes
}

// Delete removes f and cancels any pending deferred deletion.
// It returns true when a file was actually removed and false when there was
// nothing to remove. It never fails; unexpected errors are logged.
func (m *Manager) Delete(f File) bool {
	if f.Path == "" {
		return false
	}

	m.mu.Lock()
	e := m.entryLocked(f)
	if e.pending != nil {
		e.pending.timer.Stop()
		e.pending = nil
	}
	e.state = StateDeleted
	e.changed = m.now()
	m.mu.Unlock()

	err := os.Remove(f.Path)
	switch {
	case err == nil:
		m.logger.Debug("managed file deleted", "path", f.Path)
		return true
	case errors.Is(err, os.ErrNotExist):
		return false
	default:
		m.logger.Warn("managed file delete failed", "path", f.Path, "error", err)
		return false
	}
}

// State returns the lifecycle state of f. Handles this process never saw
// are reported Active when present on disk and Deleted otherwise.
func (m *Manager) State(f File) State {
	m.mu.Lock()
	var st State
	e, ok := m.entries[f.Path]
	if ok {
		st = e.state
	}
	m.mu.Unlock()
	if ok {
		return st
	}
	if _, err := os.Stat(f.Path); err == nil {
		return StateActive
	}
	return StateDeleted
}

// Resolve turns a client reference (absolute path or bare name) back into
// a handle. References must point directly inside the storage directory.
func (m *Manager) Resolve(ref string) (File, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return File{}, fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}
	path = filepath.Clean(path)
	if filepath.Dir(path) != m.root {
		return File{}, fmt.Errorf("%w: %s", ErrOutsideRoot, ref)
	}

	// Copy under the lock; Delete and deferred timers mutate entries.
	var (
		st      State
		created time.Time
	)
	m.mu.Lock()
	e, tracked := m.entries[path]
	if tracked {
		st, created = e.state, e.created
	}
	m.mu.Unlock()
	if tracked && st == StateDeleted {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}

	f := File{Path: path, Owner: ownerOf(filepath.Base(path)), Created: info.ModTime()}
	if tracked {
		f.Created = created
	}
	return f, nil
}

// Sweep deletes every regular file whose modification time is older than
// maxAge and prunes tombstones of the same age. It returns the number of
// files removed.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	dirEntries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("list storage directory: %w", err)
	}

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue // removed concurrently
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(m.root, de.Name())
			if m.Delete(File{Path: path, Owner: ownerOf(de.Name())}) {
				removed++
			}
		}
	}

	m.mu.Lock()
	for path, e := range m.entries {
		if e.state == StateDeleted && e.changed.Before(cutoff) {
			delete(m.entries, path)
		}
	}
	m.mu.Unlock()

	return removed, nil
}

// entryLocked returns the entry for f, creating one for handles first seen
// through Resolve or a sweep. Callers must hold m.mu.
func (m *Manager) entryLocked(f File) *entry {
	e, ok := m.entries[f.Path]
	if !ok {
		now := m.now()
		e = &entry{state: StateActive, created: now, changed: now}
		m.entries[f.Path] = e
	}
	return e
}

func (m *Manager) markDeleted(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[path]; ok {
		e.state = StateDeleted
		e.changed = m.now()
	}
}

// sanitize lowercases s and collapses anything outside [a-z0-9] to "-".
func sanitize(s string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ownerOf extracts the prefix from a managed file name.
func ownerOf(name string) string {
	if i := strings.IndexByte(name, '_'); i > 0 {
		return name[:i]
	}
	return ""
}
