package storage

import (
	"time"
)

// Grace windows for deferred deletion, per artifact class.
const (
	GraceDownload = time.Hour
	GraceDerived  = 30 * time.Minute
)

type pendingDelete struct {
	timer *time.Timer
}

// ScheduleDelete arms a deferred deletion of f after grace. Rescheduling
// replaces the previous timer, and an explicit Delete cancels it.
// Deleted handles are ignored.
func (m *Manager) ScheduleDelete(f File, grace time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entryLocked(f)
	if e.state == StateDeleted {
		return
	}
	if e.pending != nil {
		e.pending.timer.Stop()
	}

	p := &pendingDelete{}
	p.timer = time.AfterFunc(grace, func() { m.fire(f, p) })
	e.pending = p
	e.state = StateScheduled
	e.changed = m.now()
}

// fire runs a deferred deletion unless it was cancelled or replaced.
func (m *Manager) fire(f File, p *pendingDelete) {
	m.mu.Lock()
	e, ok := m.entries[f.Path]
	current := ok && e.pending == p
	if current {
		e.pending = nil
	}
	m.mu.Unlock()

	if current && m.Delete(f) {
		m.logger.Info("deferred cleanup removed file", "path", f.Path)
	}
}

// Pending returns the number of armed deferred deletions.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.pending != nil {
			n++
		}
	}
	return n
}

// Close cancels every pending deferred deletion. Files stay on disk for the
// next sweep.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.pending != nil {
			e.pending.timer.Stop()
			e.pending = nil
		}
	}
}
