package annotation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handcard/internal/placement"
	"github.com/ayusman/handcard/internal/spatial"
)

// Annotation is a card anchored in world space.
type Annotation struct {
	ID        string            `json:"id"`
	Transform spatial.Transform `json:"transform"`
	Path      placement.Path    `json:"path"`
	Content   Content           `json:"content"`
	PlacedAt  time.Time         `json:"placed_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Manager holds at most one active annotation.
//
// Place, UpdateContent and CheckClear are meant to be called from a single
// goroutine (the coordinator loop). Current and Version may be called from any
// goroutine and always observe either the old or the new card, never both.
type Manager struct {
	mu        sync.RWMutex
	current   *Annotation
	lastClear int
	version   atomic.Uint64
	now       func() time.Time
}

// NewManager creates a Manager that treats initialClearSignal as already processed.
func NewManager(initialClearSignal int) *Manager {
	return &Manager{
		lastClear: initialClearSignal,
		now:       time.Now,
	}
}

// Place replaces any active annotation with a new placeholder card and returns its id.
func (m *Manager) Place(p placement.Placement) string {
	now := m.now()
	a := &Annotation{
		ID:        uuid.New().String(),
		Transform: p.Transform,
		Path:      p.Path,
		Content:   Placeholder(),
		PlacedAt:  now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.current = a
	m.mu.Unlock()
	m.version.Add(1)

	return a.ID
}

// UpdateContent sets the content of the active annotation if its id matches.
// A stale id is ignored and reported as false.
func (m *Manager) UpdateContent(id string, c Content) bool {
	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return false
	}

	updated := *m.current
	updated.Content = c
	updated.UpdatedAt = m.now()
	m.current = &updated
	m.mu.Unlock()

	m.version.Add(1)
	return true
}

// CheckClear removes the active annotation when signal is newer than the last
// processed signal. It reports whether a clear was processed.
func (m *Manager) CheckClear(signal int) bool {
	m.mu.Lock()
	if signal <= m.lastClear {
		m.mu.Unlock()
		return false
	}
	m.lastClear = signal
	m.current = nil
	m.mu.Unlock()

	m.version.Add(1)
	return true
}

// Current returns a copy of the active annotation.
func (m *Manager) Current() (Annotation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return Annotation{}, false
	}
	return *m.current, true
}

// LastClearSignal returns the most recent clear signal processed.
func (m *Manager) LastClearSignal() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastClear
}

// Version increases on every visible change.
func (m *Manager) Version() uint64 {
	return m.version.Load()
}
