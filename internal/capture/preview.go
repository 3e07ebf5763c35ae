package capture

import (
	"sync"
	"sync/atomic"
)

// Preview holds the most recent encoded frame for MJPEG viewers.
// Frames are only encoded while at least one viewer is watching.
type Preview struct {
	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	changed chan struct{}
	viewers atomic.Int32
}

// NewPreview creates an empty preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Watch registers a viewer. The returned func unregisters it.
func (p *Preview) Watch() (stop func()) {
	p.viewers.Add(1)
	var once sync.Once
	return func() { once.Do(func() { p.viewers.Add(-1) }) }
}

// Watching reports whether anyone is viewing.
func (p *Preview) Watching() bool {
	return p.viewers.Load() > 0
}

// Publish stores a new frame and wakes waiting viewers.
func (p *Preview) Publish(jpeg []byte) {
	p.mu.Lock()
	p.jpeg = jpeg
	p.seq++
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

// Latest returns the newest frame, its sequence number and a channel that is
// closed when a newer frame is published.
func (p *Preview) Latest() ([]byte, uint64, <-chan struct{}) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq, p.changed
}
