package annotation

import "sync"

// ClearCounter is the monotonically increasing clear request owned by the UI
// surfaces. Each increment asks for the active card to be removed.
type ClearCounter struct {
	mu        sync.Mutex
	value     int
	listeners []func(int)
}

// NewClearCounter returns a counter starting at zero.
func NewClearCounter() *ClearCounter {
	return &ClearCounter{}
}

// Increment bumps the counter and notifies listeners with the new value.
func (c *ClearCounter) Increment() int {
	c.mu.Lock()
	c.value++
	v := c.value
	listeners := append([]func(int){}, c.listeners...)
	c.mu.Unlock()

	// Notify outside the lock so listeners may read the counter.
	for _, fn := range listeners {
		fn(v)
	}
	return v
}

// Value returns the current counter value.
func (c *ClearCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// OnChange registers fn to be called after every increment.
func (c *ClearCounter) OnChange(fn func(int)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
