// Package tray provides the system tray menu for the card overlay.
package tray

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/getlantern/systray"

	"github.com/ayusman/handcard/internal/annotation"
	"github.com/ayusman/handcard/internal/app"
)

// maxStatusRunes bounds the card text shown in the menu.
const maxStatusRunes = 40

// SnapshotSource supplies the state shown in the status line.
type SnapshotSource interface {
	Snapshot() app.Snapshot
}

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onClear  func()
	onOpen   func()
	onQuit   func()
	enabled  bool
	status   string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
		status:  StatusTitle(app.Snapshot{Enabled: true}),
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback for the clear card item.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnOpen sets the callback for the open overlay item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Handcard")
	systray.SetTooltip("Handcard object cards")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand detection")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(t.status, "Current card")
	t.menuStatus.Disable()
	t.mu.Unlock()

	menuClear := systray.AddMenuItem("Clear card", "Remove the current card")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open overlay...", "Open the overlay in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Handcard")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.fire(func() func() { return t.onClear })
			case <-menuOpen.ClickedCh:
				t.fire(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) fire(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.fire(func() func() { return t.onQuit })
	systray.Quit()
}

// Watch refreshes the status line from source until ctx is done.
func (t *Tray) Watch(ctx context.Context, source SnapshotSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		t.SetStatus(source.Snapshot())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetStatus updates the status line and toggle for s.
func (t *Tray) SetStatus(s app.Snapshot) {
	title := StatusTitle(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Enabled != t.enabled {
		t.enabled = s.Enabled
		if t.menuToggle != nil {
			t.menuToggle.SetTitle(toggleTitle(t.enabled))
		}
	}
	if title == t.status {
		return
	}
	t.status = title
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(title)
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// StatusTitle renders a snapshot as a single menu line.
func StatusTitle(s app.Snapshot) string {
	switch {
	case !s.Enabled:
		return "Paused"
	case s.Annotation == nil && s.InProgress:
		return annotation.PlaceholderText
	case s.Annotation == nil:
		return "Hold an object up to the camera"
	}

	if s.Annotation.Content.Kind == annotation.KindPlaceholder {
		return annotation.PlaceholderText
	}
	return truncate(s.Annotation.Content.Text)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxStatusRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxStatusRunes-1]) + "…"
}
