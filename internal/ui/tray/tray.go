// Package tray shows the current emotion in the system tray instead of a
// window.
package tray

import (
	"image"
	"sync"

	"github.com/getlantern/systray"
)

// Tray is an app.Renderer backed by the system tray: the title carries the
// emoji and a disabled menu item carries the status line.
type Tray struct {
	title     string
	onPreview func()
	onQuit    func()
	mu        sync.RWMutex

	emoji  string
	status string
	ready  bool

	// Menu items stored for later updates
	menuStatus  *systray.MenuItem
	menuPreview *systray.MenuItem
}

// New creates a new Tray with the given tooltip title.
func New(title string) *Tray {
	return &Tray{title: title}
}

// OnPreview sets the callback for the "Open Preview" menu item. The item is
// only shown when a callback is set before Run.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(t.emoji)
	systray.SetTooltip(t.title)

	t.menuStatus = systray.AddMenuItem(statusTitle(t.status), "Current status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	if t.onPreview != nil {
		t.menuPreview = systray.AddMenuItem("Open Preview...", "Open the live preview in a browser")
		systray.AddSeparator()
	}

	menuQuit := systray.AddMenuItem("Quit", "Quit "+t.title)
	t.ready = true
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		var previewCh chan struct{}
		if t.menuPreview != nil {
			previewCh = t.menuPreview.ClickedCh
		}
		for {
			select {
			case <-previewCh:
				t.handlePreview()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.mu.Lock()
	t.ready = false
	t.mu.Unlock()
}

func (t *Tray) handlePreview() {
	t.mu.RLock()
	callback := t.onPreview
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit asks the application to close; the tray itself exits when the
// capture loop calls Quit.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
		return
	}
	systray.Quit()
}

// SetEmoji shows glyph as the tray title.
func (t *Tray) SetEmoji(glyph string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if glyph == t.emoji {
		return
	}
	t.emoji = glyph
	if t.ready {
		systray.SetTitle(glyph)
	}
}

// SetStatus updates the status menu item.
func (t *Tray) SetStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text == t.status {
		return
	}
	t.status = text
	if t.ready && t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(text))
	}
}

// SetFrame is a no-op; the tray has no video surface.
func (t *Tray) SetFrame(image.Image) {}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// Emoji returns the glyph last set.
func (t *Tray) Emoji() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.emoji
}

// Status returns the status text last set.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func statusTitle(status string) string {
	if status == "" {
		return "Status: starting"
	}
	return "Status: " + status
}
