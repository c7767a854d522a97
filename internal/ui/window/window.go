// Package window renders the capture loop in a desktop window.
package window

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Layout sizes.
const (
	EmojiSize  = 100
	StatusSize = 16
)

// Window is an app.Renderer showing the mirrored video feed with the emoji
// and status line stacked below it. Every widget update is marshalled to
// the fyne main goroutine.
type Window struct {
	app    fyne.App
	win    fyne.Window
	feed   *canvas.Image
	emoji  *canvas.Text
	status *canvas.Text

	mu      sync.Mutex
	onClose func()
	quit    sync.Once
}

// New creates the window on a fresh fyne application.
func New(title string, width, height int) *Window {
	return NewWithApp(app.New(), title, width, height)
}

// NewWithApp creates the window on an existing fyne application.
func NewWithApp(a fyne.App, title string, width, height int) *Window {
	w := &Window{
		app:    a,
		win:    a.NewWindow(title),
		feed:   canvas.NewImageFromImage(nil),
		emoji:  canvas.NewText("", nil),
		status: canvas.NewText("", nil),
	}

	w.feed.FillMode = canvas.ImageFillContain
	w.feed.SetMinSize(fyne.NewSize(float32(width), float32(height)))

	w.emoji.TextSize = EmojiSize
	w.emoji.Alignment = fyne.TextAlignCenter
	w.status.TextSize = StatusSize
	w.status.Alignment = fyne.TextAlignCenter

	w.win.SetContent(container.NewBorder(
		nil,
		container.NewVBox(w.emoji, w.status, widget.NewSeparator()),
		nil, nil,
		w.feed,
	))
	w.win.SetCloseIntercept(w.requestClose)
	return w
}

// OnClose sets the handler run when the user closes the window. The window
// stays open until Quit; without a handler it quits immediately.
func (w *Window) OnClose(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onClose = fn
}

func (w *Window) requestClose() {
	w.mu.Lock()
	fn := w.onClose
	w.mu.Unlock()

	if fn == nil {
		w.Quit()
		return
	}
	fn()
}

// SetEmoji replaces the emoji label.
func (w *Window) SetEmoji(glyph string) {
	fyne.Do(func() {
		w.emoji.Text = glyph
		w.emoji.Refresh()
	})
}

// SetStatus replaces the status line.
func (w *Window) SetStatus(text string) {
	fyne.Do(func() {
		w.status.Text = text
		w.status.Refresh()
	})
}

// SetFrame shows the next video frame.
func (w *Window) SetFrame(frame image.Image) {
	if frame == nil {
		return
	}
	fyne.Do(func() {
		w.feed.Image = frame
		w.feed.Refresh()
	})
}

// Quit closes the window and stops the fyne event loop, making Run return.
func (w *Window) Quit() {
	w.quit.Do(func() {
		fyne.Do(func() {
			w.win.Close()
			w.app.Quit()
		})
	})
}

// Run shows the window and blocks on the fyne event loop. It must be called
// from the main goroutine.
func (w *Window) Run() {
	w.win.ShowAndRun()
}
