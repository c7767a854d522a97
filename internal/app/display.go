package app

import (
	"image"
	"time"

	"github.com/ayusman/emojicam/internal/emotion"
)

// DisplayState is what the UI shows after a tick. It is replaced, never
// merged, on every tick.
type DisplayState struct {
	Emoji  string
	Status string
	Frame  image.Image

	// Label and Score describe the selected emotion; Label is empty when
	// nothing was selected.
	Label emotion.Label
	Score float64
	Box   image.Rectangle
	At    time.Time
}

// Renderer shows the display state. The loop calls it from its own
// goroutine; implementations hand the values to their UI thread.
type Renderer interface {
	SetEmoji(glyph string)
	SetStatus(text string)
	SetFrame(frame image.Image)

	// Quit closes the UI after the loop terminated.
	Quit()
}

// Observer receives every display state produced by a successful read.
type Observer interface {
	Observe(state DisplayState)
}

// MultiRenderer fans out to several renderers.
type MultiRenderer []Renderer

func (m MultiRenderer) SetEmoji(glyph string) {
	for _, r := range m {
		r.SetEmoji(glyph)
	}
}

func (m MultiRenderer) SetStatus(text string) {
	for _, r := range m {
		r.SetStatus(text)
	}
}

func (m MultiRenderer) SetFrame(frame image.Image) {
	for _, r := range m {
		r.SetFrame(frame)
	}
}

func (m MultiRenderer) Quit() {
	for _, r := range m {
		r.Quit()
	}
}

// LogRenderer renders to the console only; it backs headless mode.
type LogRenderer struct {
	last string
}

func (l *LogRenderer) SetEmoji(string) {}

func (l *LogRenderer) SetStatus(text string) {
	if text == l.last {
		return
	}
	l.last = text
	logStatus(text)
}

func (l *LogRenderer) SetFrame(image.Image) {}

func (l *LogRenderer) Quit() {}
