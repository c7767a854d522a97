package server

import (
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrPreviewClosed is returned once the preview has been shut down.
var ErrPreviewClosed = errors.New("preview closed")

// State is the emoji and status currently on screen.
type State struct {
	Emoji     string `json:"emoji"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Preview mirrors the capture loop's display for HTTP clients. It is an
// app.Renderer: the loop pushes to it, and the stream and state handlers
// read from it.
type Preview struct {
	mu      sync.Mutex
	state   State
	sent    State
	frame   image.Image
	version uint64
	jpeg    []byte
	jpegVer uint64
	changed chan struct{}
	subs    map[chan State]struct{}
	closed  bool
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{
		changed: make(chan struct{}),
		subs:    make(map[chan State]struct{}),
	}
}

// SetEmoji records the glyph; it is published with the next status.
func (p *Preview) SetEmoji(glyph string) {
	p.mu.Lock()
	p.state.Emoji = glyph
	p.mu.Unlock()
}

// SetStatus publishes the state to subscribers if it changed.
func (p *Preview) SetStatus(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.state.Status = text
	if p.state.Emoji == p.sent.Emoji && p.state.Status == p.sent.Status {
		return
	}
	p.state.Timestamp = time.Now().UnixMilli()
	p.sent = p.state

	for ch := range p.subs {
		select {
		case ch <- p.state:
		default:
			// Slow client; it catches up on the next change.
		}
	}
}

// SetFrame stores the latest frame and wakes stream clients.
func (p *Preview) SetFrame(frame image.Image) {
	if frame == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.frame = frame
	p.version++
	close(p.changed)
	p.changed = make(chan struct{})
}

// Quit disconnects every client.
func (p *Preview) Quit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.changed)
	for ch := range p.subs {
		close(ch)
		delete(p.subs, ch)
	}
}

// State returns the last published state.
func (p *Preview) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Subscribe returns a channel of state changes primed with the current
// state, and a function that cancels the subscription.
func (p *Preview) Subscribe() (<-chan State, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, ErrPreviewClosed
	}

	ch := make(chan State, 8)
	if p.sent.Timestamp != 0 {
		ch <- p.sent
	}
	p.subs[ch] = struct{}{}

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// waitFrame returns a channel closed after the next frame (or on Quit) and
// the version of the frame currently held.
func (p *Preview) waitFrame() (<-chan struct{}, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed, p.version, p.closed
}

// JPEG returns the latest frame encoded as JPEG. Each frame is encoded at
// most once, however many clients are streaming.
func (p *Preview) JPEG() ([]byte, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frame == nil {
		return nil, 0, errors.New("no frame yet")
	}
	if p.jpeg != nil && p.jpegVer == p.version {
		return p.jpeg, p.version, nil
	}

	buf, err := encodeJPEG(p.frame)
	if err != nil {
		return nil, 0, err
	}
	p.jpeg = buf
	p.jpegVer = p.version
	return buf, p.version, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	rgba := toRGBA(img)
	b := rgba.Bounds()

	src, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, bgr)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	defer buf.Close()

	// GetBytes aliases native memory freed by Close
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// toRGBA returns img as a tightly packed RGBA image anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
