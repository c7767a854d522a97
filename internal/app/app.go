// Package app runs the capture loop: it reads camera frames, detects the
// dominant facial emotion and pushes the result to the UI.
package app

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/emojicam/internal/capture"
	"github.com/ayusman/emojicam/internal/detector"
	"github.com/ayusman/emojicam/internal/emotion"
	"github.com/ayusman/emojicam/internal/log"
	"github.com/ayusman/emojicam/internal/overlay"
)

// Loop timing defaults.
const (
	// DefaultTickInterval is the delay between the end of one tick and the next.
	DefaultTickInterval = 30 * time.Millisecond
	// DefaultFailedCloseDelay is how long an initialization error stays on screen.
	DefaultFailedCloseDelay = time.Second
)

// StatusCameraError is shown when the camera cannot be opened.
const StatusCameraError = "Error: Could not open camera. Check camera permissions/connection."

// ErrResourceUnavailable matches every camera or detector initialization failure.
var ErrResourceUnavailable = errors.New("resource unavailable")

// ResourceError reports which resource failed to initialize.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrResourceUnavailable) hold.
func (e *ResourceError) Is(target error) bool { return target == ErrResourceUnavailable }

// State is the lifecycle stage of a CaptureLoop.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateFailed
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DetectorFactory initializes the detector once the camera is open.
type DetectorFactory func() (detector.Detector, error)

// Config holds configuration options for the capture loop.
type Config struct {
	Width            int
	Height           int
	TickInterval     time.Duration
	FailedCloseDelay time.Duration
}

// CaptureLoop owns the camera and detector handles and drives one tick at a
// time through the scheduler. All methods must run on the scheduler's
// goroutine.
type CaptureLoop struct {
	config      Config
	camera      capture.Camera
	newDetector DetectorFactory
	detector    detector.Detector
	renderer    Renderer
	sched       Scheduler
	observers   []Observer

	state        State
	display      DisplayState
	grabFailures int
	done         chan struct{}
}

// New creates a CaptureLoop. Nothing is opened until Start.
func New(config Config, camera capture.Camera, newDetector DetectorFactory, renderer Renderer, sched Scheduler) *CaptureLoop {
	if config.Width <= 0 {
		config.Width = capture.DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = capture.DefaultHeight
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.FailedCloseDelay <= 0 {
		config.FailedCloseDelay = DefaultFailedCloseDelay
	}

	return &CaptureLoop{
		config:      config,
		camera:      camera,
		newDetector: newDetector,
		renderer:    renderer,
		sched:       sched,
		state:       StateUninitialized,
		display: DisplayState{
			Emoji:  emotion.Placeholder,
			Status: emotion.StatusDetecting,
		},
		done: make(chan struct{}),
	}
}

// AddObserver registers o to receive display states. Call before Start.
func (l *CaptureLoop) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// Start opens the camera, then the detector, and runs the first tick.
// On failure the error is shown in the status line, the loop closes itself
// after the failure delay, and an error matching ErrResourceUnavailable is
// returned.
func (l *CaptureLoop) Start() error {
	if l.state != StateUninitialized {
		return nil
	}

	l.renderer.SetEmoji(l.display.Emoji)
	l.renderer.SetStatus(l.display.Status)

	if err := l.camera.Open(); err != nil {
		return l.fail(StatusCameraError, &ResourceError{Resource: "camera", Err: err})
	}

	l.camera.Configure(l.config.Width, l.config.Height)

	d, err := l.newDetector()
	if err != nil {
		return l.fail(fmt.Sprintf("Error initializing detector: %v", err), &ResourceError{Resource: "detector", Err: err})
	}
	l.detector = d

	l.state = StateRunning
	log.Info("Capture loop running", "interval", l.config.TickInterval)

	l.Tick()
	return nil
}

func (l *CaptureLoop) fail(status string, err error) error {
	l.state = StateFailed
	l.display.Status = status
	l.renderer.SetStatus(status)
	log.Error(status, "error", err)

	l.sched.After(l.config.FailedCloseDelay, l.Close)
	return err
}

// Tick runs one capture, detect and render pass, then schedules the next.
func (l *CaptureLoop) Tick() {
	if l.state != StateRunning {
		return
	}

	if !l.camera.IsOpen() || l.detector == nil {
		l.state = StateClosing
		l.sched.After(l.config.FailedCloseDelay, l.Close)
		return
	}

	frame, err := l.camera.ReadFrame()
	if err != nil {
		l.grabFailed(err)
		l.schedule()
		return
	}

	if l.grabFailures > 0 {
		log.Info("Frame capture recovered", "failures", l.grabFailures)
		l.grabFailures = 0
	}

	next := l.process(frame)
	frame.Close()

	l.display = next
	l.renderer.SetEmoji(next.Emoji)
	l.renderer.SetStatus(next.Status)
	l.renderer.SetFrame(next.Frame)

	for _, o := range l.observers {
		o.Observe(next)
	}

	l.schedule()
}

func (l *CaptureLoop) schedule() {
	l.sched.After(l.config.TickInterval, l.Tick)
}

// grabFailed keeps the previous emoji and frame and only updates the status.
func (l *CaptureLoop) grabFailed(err error) {
	l.grabFailures++
	if l.grabFailures == 1 {
		log.Warn(emotion.StatusGrabFailed, "error", err)
	} else {
		log.Debug(emotion.StatusGrabFailed, "error", err, "failures", l.grabFailures)
	}

	l.display.Status = emotion.StatusGrabFailed
	l.renderer.SetStatus(l.display.Status)
}

// process turns a BGR camera frame into the next display state.
func (l *CaptureLoop) process(frame *gocv.Mat) DisplayState {
	view := gocv.NewMat()
	defer view.Close()
	overlay.Mirror(*frame, &view)

	rgb := gocv.NewMat()
	defer rgb.Close()
	overlay.ToRGB(view, &rgb)

	next := DisplayState{
		Emoji:  emotion.Placeholder,
		Status: emotion.StatusNoFace,
		At:     time.Now(),
	}

	detections, err := l.detector.Detect(&rgb)
	if err != nil {
		log.Warn("Emotion detection failed", "error", err)
		detections = nil
	}

	if len(detections) > 0 {
		face := detections[0]
		if label, ok := emotion.Select(face.Scores); ok {
			next.Label = label
			next.Score = face.Scores[label]
			next.Box = face.Box
			next.Emoji = emotion.Emoji(label)
			next.Status = emotion.StatusText(label, next.Score)
			overlay.Annotate(&view, face.Box, next.Emoji)
		} else {
			next.Status = emotion.StatusLowConfidence
		}
	}

	img, err := view.ToImage()
	if err != nil {
		log.Warn("Frame conversion failed", "error", err)
		img = l.display.Frame
	}
	next.Frame = img

	log.Debug("Tick", "status", next.Status, "faces", len(detections))
	return next
}

// RequestClose handles a user's request to exit.
func (l *CaptureLoop) RequestClose() {
	if l.state == StateTerminated {
		return
	}
	l.state = StateClosing
	l.Close()
}

// Close releases the camera and detector exactly once and stops ticking.
func (l *CaptureLoop) Close() {
	if l.state == StateTerminated {
		return
	}
	l.state = StateClosing

	if l.camera.IsOpen() {
		if err := l.camera.Close(); err != nil {
			log.Error("Error closing camera", "error", err)
		} else {
			log.Info("Camera released.")
		}
	}

	if l.detector != nil {
		if err := l.detector.Close(); err != nil {
			log.Error("Error closing detector", "error", err)
		}
		l.detector = nil
	}

	l.state = StateTerminated
	close(l.done)

	l.renderer.Quit()
	log.Info("Application closed.")
}

// State returns the lifecycle stage.
func (l *CaptureLoop) State() State {
	return l.state
}

// Display returns the current display state.
func (l *CaptureLoop) Display() DisplayState {
	return l.display
}

// Done is closed once the loop has terminated.
func (l *CaptureLoop) Done() <-chan struct{} {
	return l.done
}

func logStatus(text string) {
	log.Info("Status", "text", text)
}
