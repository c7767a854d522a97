package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/emojicam/internal/emotion"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	err        error
	calls      int
	closed     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

// Close records the call.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Calls reports how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports how many times Close ran.
func (m *MockDetector) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// HappyFace returns a preset detection dominated by happiness.
func HappyFace() Detection {
	return Detection{
		Box: image.Rect(200, 120, 360, 280),
		Scores: emotion.ScoreMap{
			emotion.Happy:    0.8,
			emotion.Angry:    0.0,
			emotion.Surprise: 0.05,
			emotion.Sad:      0.1,
			emotion.Disgust:  0.0,
			emotion.Fear:     0.0,
			emotion.Neutral:  0.0,
		},
	}
}

// BlankFace returns a preset detection where no emotion scored above zero.
func BlankFace() Detection {
	scores := make(emotion.ScoreMap)
	for _, l := range emotion.Labels() {
		scores[l] = 0
	}
	return Detection{
		Box:    image.Rect(100, 100, 220, 220),
		Scores: scores,
	}
}
