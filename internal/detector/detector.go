// Package detector finds faces in video frames and scores their emotions.
package detector

import (
	"image"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/emojicam/internal/emotion"
)

// Backends accepted by New.
const (
	BackendOpenCV  = "opencv"
	BackendService = "service"
)

var (
	// ErrModelNotFound is returned when a model file is missing.
	ErrModelNotFound = errors.New("model file not found")

	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown detector backend")
)

// Detection is one located face and its emotion scores.
type Detection struct {
	Box    image.Rectangle  `json:"box"`
	Scores emotion.ScoreMap `json:"emotions"`
}

// Detector defines the interface for face emotion detection implementations.
type Detector interface {
	// Detect analyzes an RGB frame and returns the faces found, in the
	// backend's order. Returns an empty slice if no face is detected.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for emotion detection.
type Config struct {
	Backend string

	// FaceModel is a Haar cascade XML file, or a YuNet .onnx model.
	FaceModel string

	// EmotionModel is an ONNX classifier taking a 64x64 grayscale face.
	EmotionModel string

	// Classes lists the labels of the classifier outputs, in output order.
	Classes []emotion.Label

	// Softmax normalizes raw classifier outputs when the model emits logits.
	Softmax bool

	// MinFaceSize is the smallest face side in pixels the cascade reports.
	MinFaceSize int

	// Command starts the external detection service (service backend).
	Command []string

	// IdleTimeout stops an unused service process.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
// The class order matches the common FER2013 classifiers.
func DefaultConfig() Config {
	return Config{
		Backend: BackendOpenCV,
		Classes: []emotion.Label{
			emotion.Angry,
			emotion.Disgust,
			emotion.Fear,
			emotion.Happy,
			emotion.Sad,
			emotion.Surprise,
			emotion.Neutral,
		},
		MinFaceSize: 50,
		IdleTimeout: 30 * time.Second,
	}
}

// New creates the detector selected by cfg.Backend.
func New(cfg Config) (Detector, error) {
	switch cfg.Backend {
	case BackendOpenCV, "":
		return NewOpenCVDetector(cfg)
	case BackendService:
		return NewServiceDetector(cfg)
	default:
		return nil, errors.Wrap(ErrUnknownBackend, cfg.Backend)
	}
}
