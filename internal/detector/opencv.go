package detector

import (
	"image"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/emojicam/internal/emotion"
)

// EmotionInputSize is the side of the square grayscale face fed to the classifier.
const EmotionInputSize = 64

// OpenCVDetector implements Detector with an OpenCV face finder and an
// ONNX emotion classifier run through gocv's dnn module.
type OpenCVDetector struct {
	faces   faceFinder
	net     gocv.Net
	classes []emotion.Label
	softmax bool
	mu      sync.Mutex
}

// NewOpenCVDetector loads the face and emotion models.
func NewOpenCVDetector(cfg Config) (*OpenCVDetector, error) {
	for _, path := range []string{cfg.FaceModel, cfg.EmotionModel} {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(ErrModelNotFound, path)
		}
	}

	classes := cfg.Classes
	if len(classes) == 0 {
		classes = DefaultConfig().Classes
	}

	faces, err := newFaceFinder(cfg)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.EmotionModel)
	if net.Empty() {
		faces.Close()
		return nil, errors.Errorf("load emotion model %s", cfg.EmotionModel)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &OpenCVDetector{
		faces:   faces,
		net:     net,
		classes: classes,
		softmax: cfg.Softmax,
	}, nil
}

// Detect finds faces in the RGB frame and classifies each one.
func (d *OpenCVDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	rects := d.faces.find(*frame)
	if len(rects) == 0 {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorRGBToGray)

	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	detections := make([]Detection, 0, len(rects))
	for _, r := range rects {
		face := r.Intersect(bounds)
		if face.Empty() {
			continue
		}
		scores, err := d.classify(gray, face)
		if err != nil {
			return nil, err
		}
		detections = append(detections, Detection{Box: r, Scores: scores})
	}
	return detections, nil
}

func (d *OpenCVDetector) classify(gray gocv.Mat, face image.Rectangle) (emotion.ScoreMap, error) {
	roi := gray.Region(face)
	defer roi.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(roi, &resized, image.Pt(EmotionInputSize, EmotionInputSize), 0, 0, gocv.InterpolationArea)

	// Scale pixels to [-1, 1]
	blob := gocv.BlobFromImage(resized, 1.0/127.5, image.Pt(EmotionInputSize, EmotionInputSize),
		gocv.NewScalar(127.5, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	n := out.Total()
	if n < len(d.classes) {
		return nil, errors.Errorf("emotion model returned %d outputs, want %d", n, len(d.classes))
	}

	flat := out.Reshape(1, 1)
	defer flat.Close()

	raw := make([]float64, len(d.classes))
	for i := range raw {
		raw[i] = float64(flat.GetFloatAt(0, i))
	}
	return scoresFromOutput(d.classes, raw, d.softmax), nil
}

// Close releases the models.
func (d *OpenCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.faces.Close()
	if cerr := d.net.Close(); err == nil {
		err = cerr
	}
	return err
}

// scoresFromOutput maps classifier outputs to labels, rounding each score
// to two decimals.
func scoresFromOutput(classes []emotion.Label, raw []float64, softmax bool) emotion.ScoreMap {
	if softmax {
		raw = applySoftmax(raw)
	}
	scores := make(emotion.ScoreMap, len(classes))
	for i, l := range classes {
		if i >= len(raw) {
			break
		}
		scores[l] = math.Round(raw[i]*100) / 100
	}
	return scores
}

func applySoftmax(raw []float64) []float64 {
	if len(raw) == 0 {
		return raw
	}
	peak := raw[0]
	for _, v := range raw[1:] {
		peak = math.Max(peak, v)
	}
	out := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
