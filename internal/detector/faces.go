package detector

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// faceFinder locates faces in an RGB frame.
type faceFinder interface {
	find(rgb gocv.Mat) []image.Rectangle
	Close() error
}

func newFaceFinder(cfg Config) (faceFinder, error) {
	if strings.EqualFold(filepath.Ext(cfg.FaceModel), ".onnx") {
		return newYuNetFinder(cfg.FaceModel), nil
	}
	return newCascadeFinder(cfg.FaceModel, cfg.MinFaceSize)
}

// cascadeFinder uses an OpenCV Haar cascade on the grayscale frame.
type cascadeFinder struct {
	classifier gocv.CascadeClassifier
	minSize    image.Point
}

func newCascadeFinder(path string, minFace int) (*cascadeFinder, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, errors.Errorf("load face cascade %s", path)
	}
	return &cascadeFinder{
		classifier: classifier,
		minSize:    image.Pt(minFace, minFace),
	}, nil
}

func (c *cascadeFinder) find(rgb gocv.Mat) []image.Rectangle {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)

	return c.classifier.DetectMultiScaleWithParams(gray, 1.1, 5, 0, c.minSize, image.Point{})
}

func (c *cascadeFinder) Close() error {
	return c.classifier.Close()
}

// yunetFinder uses OpenCV's FaceDetectorYN.
type yunetFinder struct {
	detector gocv.FaceDetectorYN
}

func newYuNetFinder(path string) *yunetFinder {
	// Input size is updated per frame
	detector := gocv.NewFaceDetectorYNWithParams(
		path,
		"",
		image.Pt(320, 320),
		0.5, // score threshold
		0.3, // NMS threshold
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &yunetFinder{detector: detector}
}

func (y *yunetFinder) find(rgb gocv.Mat) []image.Rectangle {
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	y.detector.SetInputSize(image.Pt(bgr.Cols(), bgr.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(bgr, &faces)

	// Rows: x, y, w, h, 5 landmark pairs, score
	rects := make([]image.Rectangle, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		top := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		rects = append(rects, image.Rect(x, top, x+w, top+h))
	}
	return rects
}

func (y *yunetFinder) Close() error {
	y.detector.Close()
	return nil
}
