// Package overlay prepares camera frames for detection and display.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// BoxColor is the color of face boxes and glyphs.
var BoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// BoxThickness is the line width of face boxes in pixels.
const BoxThickness = 2

// Mirror flips src around the vertical axis into dst.
func Mirror(src gocv.Mat, dst *gocv.Mat) {
	gocv.Flip(src, dst, 1)
}

// ToRGB converts a BGR frame into RGB channel order.
func ToRGB(src gocv.Mat, dst *gocv.Mat) {
	gocv.CvtColor(src, dst, gocv.ColorBGRToRGB)
}

// Annotate draws the face box and glyph onto a BGR frame. The glyph sits
// 10 pixels above the box. Hershey fonts have no emoji, so OpenCV draws
// placeholder marks for non-ASCII glyphs.
func Annotate(frame *gocv.Mat, box image.Rectangle, glyph string) {
	gocv.Rectangle(frame, box, BoxColor, BoxThickness)
	gocv.PutTextWithParams(frame, glyph, image.Pt(box.Min.X, box.Min.Y-10),
		gocv.FontHersheySimplex, 1, BoxColor, BoxThickness, gocv.LineAA, false)
}
