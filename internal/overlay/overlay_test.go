package overlay

import (
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func setBGR(m *gocv.Mat, row, col int, b, g, r uint8) {
	m.SetUCharAt(row, col*3, b)
	m.SetUCharAt(row, col*3+1, g)
	m.SetUCharAt(row, col*3+2, r)
}

func bgrAt(m gocv.Mat, row, col int) (uint8, uint8, uint8) {
	return m.GetUCharAt(row, col*3), m.GetUCharAt(row, col*3+1), m.GetUCharAt(row, col*3+2)
}

func TestMirror(t *testing.T) {
	src := gocv.NewMatWithSize(1, 3, gocv.MatTypeCV8UC3)
	defer src.Close()
	setBGR(&src, 0, 0, 10, 20, 30)
	setBGR(&src, 0, 2, 40, 50, 60)

	dst := gocv.NewMat()
	defer dst.Close()
	Mirror(src, &dst)

	if b, g, r := bgrAt(dst, 0, 2); b != 10 || g != 20 || r != 30 {
		t.Errorf("dst(0,2) = %d,%d,%d, want 10,20,30", b, g, r)
	}
	if b, g, r := bgrAt(dst, 0, 0); b != 40 || g != 50 || r != 60 {
		t.Errorf("dst(0,0) = %d,%d,%d, want 40,50,60", b, g, r)
	}
}

func TestToRGB(t *testing.T) {
	src := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV8UC3)
	defer src.Close()
	setBGR(&src, 0, 0, 1, 2, 3)

	dst := gocv.NewMat()
	defer dst.Close()
	ToRGB(src, &dst)

	if c0, c1, c2 := bgrAt(dst, 0, 0); c0 != 3 || c1 != 2 || c2 != 1 {
		t.Errorf("dst(0,0) = %d,%d,%d, want 3,2,1", c0, c1, c2)
	}
}

func TestAnnotate_DrawsGreenBox(t *testing.T) {
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	box := image.Rect(100, 80, 200, 180)
	Annotate(&frame, box, "😄")

	// Left edge of the box, below the glyph area
	b, g, r := bgrAt(frame, 130, 100)
	if b != 0 || g != 255 || r != 0 {
		t.Errorf("box edge pixel = %d,%d,%d, want 0,255,0", b, g, r)
	}

	// Inside the box stays untouched
	if b, g, r := bgrAt(frame, 130, 150); b != 0 || g != 0 || r != 0 {
		t.Errorf("interior pixel = %d,%d,%d, want black", b, g, r)
	}
}
