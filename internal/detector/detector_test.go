package detector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/emojicam/internal/emotion"
)

const epsilon = 1e-9

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	want := []emotion.Label{
		emotion.Angry, emotion.Disgust, emotion.Fear, emotion.Happy,
		emotion.Sad, emotion.Surprise, emotion.Neutral,
	}
	if len(cfg.Classes) != len(want) {
		t.Fatalf("len(Classes) = %d, want %d", len(cfg.Classes), len(want))
	}
	for i := range want {
		if cfg.Classes[i] != want[i] {
			t.Errorf("Classes[%d] = %q, want %q", i, cfg.Classes[i], want[i])
		}
	}
	if cfg.Backend != BackendOpenCV {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendOpenCV)
	}
}

func TestScoresFromOutput(t *testing.T) {
	classes := DefaultConfig().Classes

	t.Run("rounds to two decimals", func(t *testing.T) {
		raw := []float64{0.011, 0.0, 0.004, 0.806, 0.129, 0.05, 0.0}
		scores := scoresFromOutput(classes, raw, false)

		if math.Abs(scores[emotion.Happy]-0.81) > epsilon {
			t.Errorf("happy = %f, want 0.81", scores[emotion.Happy])
		}
		if scores[emotion.Fear] != 0 {
			t.Errorf("fear = %f, want 0 after rounding", scores[emotion.Fear])
		}
		if math.Abs(scores[emotion.Angry]-0.01) > epsilon {
			t.Errorf("angry = %f, want 0.01", scores[emotion.Angry])
		}
	})

	t.Run("softmax normalizes logits", func(t *testing.T) {
		raw := []float64{0, 0, 0, 5, 0, 0, 0}
		scores := scoresFromOutput(classes, raw, true)

		best, ok := emotion.Select(scores)
		if !ok || best != emotion.Happy {
			t.Errorf("Select() = %q, %v; want happy", best, ok)
		}

		var sum float64
		for _, s := range scores {
			sum += s
		}
		if math.Abs(sum-1) > 0.05 {
			t.Errorf("softmax scores sum to %f, want about 1", sum)
		}
	})

	t.Run("short output leaves missing labels out", func(t *testing.T) {
		scores := scoresFromOutput(classes, []float64{0.5, 0.5}, false)
		if len(scores) != 2 {
			t.Errorf("len(scores) = %d, want 2", len(scores))
		}
	})
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "tensorflow"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New() error = %v, want ErrUnknownBackend", err)
	}
}

func TestNewOpenCVDetector_MissingModels(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.FaceModel = filepath.Join(dir, "missing.xml")
	cfg.EmotionModel = filepath.Join(dir, "missing.onnx")

	_, err := NewOpenCVDetector(cfg)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("NewOpenCVDetector() error = %v, want ErrModelNotFound", err)
	}

	_, err = New(cfg)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("New() error = %v, want ErrModelNotFound", err)
	}
}

func TestOpenCVDetector_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := os.Getenv("EMOJICAM_TEST_MODELS")
	if dir == "" {
		t.Skip("EMOJICAM_TEST_MODELS not set")
	}

	cfg := DefaultConfig()
	cfg.FaceModel = filepath.Join(dir, "haarcascade_frontalface_default.xml")
	cfg.EmotionModel = filepath.Join(dir, "emotion_model.onnx")

	d, err := NewOpenCVDetector(cfg)
	if err != nil {
		t.Fatalf("NewOpenCVDetector() error = %v", err)
	}
	defer d.Close()

	// A blank frame has no face
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	detections, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("Detect() on blank frame = %d faces, want 0", len(detections))
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("faces with scores", func(t *testing.T) {
		line := []byte(`{"faces":[{"box":[10,20,100,120],"emotions":{"happy":0.8,"sad":0.1,"contempt":0.9}}]}`)

		got, err := parseResponse(line)
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if got[0].Box != image.Rect(10, 20, 110, 140) {
			t.Errorf("Box = %v, want (10,20)-(110,140)", got[0].Box)
		}
		if got[0].Scores[emotion.Happy] != 0.8 {
			t.Errorf("happy = %f, want 0.8", got[0].Scores[emotion.Happy])
		}
		if _, ok := got[0].Scores[emotion.Label("contempt")]; ok {
			t.Error("unknown label should be dropped")
		}
	})

	t.Run("no faces", func(t *testing.T) {
		got, err := parseResponse([]byte(`{"faces":[]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error":"model crashed"}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseResponse([]byte(`not json`)); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewServiceDetector_Validation(t *testing.T) {
	if _, err := NewServiceDetector(Config{}); err == nil {
		t.Error("expected error for empty command")
	}

	cmd := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := NewServiceDetector(Config{Command: []string{cmd}}); err == nil {
		t.Error("expected error for missing executable")
	}
}

// TestHelperProcess acts as a detection service when invoked by the tests
// below. It answers every frame with one happy face.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("EMOJICAM_WANT_HELPER_PROCESS") != "1" {
		return
	}

	in := bufio.NewReader(os.Stdin)
	for {
		length := make([]byte, 4)
		if _, err := io.ReadFull(in, length); err != nil {
			os.Exit(0)
		}
		data := make([]byte, binary.BigEndian.Uint32(length))
		if _, err := io.ReadFull(in, data); err != nil {
			os.Exit(1)
		}
		fmt.Println(`{"faces":[{"box":[5,6,50,60],"emotions":{"happy":0.75,"neutral":0.2}}]}`)
	}
}

func TestServiceDetector_RoundTrip(t *testing.T) {
	t.Setenv("EMOJICAM_WANT_HELPER_PROCESS", "1")

	d, err := NewServiceDetector(Config{
		Backend: BackendService,
		Command: []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
	})
	if err != nil {
		t.Fatalf("NewServiceDetector() error = %v", err)
	}
	defer d.Close()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 3; i++ {
		got, err := d.Detect(&frame)
		if err != nil {
			t.Fatalf("Detect() %d error = %v", i, err)
		}
		if len(got) != 1 {
			t.Fatalf("Detect() %d returned %d faces, want 1", i, len(got))
		}
		if label, _ := emotion.Select(got[0].Scores); label != emotion.Happy {
			t.Errorf("Detect() %d top label = %q, want happy", i, label)
		}
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// Close is idempotent
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns nothing by default", func(t *testing.T) {
		mock := NewMockDetector()

		got, err := mock.Detect(nil)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil detections, got %v", got)
		}
	})

	t.Run("returns configured detections", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetDetections([]Detection{HappyFace()})

		got, err := mock.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 detection, got %d", len(got))
		}
		if mock.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		want := errors.New("inference failed")
		mock.SetError(want)

		if _, err := mock.Detect(nil); err != want {
			t.Errorf("error = %v, want %v", err, want)
		}
	})

	t.Run("presets", func(t *testing.T) {
		if l, ok := emotion.Select(HappyFace().Scores); !ok || l != emotion.Happy {
			t.Errorf("HappyFace selects %q, %v", l, ok)
		}
		if _, ok := emotion.Select(BlankFace().Scores); ok {
			t.Error("BlankFace should select nothing")
		}
	})

	t.Run("close is counted", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Close()
		if mock.Closed() != 1 {
			t.Errorf("Closed() = %d, want 1", mock.Closed())
		}
	})
}
