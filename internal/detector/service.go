package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"image"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/emojicam/internal/emotion"
	"github.com/ayusman/emojicam/internal/log"
)

// ServiceDetector implements Detector by delegating to an external process.
//
// Each request is a 4-byte big-endian length followed by a JPEG frame on the
// process stdin; each response is one JSON line on stdout:
//
//	{"faces":[{"box":[x,y,w,h],"emotions":{"happy":0.8,...}}]}
type ServiceDetector struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewServiceDetector checks that the service command exists.
// The process is started lazily on first detection.
func NewServiceDetector(config Config) (*ServiceDetector, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("detection service command not set")
	}
	if _, err := exec.LookPath(config.Command[0]); err != nil {
		return nil, errors.Wrapf(err, "detection service %s", config.Command[0])
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}

	return &ServiceDetector{
		config: config,
	}, nil
}

// Detect sends the RGB frame to the service and returns its detections.
func (d *ServiceDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	// JPEG encoding expects BGR
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(*frame, &bgr, gocv.ColorRGBToBGR)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, bgr)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.kill()
		return nil, err
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.kill()
		return nil, errors.Wrap(err, "read response")
	}

	result, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the service process.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.config.Command[0], d.config.Command[1:]...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "create stdin pipe")
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "create stdout pipe")
	}

	// Surface service diagnostics
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return errors.Wrap(err, "start detection service")
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	log.Info("Detection service started", "pid", d.cmd.Process.Pid)
	return nil
}

func (d *ServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// kill drops a service whose pipe broke; the next Detect restarts it.
func (d *ServiceDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	if err := d.shutdown(); err != nil {
		log.Debug("Detection service exited", "error", err)
	}
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			log.Debug("Idle detection service exited", "error", err)
		}
	})
}

func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return errors.Wrap(err, "write length")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "write data")
	}
	return nil
}

// jsonFace represents one face in the service response.
type jsonFace struct {
	Box      [4]int             `json:"box"`
	Emotions map[string]float64 `json:"emotions"`
}

func parseResponse(line []byte) ([]Detection, error) {
	var response struct {
		Faces []jsonFace `json:"faces"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, errors.Wrap(err, "parse response")
	}
	if response.Error != "" {
		return nil, errors.Errorf("detection service: %s", response.Error)
	}

	result := make([]Detection, len(response.Faces))
	for i, f := range response.Faces {
		result[i] = f.toDetection()
	}
	return result, nil
}

func (f jsonFace) toDetection() Detection {
	x, y, w, h := f.Box[0], f.Box[1], f.Box[2], f.Box[3]
	scores := make(emotion.ScoreMap, len(f.Emotions))
	for name, score := range f.Emotions {
		if l, ok := emotion.ParseLabel(name); ok {
			scores[l] = score
		}
	}
	return Detection{
		Box:    image.Rect(x, y, x+w, y+h),
		Scores: scores,
	}
}
