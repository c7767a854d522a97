// Package config loads emojicam settings from a YAML file and the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// UI modes.
const (
	UIWindow = "window"
	UITray   = "tray"
	UINone   = "none"
)

// Detector backends.
const (
	BackendOpenCV  = "opencv"
	BackendService = "service"
)

// Config holds every emojicam setting.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Loop     LoopConfig     `yaml:"loop"`
	Detector DetectorConfig `yaml:"detector"`
	UI       UIConfig       `yaml:"ui"`
	Journal  JournalConfig  `yaml:"journal"`
	Preview  PreviewConfig  `yaml:"preview"`
	LogLevel string         `yaml:"log_level"`
}

type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type LoopConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	FailedCloseDelay time.Duration `yaml:"failed_close_delay"`
}

type DetectorConfig struct {
	Backend      string   `yaml:"backend"`
	FaceModel    string   `yaml:"face_model"`
	EmotionModel string   `yaml:"emotion_model"`
	Command      []string `yaml:"command"` // service backend only
}

type UIConfig struct {
	Mode  string `yaml:"mode"`
	Title string `yaml:"title"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type PreviewConfig struct {
	Addr      string `yaml:"addr"` // empty disables the preview server
	StaticDir string `yaml:"static_dir"`
}

// Dir returns the emojicam data directory (~/.emojicam).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".emojicam"
	}
	return filepath.Join(home, ".emojicam")
}

// Default returns a Config with the stock settings.
func Default() *Config {
	dir := Dir()
	return &Config{
		Camera: CameraConfig{
			Device: 0,
			Width:  640,
			Height: 480,
		},
		Loop: LoopConfig{
			TickInterval:     30 * time.Millisecond,
			FailedCloseDelay: time.Second,
		},
		Detector: DetectorConfig{
			Backend:      BackendOpenCV,
			FaceModel:    filepath.Join(dir, "models", "haarcascade_frontalface_default.xml"),
			EmotionModel: filepath.Join(dir, "models", "emotion_model.onnx"),
		},
		UI: UIConfig{
			Mode:  UIWindow,
			Title: "Emoji Camera",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    filepath.Join(dir, "emojicam.db"),
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the location of the optional config file.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads path (if it exists) over the defaults, then applies the
// environment. A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Camera.Device = envInt("EMOJICAM_CAMERA", c.Camera.Device)
	c.Camera.Width = envInt("EMOJICAM_WIDTH", c.Camera.Width)
	c.Camera.Height = envInt("EMOJICAM_HEIGHT", c.Camera.Height)
	c.Loop.TickInterval = envDuration("EMOJICAM_TICK_INTERVAL", c.Loop.TickInterval)
	c.Detector.Backend = envString("EMOJICAM_DETECTOR", c.Detector.Backend)
	c.Detector.FaceModel = envString("EMOJICAM_FACE_MODEL", c.Detector.FaceModel)
	c.Detector.EmotionModel = envString("EMOJICAM_EMOTION_MODEL", c.Detector.EmotionModel)
	c.UI.Mode = envString("EMOJICAM_UI", c.UI.Mode)
	c.Journal.Path = envString("EMOJICAM_JOURNAL", c.Journal.Path)
	if v := os.Getenv("EMOJICAM_JOURNAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Journal.Enabled = b
		}
	}
	c.Preview.Addr = envString("EMOJICAM_PREVIEW_ADDR", c.Preview.Addr)
	c.Preview.StaticDir = envString("EMOJICAM_PREVIEW_STATIC", c.Preview.StaticDir)
	c.LogLevel = envString("EMOJICAM_LOG_LEVEL", c.LogLevel)
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.Camera.Device < 0 {
		return errors.Errorf("camera device must not be negative, got %d", c.Camera.Device)
	}
	if c.Loop.TickInterval <= 0 {
		return errors.Errorf("tick interval must be positive, got %s", c.Loop.TickInterval)
	}
	if c.Loop.FailedCloseDelay < 0 {
		return errors.Errorf("failed close delay must not be negative, got %s", c.Loop.FailedCloseDelay)
	}
	switch c.Detector.Backend {
	case BackendOpenCV:
	case BackendService:
		if len(c.Detector.Command) == 0 {
			return errors.New("service detector requires a command")
		}
	default:
		return errors.Errorf("unknown detector backend %q", c.Detector.Backend)
	}
	switch c.UI.Mode {
	case UIWindow, UITray, UINone:
	default:
		return errors.Errorf("unknown ui mode %q", c.UI.Mode)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envInt reads an environment variable as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}
