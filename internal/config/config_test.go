package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Camera.Device != 0 {
		t.Errorf("Camera.Device = %d, want 0", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Loop.TickInterval != 30*time.Millisecond {
		t.Errorf("TickInterval = %s, want 30ms", cfg.Loop.TickInterval)
	}
	if cfg.Loop.FailedCloseDelay != time.Second {
		t.Errorf("FailedCloseDelay = %s, want 1s", cfg.Loop.FailedCloseDelay)
	}
	if cfg.Journal.Enabled {
		t.Error("journal should be disabled by default")
	}
	if cfg.Preview.Addr != "" {
		t.Errorf("Preview.Addr = %q, want empty", cfg.Preview.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UI.Mode != UIWindow {
		t.Errorf("UI.Mode = %q, want %q", cfg.UI.Mode, UIWindow)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
camera:
  device: 2
loop:
  tick_interval: 50ms
ui:
  mode: tray
journal:
  enabled: true
  path: /tmp/journal.db
preview:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.Device != 2 {
		t.Errorf("Camera.Device = %d, want 2", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 640 {
		t.Errorf("Camera.Width = %d, want default 640", cfg.Camera.Width)
	}
	if cfg.Loop.TickInterval != 50*time.Millisecond {
		t.Errorf("TickInterval = %s, want 50ms", cfg.Loop.TickInterval)
	}
	if cfg.UI.Mode != UITray {
		t.Errorf("UI.Mode = %q, want tray", cfg.UI.Mode)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "/tmp/journal.db" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if cfg.Preview.Addr != ":9090" {
		t.Errorf("Preview.Addr = %q, want :9090", cfg.Preview.Addr)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("camera:\n  device: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EMOJICAM_CAMERA", "3")
	t.Setenv("EMOJICAM_UI", "none")
	t.Setenv("EMOJICAM_JOURNAL_ENABLED", "true")
	t.Setenv("EMOJICAM_TICK_INTERVAL", "not-a-duration")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.Device != 3 {
		t.Errorf("Camera.Device = %d, want 3", cfg.Camera.Device)
	}
	if cfg.UI.Mode != UINone {
		t.Errorf("UI.Mode = %q, want none", cfg.UI.Mode)
	}
	if !cfg.Journal.Enabled {
		t.Error("journal should be enabled by env")
	}
	if cfg.Loop.TickInterval != 30*time.Millisecond {
		t.Errorf("invalid env duration should keep default, got %s", cfg.Loop.TickInterval)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("camera: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative device", func(c *Config) { c.Camera.Device = -1 }, true},
		{"zero interval", func(c *Config) { c.Loop.TickInterval = 0 }, true},
		{"negative close delay", func(c *Config) { c.Loop.FailedCloseDelay = -time.Second }, true},
		{"unknown backend", func(c *Config) { c.Detector.Backend = "tensorflow" }, true},
		{"service without command", func(c *Config) { c.Detector.Backend = BackendService }, true},
		{"service with command", func(c *Config) {
			c.Detector.Backend = BackendService
			c.Detector.Command = []string{"python3", "fer_service.py"}
		}, false},
		{"unknown ui", func(c *Config) { c.UI.Mode = "tk" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
