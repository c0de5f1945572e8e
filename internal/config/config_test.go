package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every variable the package reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CAMERA_DEVICE", "WIDTH", "HEIGHT", "FPS", "FFMPEG", "DETECTOR_URL",
		"DETECTOR_CMD", "THRESHOLD", "REFRESH_HZ", "ASSET_BASE", "GLYPH_FONT",
		"EXPORT_DIR", "DEBUG", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(EnvPrefix+name, "")
	}
}

// chdir switches the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore Chdir: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Threshold != 0.5 || cfg.RefreshRate != 60 || cfg.CameraDevice != "/dev/video0" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(EnvPrefix+"CAMERA_DEVICE", "clip.mp4")
	t.Setenv(EnvPrefix+"WIDTH", "1280")
	t.Setenv(EnvPrefix+"HEIGHT", "720")
	t.Setenv(EnvPrefix+"THRESHOLD", "0.7")
	t.Setenv(EnvPrefix+"DEBUG", "true")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := cfg.Constraints()
	if c.Device != "clip.mp4" || c.Width != 1280 || c.Height != 720 || c.FrameRate != 30 {
		t.Errorf("constraints: %+v", c)
	}
	if cfg.Threshold != 0.7 || !cfg.Debug || cfg.LogLevel != "debug" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that already exist, so unset the
	// ones the file provides.
	os.Unsetenv(EnvPrefix + "FPS")
	os.Unsetenv(EnvPrefix + "DETECTOR_CMD")

	path := filepath.Join(t.TempDir(), "overlay.env")
	content := "FACE_OVERLAY_FPS=15\nFACE_OVERLAY_DETECTOR_CMD=python3 -u detector.py\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv(EnvPrefix + "FPS")
		os.Unsetenv(EnvPrefix + "DETECTOR_CMD")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FrameRate != 15 {
		t.Errorf("FrameRate: got %d, want 15", cfg.FrameRate)
	}
	if cfg.DetectorURL != "" {
		t.Errorf("a worker command should clear the default URL, got %q", cfg.DetectorURL)
	}
	argv := cfg.DetectorArgv()
	if len(argv) != 3 || argv[0] != "python3" || argv[2] != "detector.py" {
		t.Errorf("argv: %q", argv)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("worker config should validate: %v", err)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for an explicit missing env file")
	}
}

func TestLoad_BadNumbers(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(EnvPrefix+"WIDTH", "wide")
	t.Setenv(EnvPrefix+"THRESHOLD", "high")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for _, name := range []string{"WIDTH", "THRESHOLD"} {
		if !strings.Contains(err.Error(), EnvPrefix+name) {
			t.Errorf("error should name %s: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"threshold too high", func(c *Config) { c.Threshold = 1.5 }, "Threshold"},
		{"threshold zero", func(c *Config) { c.Threshold = 0 }, "Threshold"},
		{"no detector", func(c *Config) { c.DetectorURL = "" }, "DetectorURL"},
		{"both detectors", func(c *Config) { c.DetectorCommand = "python3 d.py" }, "excluded_with"},
		{"bad url", func(c *Config) { c.DetectorURL = "not a url" }, "url"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"no device", func(c *Config) { c.CameraDevice = "" }, "CameraDevice"},
		{"missing font", func(c *Config) { c.GlyphFont = "/no/such/font.ttf" }, "GlyphFont"},
		{"negative width", func(c *Config) { c.Width = -1 }, "Width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
