// Package config loads runtime settings from an optional .env file and
// FACE_OVERLAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ironsheep/face-overlay/internal/camera"
)

// EnvPrefix starts every environment variable the package reads.
const EnvPrefix = "FACE_OVERLAY_"

// Config is the full runtime configuration.
type Config struct {
	CameraDevice string `validate:"required"`
	Width        int    `validate:"gte=0,lte=7680"`
	Height       int    `validate:"gte=0,lte=4320"`
	FrameRate    int    `validate:"gte=0,lte=240"`
	FFmpegBinary string `validate:"required"`

	DetectorURL     string  `validate:"required_without=DetectorCommand,excluded_with=DetectorCommand,omitempty,url"`
	DetectorCommand string  `validate:"required_without=DetectorURL"`
	Threshold       float64 `validate:"gt=0,lte=1"`
	RefreshRate     float64 `validate:"gt=0,lte=240"`

	AssetBase string
	GlyphFont string `validate:"omitempty,file"`
	ExportDir string `validate:"required"`
	Debug     bool

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		CameraDevice: "/dev/video0",
		Width:        640,
		Height:       480,
		FrameRate:    30,
		FFmpegBinary: "ffmpeg",
		DetectorURL:  "ws://127.0.0.1:8765/detect",
		Threshold:    0.5,
		RefreshRate:  60,
		AssetBase:    "assets/filters",
		ExportDir:    ".",
		LogLevel:     "info",
	}
}

// Load reads envFile (or ./.env when envFile is empty and the file exists),
// then applies FACE_OVERLAY_* variables over the defaults. Variables already
// set in the environment win over the file. The result is not validated;
// callers apply flag overrides first and then call Validate.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("CAMERA_DEVICE", &cfg.CameraDevice)
	num("WIDTH", &cfg.Width)
	num("HEIGHT", &cfg.Height)
	num("FPS", &cfg.FrameRate)
	str("FFMPEG", &cfg.FFmpegBinary)
	str("DETECTOR_URL", &cfg.DetectorURL)
	str("DETECTOR_CMD", &cfg.DetectorCommand)
	float("THRESHOLD", &cfg.Threshold)
	float("REFRESH_HZ", &cfg.RefreshRate)
	str("ASSET_BASE", &cfg.AssetBase)
	str("GLYPH_FONT", &cfg.GlyphFont)
	str("EXPORT_DIR", &cfg.ExportDir)
	boolean("DEBUG", &cfg.Debug)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)

	// A worker command replaces the default WebSocket endpoint unless a URL
	// was given explicitly.
	if _, explicit := lookup("DETECTOR_URL"); cfg.DetectorCommand != "" && !explicit {
		cfg.DetectorURL = ""
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Constraints returns the camera request described by the config.
func (c *Config) Constraints() camera.Constraints {
	return camera.Constraints{
		Device:    c.CameraDevice,
		Width:     c.Width,
		Height:    c.Height,
		FrameRate: c.FrameRate,
	}
}

// DetectorArgv splits DetectorCommand into program and arguments.
func (c *Config) DetectorArgv() []string {
	return strings.Fields(c.DetectorCommand)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
