package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/assets"
	"github.com/ironsheep/face-overlay/internal/camera"
	"github.com/ironsheep/face-overlay/internal/compositor"
	"github.com/ironsheep/face-overlay/internal/config"
	"github.com/ironsheep/face-overlay/internal/detector"
	"github.com/ironsheep/face-overlay/internal/filters"
	"github.com/ironsheep/face-overlay/internal/session"
)

// app is the wired set of components behind serve and run.
type app struct {
	registry *filters.Registry
	assets   *assets.Cache
	detector detector.Detector
	session  *session.Session

	// prefetched is closed once every catalog asset has settled.
	prefetched <-chan struct{}
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	var fontData []byte
	if cfg.GlyphFont != "" {
		data, err := os.ReadFile(cfg.GlyphFont)
		if err != nil {
			return nil, fmt.Errorf("failed to read glyph font: %w", err)
		}
		fontData = data
	}
	registry := filters.NewRegistry(cfg.AssetBase)
	comp, err := compositor.New(fontData, registry.Glyphs()...)
	if err != nil {
		return nil, err
	}

	cache := assets.NewCache(assets.DefaultOpener(), log.WithField("component", "assets"))
	prefetched := cache.Prefetch(context.WithoutCancel(ctx), registry.Assets())

	det := newDetector(cfg, log)
	cam := camera.NewFFmpeg(cfg.FFmpegBinary, log.WithField("device", cfg.CameraDevice))

	sess := session.New(cam, det, registry, cache, comp, session.Options{
		Constraints: cfg.Constraints(),
		Threshold:   cfg.Threshold,
		Debug:       cfg.Debug,
		Clock:       session.NewRefreshClock(cfg.RefreshRate),
	}, log)

	return &app{
		registry:   registry,
		assets:     cache,
		detector:   det,
		session:    sess,
		prefetched: prefetched,
	}, nil
}

// newDetector picks the worker or the WebSocket client. A worker that cannot
// be spawned is reported through the session when capture starts.
func newDetector(cfg *config.Config, log *logrus.Logger) detector.Detector {
	if argv := cfg.DetectorArgv(); len(argv) > 0 {
		w, err := detector.StartWorker(argv, log.WithField("worker", argv[0]))
		if err != nil {
			log.WithError(err).Error("detector worker failed to start")
			return detector.Unavailable(err)
		}
		return w
	}
	return detector.NewWebSocket(cfg.DetectorURL, log.WithField("detector", cfg.DetectorURL))
}

// Close stops capture and releases the detector.
func (a *app) Close() {
	a.session.Stop()
	if err := a.detector.Close(); err != nil {
		log.WithError(err).Warn("detector close failed")
	}
}
