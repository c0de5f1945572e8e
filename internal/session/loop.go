package session

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/camera"
	"github.com/ironsheep/face-overlay/internal/compositor"
	"github.com/ironsheep/face-overlay/internal/face"
	"github.com/ironsheep/face-overlay/internal/geometry"
)

// loop runs one detect, resolve and composite cycle per clock tick until ctx
// is cancelled or the stream ends. Cycles never overlap.
func (s *Session) loop(ctx context.Context, stream camera.Stream, done chan struct{}, log logrus.FieldLogger) {
	defer close(done)

	var (
		lastSeq   uint64
		failing   bool
		lastError string
	)

	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.opts.Clock.Wait(ctx); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		frame, seq, ok := stream.Latest()
		if !ok || seq == lastSeq {
			if stream.Tracks() == 0 {
				s.streamEnded(log)
				return
			}
			s.framesSkipped.Add(1)
			continue
		}
		lastSeq = seq

		dets, err := s.detector.Detect(ctx, frame, s.opts.Threshold)
		// Stop may have landed while the detector was busy.
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.detectorErrors.Add(1)
			if !failing || err.Error() != lastError {
				log.WithError(err).Warn("face detection failed")
			}
			failing, lastError = true, err.Error()
			dets = nil
		} else if failing {
			log.Info("face detection recovered")
			failing, lastError = false, ""
		}
		s.detections.Add(uint64(len(dets)))

		s.draw(frame, dets)
	}
}

// draw resolves the active filter against the first detection and composites
// the frame. Zero detections still draw the video.
func (s *Session) draw(frame image.Image, dets []face.Detection) {
	filter := s.active.Load()

	var (
		aspects geometry.AspectSource
		images  compositor.ImageSource
	)
	if s.assets != nil {
		aspects, images = s.assets, s.assets
	}

	placement := geometry.Hidden
	det, found := firstDetection(dets)
	if filter != nil && filter.Resolver != nil && found {
		b := frame.Bounds()
		placement = filter.Resolver.Resolve(det, geometry.Size{Width: b.Dx(), Height: b.Dy()}, aspects)
	}

	s.surfaceMu.Lock()
	s.overlay = s.compositor.Draw(s.surface, frame, filter, placement, images)
	s.placement = placement
	if s.opts.Debug {
		for _, d := range dets {
			compositor.DrawDebug(s.surface, d)
		}
	}
	s.surfaceMu.Unlock()

	s.framesDrawn.Add(1)
}

// streamEnded returns a Running session to Idle when the camera goes away on
// its own.
func (s *Session) streamEnded(log logrus.FieldLogger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return
	}
	log.Warn("camera stream ended")
	s.stream.Stop()
	s.stream = nil
	s.state = Idle
	s.message = "The camera stream ended."
	s.cancel()
}
