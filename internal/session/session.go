package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/assets"
	"github.com/ironsheep/face-overlay/internal/camera"
	"github.com/ironsheep/face-overlay/internal/compositor"
	"github.com/ironsheep/face-overlay/internal/detector"
	"github.com/ironsheep/face-overlay/internal/face"
	"github.com/ironsheep/face-overlay/internal/filters"
	"github.com/ironsheep/face-overlay/internal/geometry"
)

// ExportPrefix starts every exported file name.
const ExportPrefix = "face-overlay-"

var (
	// ErrAlreadyActive is returned by Start when a capture is in progress.
	ErrAlreadyActive = errors.New("capture already active")
	// ErrDisabled is returned by Start once the detector has been found
	// unavailable. The session stays Failed for the rest of the process.
	ErrDisabled = errors.New("capture disabled: face detection unavailable")
	// ErrNoFrame is returned by Export and Snapshot before anything has been
	// composited.
	ErrNoFrame = errors.New("no frame has been composited yet")
)

// State is the capture lifecycle stage.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options tune a session.
type Options struct {
	Constraints camera.Constraints
	// Threshold is the minimum detection confidence.
	Threshold float64
	// Debug draws face boxes and landmarks over the composited frame.
	Debug bool
	// Clock paces the loop; nil uses a RefreshClock at DefaultRefreshRate.
	Clock Clock
}

// Counters summarize loop activity since the last Start.
type Counters struct {
	FramesDrawn    uint64 `json:"frames_drawn"`
	FramesSkipped  uint64 `json:"frames_skipped"`
	Detections     uint64 `json:"detections"`
	DetectorErrors uint64 `json:"detector_errors"`
}

// Status is a point-in-time view of the session.
type Status struct {
	State     State              `json:"state"`
	Message   string             `json:"message,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Filter    string             `json:"filter,omitempty"`
	Overlay   compositor.Overlay `json:"overlay"`
	Placement geometry.Placement `json:"placement"`
	Surface   geometry.Size      `json:"surface"`
	Counters  Counters           `json:"counters"`
}

// Session owns the camera stream, the output surface and the capture loop.
// At most one capture runs at a time.
type Session struct {
	camera     camera.Camera
	detector   detector.Detector
	registry   *filters.Registry
	assets     *assets.Cache
	compositor *compositor.Compositor
	opts       Options
	log        logrus.FieldLogger
	now        func() time.Time

	active atomic.Pointer[filters.Filter]

	mu      sync.Mutex
	state   State
	message string
	id      string
	stream  camera.Stream
	cancel  context.CancelFunc
	done    chan struct{}

	surfaceMu sync.Mutex
	surface   *compositor.Surface
	overlay   compositor.Overlay
	placement geometry.Placement

	framesDrawn    atomic.Uint64
	framesSkipped  atomic.Uint64
	detections     atomic.Uint64
	detectorErrors atomic.Uint64
}

// New wires a session. The session does not own cam, det or cache; closing
// them is the caller's job.
func New(cam camera.Camera, det detector.Detector, registry *filters.Registry, cache *assets.Cache, comp *compositor.Compositor, opts Options, log logrus.FieldLogger) *Session {
	if opts.Threshold <= 0 {
		opts.Threshold = detector.DefaultThreshold
	}
	if opts.Clock == nil {
		opts.Clock = NewRefreshClock(DefaultRefreshRate)
	}
	return &Session{
		camera:     cam,
		detector:   det,
		registry:   registry,
		assets:     cache,
		compositor: comp,
		opts:       opts,
		log:        log,
		now:        time.Now,
		surface:    compositor.NewSurface(),
		overlay:    compositor.OverlayNone,
	}
}

// SelectFilter makes id the active filter. It takes effect on the next cycle
// without restarting the capture, and starts loading the filter's art if it
// is not cached yet.
func (s *Session) SelectFilter(id string) (*filters.Filter, error) {
	f, ok := s.registry.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", filters.ErrUnknownFilter, id)
	}
	s.active.Store(f)
	if f.Visual.Asset != nil && s.assets != nil {
		s.assets.Prefetch(context.Background(), []assets.Ref{*f.Visual.Asset})
	}
	s.log.WithField("filter", f.ID).Info("filter selected")
	return f, nil
}

// ClearFilter deselects the active filter; only video is drawn afterwards.
func (s *Session) ClearFilter() {
	s.active.Store(nil)
	s.log.Info("filter cleared")
}

// ActiveFilter returns the selected filter, or nil.
func (s *Session) ActiveFilter() *filters.Filter {
	return s.active.Load()
}

// Start checks the detector, opens the camera and launches the capture loop.
// It blocks until the stream is granted or refused.
//
// A detector that fails its readiness check moves the session to Failed
// permanently and Start returns an error wrapping ErrDisabled. A refused or
// missing camera returns the session to Idle with a user-facing message, and
// Start may be called again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Idle:
	case Failed:
		s.mu.Unlock()
		return ErrDisabled
	default:
		s.mu.Unlock()
		return ErrAlreadyActive
	}

	// The loop outlives the Start call; only Stop cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.state = Starting
	s.message = ""
	s.id = uuid.NewString()
	s.cancel = cancel
	s.done = done
	s.resetCounters()
	log := s.log.WithField("session", s.id)
	s.mu.Unlock()

	// Starting is abandoned when either the caller or Stop gives up.
	startCtx, stopStarting := context.WithCancel(runCtx)
	defer stopStarting()
	unhook := context.AfterFunc(ctx, stopStarting)
	defer unhook()

	log.Info("capture starting")

	if err := s.detector.Ready(startCtx); err != nil {
		if runCtx.Err() != nil || ctx.Err() != nil {
			return s.abortStart(done, nil, err)
		}
		log.WithError(err).Error("face detector unavailable")
		s.mu.Lock()
		s.state = Failed
		s.message = "Face detection is unavailable, so the camera filters are disabled."
		s.stream = nil
		s.mu.Unlock()
		cancel()
		close(done)
		return fmt.Errorf("%w: %w", ErrDisabled, err)
	}

	stream, err := s.camera.Open(startCtx, s.opts.Constraints)
	if err != nil {
		if runCtx.Err() != nil || ctx.Err() != nil {
			return s.abortStart(done, nil, err)
		}
		if camera.IsUserFacing(err) {
			log.WithError(err).Warn("camera request refused")
		} else {
			log.WithError(err).Error("camera failed to start")
		}
		s.mu.Lock()
		s.state = Idle
		s.message = cameraMessage(err)
		s.mu.Unlock()
		cancel()
		close(done)
		return fmt.Errorf("failed to open camera: %w", err)
	}

	s.mu.Lock()
	if runCtx.Err() != nil || ctx.Err() != nil {
		s.mu.Unlock()
		return s.abortStart(done, stream, context.Canceled)
	}
	s.state = Running
	s.stream = stream
	s.mu.Unlock()

	log.Info("capture running")
	go s.loop(runCtx, stream, done, log)
	return nil
}

// abortStart unwinds a Start interrupted by Stop or by the caller.
func (s *Session) abortStart(done chan struct{}, stream camera.Stream, cause error) error {
	if stream != nil {
		stream.Stop()
	}
	s.mu.Lock()
	if s.state == Starting {
		// Abandoned by the caller rather than Stop.
		s.state = Idle
		s.cancel()
	}
	s.mu.Unlock()
	close(done)
	return fmt.Errorf("capture start interrupted: %w", cause)
}

// Stop ends the capture: it cancels the pending cycle, stops every media
// track and waits for the loop to exit before returning to Idle. A detection
// in flight is discarded. Stop is a no-op when nothing is running.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.state {
	case Idle, Failed:
		s.mu.Unlock()
		return
	case Starting, Running:
		s.state = Stopping
		s.cancel()
		if s.stream != nil {
			s.stream.Stop()
		}
	}
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	if s.state == Stopping {
		s.state = Idle
		s.stream = nil
		s.log.WithField("session", s.id).Info("capture stopped")
	}
	s.mu.Unlock()
}

// Status reports the current state, message and counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		State:     s.state,
		Message:   s.message,
		SessionID: s.id,
	}
	s.mu.Unlock()

	if f := s.active.Load(); f != nil {
		st.Filter = f.ID
	}

	s.surfaceMu.Lock()
	st.Overlay = s.overlay
	st.Placement = s.placement
	st.Surface = s.surface.Size()
	s.surfaceMu.Unlock()

	st.Counters = Counters{
		FramesDrawn:    s.framesDrawn.Load(),
		FramesSkipped:  s.framesSkipped.Load(),
		Detections:     s.detections.Load(),
		DetectorErrors: s.detectorErrors.Load(),
	}
	return st
}

// Tracks reports the live media tracks held by the session.
func (s *Session) Tracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return 0
	}
	return s.stream.Tracks()
}

// Export writes the current composited frame to dir as
// "face-overlay-<unix millis>.png" and returns the file path.
func (s *Session) Export(dir string) (string, error) {
	img := s.frameCopy()
	if img == nil {
		return "", ErrNoFrame
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := ExportPrefix + strconv.FormatInt(s.now().UnixMilli(), 10) + ".png"
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := compositor.EncodePNG(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	s.log.WithField("path", path).Info("frame exported")
	return path, nil
}

// Snapshot returns the current composited frame as a base64 PNG, scaled by
// scale.
func (s *Session) Snapshot(scale float64) (*compositor.SnapshotResult, error) {
	img := s.frameCopy()
	if img == nil {
		return nil, ErrNoFrame
	}
	return compositor.Snapshot(img, scale)
}

// frameCopy copies the surface under the draw lock so encoders never see a
// half-drawn frame.
func (s *Session) frameCopy() image.Image {
	s.surfaceMu.Lock()
	defer s.surfaceMu.Unlock()

	if c := s.surface.Clone(); c != nil {
		return c
	}
	return nil
}

func (s *Session) resetCounters() {
	s.framesDrawn.Store(0)
	s.framesSkipped.Store(0)
	s.detections.Store(0)
	s.detectorErrors.Store(0)
}

// cameraMessage turns a camera failure into the text shown to the user.
func cameraMessage(err error) string {
	if !camera.IsUserFacing(err) {
		return "The camera could not be started: " + err.Error()
	}
	if errors.Is(err, camera.ErrPermissionDenied) {
		return "Camera access was denied. Allow camera access and try again."
	}
	return "No camera is available. Connect a camera and try again."
}

// firstDetection returns the detection a single-face filter anchors to.
func firstDetection(dets []face.Detection) (face.Detection, bool) {
	if len(dets) == 0 {
		return face.Detection{}, false
	}
	return dets[0], true
}
