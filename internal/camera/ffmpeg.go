package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

const (
	megabyte = 1 << 20

	// DefaultStartupTimeout bounds how long Open waits for the first frame.
	DefaultStartupTimeout = 10 * time.Second
)

// FFmpeg captures video by running ffmpeg and reading MJPEG frames from its
// stdout.
type FFmpeg struct {
	Binary         string
	StartupTimeout time.Duration
	log            logrus.FieldLogger
}

// NewFFmpeg returns a camera backed by the given ffmpeg binary ("ffmpeg" when
// empty).
func NewFFmpeg(binary string, log logrus.FieldLogger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		Binary:         binary,
		StartupTimeout: DefaultStartupTimeout,
		log:            log,
	}
}

// Args builds the ffmpeg command line for c. Devices under /dev/ are read
// through video4linux2; anything else is treated as a file or URL.
func Args(c Constraints) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	if strings.HasPrefix(c.Device, "/dev/") {
		args = append(args, "-f", "v4l2")
		if c.FrameRate > 0 {
			args = append(args, "-framerate", strconv.Itoa(c.FrameRate))
		}
		if c.Width > 0 && c.Height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height))
		}
	} else {
		// Pace files at their native rate like a live source.
		args = append(args, "-re")
	}
	args = append(args, "-i", c.Device, "-an")

	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", c.Width, c.Height))
	}
	if c.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(c.FrameRate))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")
}

// Open starts ffmpeg and waits for the first decoded frame.
func (f *FFmpeg) Open(ctx context.Context, c Constraints) (Stream, error) {
	if c.Device == "" {
		return nil, fmt.Errorf("%w: no capture device configured", ErrUnavailable)
	}
	if _, err := exec.LookPath(f.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrUnavailable, f.Binary, err)
	}

	args := Args(c)
	cmd := exec.Command(f.Binary, args...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %v", ErrUnavailable, f.Binary, err)
	}

	log := f.log.WithField("device", c.Device)
	log.WithField("args", strings.Join(args, " ")).Debug("ffmpeg started")

	s := &ffmpegStream{
		cmd:    cmd,
		holder: newFrameHolder(),
		done:   make(chan struct{}),
		stderr: stderr,
		log:    log,
	}
	go s.read(bufio.NewScanner(out))

	timeout := f.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.holder.first:
		return s, nil
	case <-s.done:
		return nil, classify(s.stderr.String(), s.exitErr)
	case <-ctx.Done():
		s.Stop()
		return nil, ctx.Err()
	case <-timer.C:
		s.Stop()
		return nil, fmt.Errorf("%w: no frame from %s within %s", ErrUnavailable, c.Device, timeout)
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	holder *frameHolder
	stderr *lockedBuffer
	log    logrus.FieldLogger

	done    chan struct{}
	exitErr error // set before done is closed

	stopOnce sync.Once
	stopping atomic.Bool
}

// read splits stdout into JPEG frames until ffmpeg exits, then reaps it.
func (s *ffmpegStream) read(scanner *bufio.Scanner) {
	defer close(s.done)

	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJpeg)

	for scanner.Scan() {
		img, err := imaging.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			s.log.WithError(err).Debug("dropping undecodable frame")
			continue
		}
		s.holder.Set(img)
	}
	if err := scanner.Err(); err != nil {
		s.log.WithError(err).Warn("frame scanner failed")
	}

	s.exitErr = s.cmd.Wait()
	if s.exitErr != nil && !s.stopping.Load() {
		s.log.WithError(s.exitErr).WithField("stderr", s.stderr.String()).Warn("ffmpeg exited")
	}
}

func (s *ffmpegStream) Latest() (image.Image, uint64, bool) {
	return s.holder.Latest()
}

func (s *ffmpegStream) Tracks() int {
	if s.stopping.Load() {
		return 0
	}
	select {
	case <-s.done:
		return 0
	default:
		return 1
	}
}

// Stop kills ffmpeg and waits for the reader to finish.
func (s *ffmpegStream) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		<-s.done
		s.log.Debug("ffmpeg stopped")
	})
}

// classify maps ffmpeg's failure output onto the package sentinels.
func classify(stderr string, exitErr error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" && exitErr != nil {
		msg = exitErr.Error()
	}
	if msg == "" {
		msg = "stream ended before the first frame"
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "operation not permitted"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}
}

// IsUserFacing reports whether err is a camera failure the user can act on
// (grant access, plug in a device) rather than an internal fault.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnavailable)
}

// lockedBuffer collects ffmpeg stderr while the process runs.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
