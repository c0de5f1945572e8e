package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
)

var (
	// ErrPermissionDenied means the OS refused access to the capture device.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrUnavailable means no usable capture device or source was found.
	ErrUnavailable = errors.New("camera unavailable")
)

// Constraints describe the requested video stream. Audio is never captured.
type Constraints struct {
	// Device is a capture device ("/dev/video0"), a file path or a stream URL.
	Device    string
	Width     int
	Height    int
	FrameRate int
}

// Camera grants video streams.
type Camera interface {
	// Open starts a stream and returns once the first frame is decoded, or
	// with an error wrapping ErrPermissionDenied or ErrUnavailable.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a running video source.
type Stream interface {
	// Latest returns the newest decoded frame and its sequence number. The
	// sequence increases by one per decoded frame, so an unchanged number
	// means no new frame is ready. ok is false before the first frame.
	Latest() (frame image.Image, seq uint64, ok bool)
	// Tracks reports how many media tracks are live (0 after Stop).
	Tracks() int
	// Stop ends every track and releases the device. It is idempotent.
	Stop()
}

// frameHolder keeps only the newest frame; older ones are dropped.
type frameHolder struct {
	mu    sync.RWMutex
	frame image.Image
	seq   uint64
	first chan struct{}
}

func newFrameHolder() *frameHolder {
	return &frameHolder{first: make(chan struct{})}
}

func (h *frameHolder) Set(frame image.Image) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.frame = frame
	h.seq++
	if h.seq == 1 {
		close(h.first)
	}
}

func (h *frameHolder) Latest() (image.Image, uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame, h.seq, h.frame != nil
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJpeg is a bufio.SplitFunc that yields one JPEG image per token from
// an MJPEG byte stream.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}
