package detector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/face"
)

// maxMessageSize bounds a single worker reply.
const maxMessageSize = 16 << 20

// Worker runs a detection model as a child process.
//
// Protocol: every message in either direction is [uint32 big-endian length]
// followed by a JSON envelope. Requests go to the child's stdin; replies come
// back on file descriptor 3 so that anything the model prints to stdout or
// stderr cannot corrupt the stream. Stderr is captured for error reports.
type Worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	data   io.ReadCloser
	stderr *lockedBuffer
	log    logrus.FieldLogger
	newID  func() string

	mu     sync.Mutex
	broken error
	owed   int   // replies of cancelled calls not yet started
	stale  int64 // unread bytes of a cancelled reply whose header was read
}

// StartWorker launches command (program followed by its arguments).
func StartWorker(command []string, log logrus.FieldLogger) (*Worker, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("%w: empty worker command", ErrUnavailable)
	}

	cmd := exec.Command(command[0], command[1:]...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	// Side-channel pipe; the child sees the write end as FD 3.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("%w: failed to start %s: %v", ErrUnavailable, command[0], err)
	}

	// Only the child holds the write end now.
	w.Close()

	return &Worker{
		cmd:    cmd,
		stdin:  stdin,
		data:   r,
		stderr: stderr,
		log:    log.WithField("worker", command[0]),
		newID:  uuid.NewString,
	}, nil
}

// Ready round-trips a ping through the worker.
func (w *Worker) Ready(ctx context.Context) error {
	id := w.newID()
	data, err := w.communicate(ctx, &request{Type: typePing, ID: id})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := decodeResponse(data, id, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Detect sends one frame to the worker and waits for its detections.
func (w *Worker) Detect(ctx context.Context, frame image.Image, threshold float64) ([]face.Detection, error) {
	id := w.newID()
	req, err := newDetectRequest(id, frame, threshold)
	if err != nil {
		return nil, err
	}
	data, err := w.communicate(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeResponse(data, id, threshold)
}

// Close shuts the pipes and waits for the child to exit.
func (w *Worker) Close() error {
	w.stdin.Close()
	w.data.Close()
	if w.cmd == nil {
		return nil
	}
	if err := w.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && w.stderr.Len() > 0 {
			w.log.WithField("stderr", w.stderr.Tail(2048)).Warn("worker exited with error")
		}
		return fmt.Errorf("worker exited: %w", err)
	}
	return nil
}

// communicate writes one framed request and reads one framed reply.
//
// A call cut short by ctx leaves its reply in the pipe; the next call skips
// it before writing. After any other I/O failure the worker is marked broken
// and every later call fails fast.
func (w *Worker) communicate(ctx context.Context, req *request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, w.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d, ok := w.data.(interface{ SetReadDeadline(time.Time) error }); ok {
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			defer close(fired)
			d.SetReadDeadline(time.Now())
		})
		defer func() {
			// The deadline must not outlive this call.
			if !stop() {
				<-fired
			}
			d.SetReadDeadline(time.Time{})
		}()
	}

	if err := w.skipStale(ctx); err != nil {
		return nil, err
	}

	if err := binary.Write(w.stdin, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, w.fail(ctx, fmt.Errorf("failed to write request header: %w", err))
	}
	if _, err := w.stdin.Write(payload); err != nil {
		return nil, w.fail(ctx, fmt.Errorf("failed to write request: %w", err))
	}

	size, err := w.readHeader(ctx)
	if err != nil {
		return nil, err
	}
	body := make([]byte, size)
	if n, err := io.ReadFull(w.data, body); err != nil {
		if ctx.Err() != nil {
			w.stale = int64(size) - int64(n)
			return nil, ctx.Err()
		}
		return nil, w.fail(ctx, fmt.Errorf("failed to read reply: %w", err))
	}
	return body, nil
}

// readHeader reads the length prefix of the next reply. When ctx ends before
// any byte arrives the whole reply is counted as owed. The caller holds w.mu.
func (w *Worker) readHeader(ctx context.Context) (uint32, error) {
	header := make([]byte, 4)
	if n, err := io.ReadFull(w.data, header); err != nil {
		if n == 0 && ctx.Err() != nil {
			w.owed++
			return 0, ctx.Err()
		}
		return 0, w.fail(ctx, fmt.Errorf("failed to read reply header: %w", err))
	}
	size := binary.BigEndian.Uint32(header)
	if size > maxMessageSize {
		return 0, w.fail(ctx, fmt.Errorf("reply of %d bytes exceeds limit", size))
	}
	return size, nil
}

// skipStale drops the replies of earlier cancelled calls so the next read is
// the reply to the request about to be written. The caller holds w.mu.
func (w *Worker) skipStale(ctx context.Context) error {
	for w.stale > 0 || w.owed > 0 {
		if w.stale == 0 {
			w.owed--
			size, err := w.readHeader(ctx)
			if err != nil {
				return err
			}
			w.stale = int64(size)
			continue
		}
		n, err := io.CopyN(io.Discard, w.data, w.stale)
		w.stale -= n
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return w.fail(ctx, fmt.Errorf("failed to skip stale reply: %w", err))
		}
		w.log.WithField("bytes", n).Debug("skipped stale worker reply")
	}
	return nil
}

// fail marks the stream unusable. A half-read reply leaves the framing out of
// sync, so there is no recovering the pipe. The caller holds w.mu.
func (w *Worker) fail(ctx context.Context, err error) error {
	if tail := w.stderr.Tail(512); tail != "" {
		err = fmt.Errorf("%w (stderr: %s)", err, tail)
	}
	w.broken = err
	w.log.WithError(err).Warn("detector worker failed")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// lockedBuffer collects child stderr while the process runs.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Tail returns the last n bytes written, trimmed.
func (b *lockedBuffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.Bytes()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return strings.TrimSpace(string(s))
}
