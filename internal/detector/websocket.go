package detector

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/face"
)

// WebSocket talks to a detection service over a single WebSocket
// connection. Requests are serialized; a broken connection is dropped and
// redialed on the next call.
type WebSocket struct {
	url          string
	dialer       *websocket.Dialer
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          logrus.FieldLogger
	newID        func() string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket returns a client for the detection service at url
// ("ws://host:port/path"). It does not dial until first use.
func NewWebSocket(url string, log logrus.FieldLogger) *WebSocket {
	return &WebSocket{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		log:          log.WithField("detector", url),
		newID:        uuid.NewString,
	}
}

// Ready dials the service if needed and round-trips a ping.
func (c *WebSocket) Ready(ctx context.Context) error {
	id := c.newID()
	data, err := c.roundTrip(ctx, &request{Type: typePing, ID: id})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := decodeResponse(data, id, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Detect sends one frame and waits for its detections.
func (c *WebSocket) Detect(ctx context.Context, frame image.Image, threshold float64) ([]face.Detection, error) {
	id := c.newID()
	req, err := newDetectRequest(id, frame, threshold)
	if err != nil {
		return nil, err
	}
	data, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeResponse(data, id, threshold)
}

// Close drops the connection, if any.
func (c *WebSocket) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout),
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *WebSocket) roundTrip(ctx context.Context, req *request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	// Unblock the read if the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.drop()
		return nil, c.contextErr(ctx, fmt.Errorf("failed to send %s request: %w", req.Type, err))
	}

	conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop()
		return nil, c.contextErr(ctx, fmt.Errorf("failed to read %s response: %w", req.Type, err))
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	return message, nil
}

// connect returns the live connection, dialing when there is none. The
// caller holds c.mu.
func (c *WebSocket) connect(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	c.log.Debug("connecting to detector")
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrUnavailable, c.url, err)
	}
	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithError(err).Debug("failed to send pong")
		}
		return nil
	})
	c.conn = conn
	return conn, nil
}

// drop closes a connection that failed mid-exchange. The caller holds c.mu.
func (c *WebSocket) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *WebSocket) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// contextErr prefers the caller's cancellation over the I/O error it caused.
func (c *WebSocket) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
