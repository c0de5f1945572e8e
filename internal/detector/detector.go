package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/face-overlay/internal/face"
)

// DefaultThreshold is the minimum detection confidence used when none is
// configured.
const DefaultThreshold = 0.5

// frameQuality is the JPEG quality used to ship frames to the detector.
const frameQuality = 85

// ErrUnavailable means the detector could not be reached or did not answer
// its readiness check. A session treats it as fatal.
var ErrUnavailable = errors.New("face detector unavailable")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detector finds faces and their landmarks in a single video frame.
type Detector interface {
	// Detect returns every face scoring at least threshold. Zero detections
	// with a nil error means no face is visible.
	Detect(ctx context.Context, frame image.Image, threshold float64) ([]face.Detection, error)
	// Ready checks the detector and returns an error wrapping ErrUnavailable
	// when it cannot serve requests.
	Ready(ctx context.Context) error
	Close() error
}

// Message types of the detector wire protocol.
const (
	typeDetect = "detect"
	typePing   = "ping"
)

// request is the envelope sent to the detector.
type request struct {
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Threshold float64 `json:"threshold,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Frame     string  `json:"frame,omitempty"` // base64 JPEG
}

// response is the detector's answer to one request.
type response struct {
	ID         string          `json:"id"`
	Detections []wireDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

type wireDetection struct {
	Box       face.Box                `json:"box"`
	Score     float64                 `json:"score"`
	Landmarks map[string][][2]float64 `json:"landmarks"`
}

// newDetectRequest encodes frame as a base64 JPEG envelope.
func newDetectRequest(id string, frame image.Image, threshold float64) (*request, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(frameQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return &request{
		Type:      typeDetect,
		ID:        id,
		Threshold: threshold,
		Width:     frame.Bounds().Dx(),
		Height:    frame.Bounds().Dy(),
		Frame:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// decodeResponse parses a detector reply, checks it answers id and converts
// the detections, dropping any below threshold.
func decodeResponse(data []byte, id string, threshold float64) ([]face.Detection, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detector error: %s", resp.Error)
	}
	if resp.ID != id {
		return nil, fmt.Errorf("detector answered request %q, expected %q", resp.ID, id)
	}

	out := make([]face.Detection, 0, len(resp.Detections))
	for _, wd := range resp.Detections {
		if wd.Score < threshold {
			continue
		}
		det := face.Detection{Box: wd.Box, Score: wd.Score}
		if len(wd.Landmarks) > 0 {
			det.Landmarks = make(map[face.Group][]face.Point, len(wd.Landmarks))
			for name, pairs := range wd.Landmarks {
				pts := make([]face.Point, len(pairs))
				for i, p := range pairs {
					pts[i] = face.Point{X: p[0], Y: p[1]}
				}
				det.Landmarks[face.Group(name)] = pts
			}
		}
		out = append(out, det)
	}
	return out, nil
}

// Unavailable returns a Detector whose calls always fail with err wrapped in
// ErrUnavailable. It stands in for a detector that could not be started so
// the session can report the failure on Start.
func Unavailable(err error) Detector {
	if !errors.Is(err, ErrUnavailable) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (d unavailable) Ready(context.Context) error { return d.err }

func (d unavailable) Detect(context.Context, image.Image, float64) ([]face.Detection, error) {
	return nil, d.err
}

func (d unavailable) Close() error { return nil }
