package compositor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/face-overlay/internal/geometry"
)

// Surface is the output canvas the compositor draws into. Its backing image is
// reallocated only when the incoming frame size changes.
//
// Surface is not safe for concurrent use; the owner serializes draws and reads.
type Surface struct {
	img *image.RGBA
}

// NewSurface returns an empty surface. The first Draw sizes it.
func NewSurface() *Surface {
	return &Surface{}
}

// Size returns the current surface size (zero before the first draw).
func (s *Surface) Size() geometry.Size {
	if s.img == nil {
		return geometry.Size{}
	}
	b := s.img.Bounds()
	return geometry.Size{Width: b.Dx(), Height: b.Dy()}
}

// Clone returns a copy of the current pixels, or nil before the first draw.
func (s *Surface) Clone() *image.NRGBA {
	if s.img == nil {
		return nil
	}
	return imaging.Clone(s.img)
}

// resize makes sure the backing image is exactly w×h.
func (s *Surface) resize(w, h int) {
	if s.img != nil && s.img.Bounds().Dx() == w && s.img.Bounds().Dy() == h {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
}

// SnapshotResult contains an encoded copy of the composited surface.
type SnapshotResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Snapshot encodes img as a base64 PNG, optionally scaled (e.g. 0.5 for a
// half-size preview).
func Snapshot(img image.Image, scale float64) (*SnapshotResult, error) {
	if img == nil {
		return nil, fmt.Errorf("no frame has been composited yet")
	}
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(img.Bounds().Dx()) * scale)
		newHeight := int(float64(img.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, fmt.Errorf("scale %.3f collapses the %dx%d surface", scale, img.Bounds().Dx(), img.Bounds().Dy())
		}
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}

	return &SnapshotResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode surface: %w", err)
	}
	return nil
}
