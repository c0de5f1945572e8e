package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/face-overlay/internal/face"
)

var (
	debugBoxColor   = color.RGBA{0, 255, 0, 255}
	debugLabelColor = color.RGBA{255, 255, 255, 255}
	debugLabelBG    = color.RGBA{0, 0, 0, 180}
)

// DrawDebug outlines the detection's face box, marks every landmark point
// (one hue per group) and labels the box with the detection score. It draws
// on top of whatever the surface already holds and is a no-op before the
// first Draw.
func DrawDebug(s *Surface, det face.Detection) {
	if s.img == nil {
		return
	}
	img := s.img

	box := image.Rect(
		int(math.Round(det.Box.X)),
		int(math.Round(det.Box.Y)),
		int(math.Round(det.Box.X+det.Box.Width)),
		int(math.Round(det.Box.Y+det.Box.Height)),
	)
	drawRect(img, box, debugBoxColor)

	for i, g := range face.Groups {
		hue := float64(i) * 360 / float64(len(face.Groups))
		c := colorful.Hsv(hue, 0.9, 1).Clamped()
		for _, p := range det.Points(g) {
			drawDot(img, int(math.Round(p.X)), int(math.Round(p.Y)), c)
		}
	}

	drawLabel(img, box.Min.X, box.Min.Y-14, fmt.Sprintf("%.2f", det.Score), debugLabelColor, debugLabelBG)
}

// drawRect draws a 1px rectangle outline clipped to the image bounds.
func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		setClipped(img, x, r.Min.Y, c)
		setClipped(img, x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		setClipped(img, r.Min.X, y, c)
		setClipped(img, r.Max.X-1, y, c)
	}
}

// drawDot draws a 3x3 marker centered on (x, y).
func drawDot(img *image.RGBA, x, y int, c color.Color) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			setClipped(img, x+dx, y+dy, c)
		}
	}
}

func setClipped(img *image.RGBA, x, y int, c color.Color) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// drawLabel draws text on a filled background with its top-left at (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	for dy := -1; dy < height+1; dy++ {
		for dx := -1; dx < width+1; dx++ {
			setClipped(img, x+dx, y+dy, bg)
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
