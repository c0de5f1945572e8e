package compositor

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/face-overlay/internal/filters"
	"github.com/ironsheep/face-overlay/internal/geometry"
)

// GlyphScale is the glyph em size relative to min(width, height).
const GlyphScale = 0.9

// Glyph shadow parameters, relative to the glyph size.
const (
	shadowRadiusRatio = 0.06
	shadowOffsetRatio = 0.04
	shadowAlpha       = 160
)

// overlayGlyphs is the default glyph font: monochrome outlines for the
// catalog glyphs, built by fontsrc/mkglyphs.py.
//
//go:embed overlay-glyphs.ttf
var overlayGlyphs []byte

// ErrGlyphMissing reports a glyph the font has no outline for.
var ErrGlyphMissing = errors.New("glyph not covered by font")

// ImageSource looks up Ready raster assets without blocking.
type ImageSource interface {
	Image(key string) (image.Image, bool)
}

// Overlay reports what a Draw call put on top of the video.
type Overlay string

const (
	OverlayNone   Overlay = "none"
	OverlayRaster Overlay = "raster"
	OverlayGlyph  Overlay = "glyph"
)

// Compositor draws video frames and filter overlays onto a Surface.
//
// A Compositor holds only the parsed glyph font, which is immutable; every
// Draw is a pure function of its arguments, so repeated calls with the same
// inputs produce the same pixels.
type Compositor struct {
	font *opentype.Font
}

// New builds a compositor rendering glyphs with the given TrueType/OpenType
// font data. Nil fontData selects the bundled overlay glyph font. Every rune
// of every string in glyphs must map to an outline in the font, otherwise
// New fails with ErrGlyphMissing.
func New(fontData []byte, glyphs ...string) (*Compositor, error) {
	if fontData == nil {
		fontData = overlayGlyphs
	}
	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse glyph font: %w", err)
	}
	if err := checkCoverage(f, glyphs); err != nil {
		return nil, err
	}
	return &Compositor{font: f}, nil
}

func checkCoverage(f *opentype.Font, glyphs []string) error {
	var buf sfnt.Buffer
	for _, g := range glyphs {
		for _, r := range g {
			idx, err := f.GlyphIndex(&buf, r)
			if err != nil {
				return fmt.Errorf("failed to look up glyph %q: %w", g, err)
			}
			if idx == 0 {
				return fmt.Errorf("%w: %q (U+%04X)", ErrGlyphMissing, g, r)
			}
		}
	}
	return nil
}

// Draw blits frame into s at its native resolution and, when filter is set
// and the placement is visible, draws the filter's raster (if Ready in images)
// or its glyph at the placement center, scaled and rotated.
func (c *Compositor) Draw(s *Surface, frame image.Image, filter *filters.Filter, p geometry.Placement, images ImageSource) Overlay {
	if frame == nil || frame.Bounds().Empty() {
		return OverlayNone
	}

	fb := frame.Bounds()
	s.resize(fb.Dx(), fb.Dy())
	draw.Draw(s.img, s.img.Bounds(), frame, fb.Min, draw.Src)

	if filter == nil || !p.Visible || p.Width <= 0 || p.Height <= 0 {
		return OverlayNone
	}

	if key := filter.AssetKey(); key != "" && images != nil {
		if art, ok := images.Image(key); ok && !art.Bounds().Empty() {
			drawTransformed(s.img, art, p.CenterX, p.CenterY, p.Width, p.Height, p.Rotation)
			return OverlayRaster
		}
	}

	if filter.Visual.Glyph == "" {
		return OverlayNone
	}
	tile := c.glyphTile(filter.Visual.Glyph, filter.Visual.Tint, math.Min(p.Width, p.Height)*GlyphScale)
	if tile == nil {
		return OverlayNone
	}
	tb := tile.Bounds()
	drawTransformed(s.img, tile, p.CenterX, p.CenterY, float64(tb.Dx()), float64(tb.Dy()), p.Rotation)
	return OverlayGlyph
}

// drawTransformed composites src onto dst so that src's center lands on
// (cx, cy), scaled to w×h and rotated by rot radians about that center.
func drawTransformed(dst draw.Image, src image.Image, cx, cy, w, h, rot float64) {
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	kx, ky := w/sw, h/sh
	cos, sin := math.Cos(rot), math.Sin(rot)

	a, b := cos*kx, -sin*ky
	d, e := sin*kx, cos*ky
	ox := float64(sb.Min.X) + sw/2
	oy := float64(sb.Min.Y) + sh/2

	s2d := f64.Aff3{
		a, b, cx - (a*ox + b*oy),
		d, e, cy - (d*ox + e*oy),
	}
	draw.ApproxBiLinear.Transform(dst, s2d, src, sb, draw.Over, nil)
}

// glyphTile renders text centered on a transparent square tile with a soft
// drop shadow. It returns nil when the glyph is too small to draw.
func (c *Compositor) glyphTile(text, tint string, size float64) *image.RGBA {
	if size < 1 {
		return nil
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil
	}
	defer face.Close()

	bounds, _ := font.BoundString(face, text)
	gw := (bounds.Max.X - bounds.Min.X).Ceil()
	gh := (bounds.Max.Y - bounds.Min.Y).Ceil()
	if gw <= 0 || gh <= 0 {
		return nil
	}

	radius := math.Max(1, size*shadowRadiusRatio)
	offset := int(math.Round(size * shadowOffsetRatio))
	pad := int(math.Ceil(radius*2)) + offset
	side := max(gw, gh) + 2*pad

	fill, shade := glyphColors(tint)
	dot := fixed.Point26_6{
		X: fixed.I((side-gw)/2) - bounds.Min.X,
		Y: fixed.I((side-gh)/2) - bounds.Min.Y,
	}

	shadow := image.NewRGBA(image.Rect(0, 0, side, side))
	(&font.Drawer{
		Dst:  shadow,
		Src:  image.NewUniform(shade),
		Face: face,
		Dot:  dot.Add(fixed.P(offset, offset)),
	}).DrawString(text)

	tile := blur.Gaussian(shadow, radius)
	(&font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(fill),
		Face: face,
		Dot:  dot,
	}).DrawString(text)

	return tile
}

// glyphColors returns the glyph fill (the tint, white by default) and a dark
// shadow shade of the same hue.
func glyphColors(tint string) (fill, shade color.Color) {
	base, err := colorful.Hex(tint)
	if err != nil {
		base = colorful.Color{R: 1, G: 1, B: 1}
	}
	dark := base.BlendLab(colorful.Color{}, 0.85).Clamped()
	r, g, b := dark.RGB255()

	return base.Clamped(), color.NRGBA{R: r, G: g, B: b, A: shadowAlpha}
}
