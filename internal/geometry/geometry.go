// Package geometry maps a face detection onto overlay placements.
//
// Each filter owns a Resolver. Resolvers are pure: the same detection, surface
// size and asset state always yield the same Placement, and a missing or
// degenerate landmark group yields a non-visible placement instead of an error.
// This keeps every resolver testable with synthetic landmark fixtures.
package geometry

import (
	"math"

	"github.com/ironsheep/face-overlay/internal/face"
)

// FallbackAspectRatio is the width/height ratio used while an asset is not
// Ready. It matches the square tile used for glyph fallbacks.
const FallbackAspectRatio = 1.0

// Size is the pixel size of the output surface.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Placement is where an overlay lands in one frame. The zero value is not
// visible.
type Placement struct {
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation_radians"`
	Visible  bool    `json:"visible"`
}

// Hidden is the placement returned when nothing should be drawn.
var Hidden = Placement{}

// AspectSource reports the intrinsic aspect ratio of Ready assets.
type AspectSource interface {
	AspectRatio(key string) (float64, bool)
}

// Resolver computes the overlay placement for one filter.
type Resolver interface {
	// Kind names the anchoring strategy ("crown", "mouth", ...).
	Kind() string
	Resolve(det face.Detection, surface Size, aspects AspectSource) Placement
}

// aspectFor returns the asset's aspect ratio when Ready, otherwise the fallback.
func aspectFor(aspects AspectSource, key string) float64 {
	if aspects == nil || key == "" {
		return FallbackAspectRatio
	}
	ratio, ok := aspects.AspectRatio(key)
	if !ok || ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return FallbackAspectRatio
	}
	return ratio
}

// place builds a visible placement and applies the shared sanity checks:
// sizes must be positive and finite, and the overlay must touch the surface.
func place(cx, cy, width, height, rotation float64, surface Size) Placement {
	for _, v := range []float64{cx, cy, width, height, rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Hidden
		}
	}
	if width <= 0 || height <= 0 {
		return Hidden
	}

	if !surface.Empty() {
		// Bounding radius covers any rotation of the overlay.
		r := math.Hypot(width, height) / 2
		if cx+r < 0 || cy+r < 0 || cx-r > float64(surface.Width) || cy-r > float64(surface.Height) {
			return Hidden
		}
	}

	return Placement{
		CenterX:  cx,
		CenterY:  cy,
		Width:    width,
		Height:   height,
		Rotation: rotation,
		Visible:  true,
	}
}
