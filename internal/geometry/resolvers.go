package geometry

import (
	"github.com/ironsheep/face-overlay/internal/face"
)

// Crown sits above the eyebrows, centered on the face box and tilted with
// the eye line.
type Crown struct {
	AssetKey string
}

// Crown proportions relative to the face box and rendered height.
const (
	CrownWidthRatio = 0.8
	CrownLift       = 0.55
)

func (Crown) Kind() string { return "crown" }

func (c Crown) Resolve(det face.Detection, surface Size, aspects AspectSource) Placement {
	if det.Box.Width <= 0 {
		return Hidden
	}
	top, ok := face.MinY(det.Points(face.LeftBrow), det.Points(face.RightBrow))
	if !ok || !det.Has(face.LeftBrow, 1) || !det.Has(face.RightBrow, 1) {
		return Hidden
	}
	left, right, ok := det.EyeLine()
	if !ok {
		return Hidden
	}

	width := CrownWidthRatio * det.Box.Width
	height := width / aspectFor(aspects, c.AssetKey)

	return place(det.Box.CenterX(), top-CrownLift*height, width, height, face.Angle(left, right), surface)
}

// Mouth sits between the nose and the upper lip, tilted with the mouth
// corners.
type Mouth struct {
	AssetKey string
}

// Mouth requirements and proportions.
const (
	MouthMinPoints  = 9
	NoseMinPoints   = 7
	MouthWidthRatio = 0.5
	MouthDrop       = 0.1
)

func (Mouth) Kind() string { return "mouth" }

func (m Mouth) Resolve(det face.Detection, surface Size, aspects AspectSource) Placement {
	if det.Box.Width <= 0 || !det.Has(face.Mouth, MouthMinPoints) || !det.Has(face.Nose, NoseMinPoints) {
		return Hidden
	}
	mouth := det.Points(face.Mouth)
	nose := det.Points(face.Nose)

	leftCorner := mouth[face.MouthLeftCorner]
	rightCorner := mouth[face.MouthRightCorner]
	upperLip := mouth[face.MouthUpperCenter]
	noseBottom := nose[face.NoseBottom]

	width := MouthWidthRatio * det.Box.Width
	height := width / aspectFor(aspects, m.AssetKey)
	cx := face.Midpoint(leftCorner, rightCorner).X
	cy := (noseBottom.Y+upperLip.Y)/2 + MouthDrop*height

	return place(cx, cy, width, height, face.Angle(leftCorner, rightCorner), surface)
}

// Cheek floats beside the right edge of the jaw at cheek height.
type Cheek struct {
	AssetKey string
}

// Cheek requirements and proportions.
const (
	JawMinPoints     = 17
	CheekWidthRatio  = 0.35
	CheekOffsetRatio = 0.15
	CheekLift        = 0.5
)

func (Cheek) Kind() string { return "cheek" }

func (c Cheek) Resolve(det face.Detection, surface Size, aspects AspectSource) Placement {
	if det.Box.Width <= 0 || !det.Has(face.Jaw, JawMinPoints) {
		return Hidden
	}
	left, right, ok := det.EyeLine()
	if !ok {
		return Hidden
	}
	jaw := det.Points(face.Jaw)

	width := CheekWidthRatio * det.Box.Width
	height := width / aspectFor(aspects, c.AssetKey)
	cx := jaw[face.JawRightEdge].X + CheekOffsetRatio*det.Box.Width
	cy := jaw[face.JawRightCheek].Y - CheekLift*height

	return place(cx, cy, width, height, face.Angle(left, right), surface)
}

// Aura is a wide arc resting on top of the face box.
type Aura struct {
	AssetKey string
}

// Aura proportions.
const (
	AuraWidthRatio = 1.3
	AuraLift       = 0.2
)

func (Aura) Kind() string { return "aura" }

func (a Aura) Resolve(det face.Detection, surface Size, aspects AspectSource) Placement {
	if det.Box.Width <= 0 || !det.Has(face.LeftBrow, 1) || !det.Has(face.RightBrow, 1) {
		return Hidden
	}
	left, right, ok := det.EyeLine()
	if !ok {
		return Hidden
	}

	width := AuraWidthRatio * det.Box.Width
	height := width / aspectFor(aspects, a.AssetKey)

	return place(det.Box.CenterX(), det.Box.Y-AuraLift*height, width, height, face.Angle(left, right), surface)
}
