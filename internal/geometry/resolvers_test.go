package geometry

import (
	"fmt"
	"math"
	"testing"

	"github.com/ironsheep/face-overlay/internal/face"
)

const tolerance = 1e-9

// fakeAspects reports fixed aspect ratios for Ready assets.
type fakeAspects map[string]float64

func (f fakeAspects) AspectRatio(key string) (float64, bool) {
	r, ok := f[key]
	return r, ok
}

// line returns n points from (x0,y0) stepping by (dx,dy).
func line(n int, x0, y0, dx, dy float64) []face.Point {
	pts := make([]face.Point, n)
	for i := range pts {
		pts[i] = face.Point{X: x0 + float64(i)*dx, Y: y0 + float64(i)*dy}
	}
	return pts
}

// wellFormed builds a level, frontal face inside box {100,50,200,200}.
func wellFormed(t *testing.T) face.Detection {
	t.Helper()

	mouth := line(20, 160, 200, 0, 0)
	for i := 0; i <= 6; i++ {
		mouth[i] = face.Point{X: 160 + float64(i)*(80.0/6), Y: 200}
	}
	mouth[face.MouthUpperCenter] = face.Point{X: 200, Y: 190}

	return face.Detection{
		Box:   face.Box{X: 100, Y: 50, Width: 200, Height: 200},
		Score: 0.97,
		Landmarks: map[face.Group][]face.Point{
			face.Jaw:       line(17, 105, 120, 11.875, 7),
			face.LeftBrow:  line(5, 130, 110, 10, -1),
			face.RightBrow: line(5, 230, 106, 10, 1),
			face.LeftEye:   line(6, 140, 130, 5, 0),
			face.RightEye:  line(6, 235, 130, 5, 0),
			face.Mouth:     mouth,
			face.Nose:      line(9, 200, 130, 0, 5),
		},
	}
}

func without(det face.Detection, g face.Group) face.Detection {
	out := det.Translate(0, 0)
	delete(out.Landmarks, g)
	return out
}

func truncated(det face.Detection, g face.Group, n int) face.Detection {
	out := det.Translate(0, 0)
	out.Landmarks[g] = out.Landmarks[g][:n]
	return out
}

var surface = Size{Width: 640, Height: 480}

func allResolvers() []Resolver {
	return []Resolver{
		Crown{AssetKey: "crown"},
		Mouth{AssetKey: "mouth"},
		Cheek{AssetKey: "cheek"},
		Aura{AssetKey: "aura"},
	}
}

func TestCrown_ReferenceScenario(t *testing.T) {
	det := wellFormed(t)
	p := Crown{AssetKey: "crown"}.Resolve(det, surface, fakeAspects{"crown": 1.25})

	if !p.Visible {
		t.Fatal("expected visible placement")
	}
	if math.Abs(p.Width-160) > tolerance {
		t.Errorf("Width: got %v, want 160", p.Width)
	}
	if math.Abs(p.Height-128) > tolerance {
		t.Errorf("Height: got %v, want 128", p.Height)
	}
	if math.Abs(p.CenterX-200) > tolerance {
		t.Errorf("CenterX: got %v, want 200", p.CenterX)
	}
	// Topmost brow point is y=106; lifted by 0.55 * 128.
	if want := 106 - 0.55*128; math.Abs(p.CenterY-want) > tolerance {
		t.Errorf("CenterY: got %v, want %v", p.CenterY, want)
	}
	if math.Abs(p.Rotation) > tolerance {
		t.Errorf("Rotation: got %v, want 0 for level eyes", p.Rotation)
	}
}

func TestMouth_Placement(t *testing.T) {
	det := wellFormed(t)
	p := Mouth{AssetKey: "mouth"}.Resolve(det, surface, fakeAspects{"mouth": 2})

	if !p.Visible {
		t.Fatal("expected visible placement")
	}
	if math.Abs(p.Width-100) > tolerance || math.Abs(p.Height-50) > tolerance {
		t.Errorf("size: got %vx%v, want 100x50", p.Width, p.Height)
	}
	if math.Abs(p.CenterX-200) > tolerance {
		t.Errorf("CenterX: got %v, want 200", p.CenterX)
	}
	// Nose bottom y=160, upper lip y=190, nudged down by 0.1 * 50.
	if want := (160.0+190.0)/2 + 5; math.Abs(p.CenterY-want) > tolerance {
		t.Errorf("CenterY: got %v, want %v", p.CenterY, want)
	}
}

func TestResolvers_MissingGroupsAreHidden(t *testing.T) {
	det := wellFormed(t)

	tests := []struct {
		name     string
		resolver Resolver
		det      face.Detection
	}{
		{"crown without left brow", Crown{}, without(det, face.LeftBrow)},
		{"crown without right brow", Crown{}, without(det, face.RightBrow)},
		{"crown without left eye", Crown{}, without(det, face.LeftEye)},
		{"crown with empty right eye", Crown{}, truncated(det, face.RightEye, 0)},
		{"mouth without nose", Mouth{}, without(det, face.Nose)},
		{"mouth with 8 points", Mouth{}, truncated(det, face.Mouth, 8)},
		{"mouth with 6 nose points", Mouth{}, truncated(det, face.Nose, 6)},
		{"cheek with short jaw", Cheek{}, truncated(det, face.Jaw, 16)},
		{"cheek without eyes", Cheek{}, without(det, face.LeftEye)},
		{"aura without brows", Aura{}, without(det, face.RightBrow)},
		{"crown with no landmarks", Crown{}, face.Detection{Box: det.Box}},
		{"mouth with nil detection", Mouth{}, face.Detection{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.resolver.Resolve(tt.det, surface, nil)
			if p.Visible {
				t.Errorf("expected hidden placement, got %+v", p)
			}
		})
	}
}

func TestResolvers_DegenerateBoxIsHidden(t *testing.T) {
	det := wellFormed(t)
	det.Box.Width = 0

	for _, r := range allResolvers() {
		t.Run(r.Kind(), func(t *testing.T) {
			if p := r.Resolve(det, surface, nil); p.Visible {
				t.Errorf("expected hidden placement for zero-width box, got %+v", p)
			}
		})
	}
}

func TestResolvers_SizeFollowsAspect(t *testing.T) {
	det := wellFormed(t)

	for _, r := range allResolvers() {
		t.Run(r.Kind(), func(t *testing.T) {
			fallback := r.Resolve(det, surface, nil)
			if !fallback.Visible {
				t.Fatal("expected visible placement")
			}
			if fallback.Width <= 0 || fallback.Height <= 0 {
				t.Fatalf("sizes must be positive: %+v", fallback)
			}
			if math.Abs(fallback.Height-fallback.Width/FallbackAspectRatio) > tolerance {
				t.Errorf("fallback height: got %v, want %v", fallback.Height, fallback.Width/FallbackAspectRatio)
			}

			ready := r.Resolve(det, surface, fakeAspects{"crown": 1.5, "mouth": 1.5, "cheek": 1.5, "aura": 1.5})
			if math.Abs(ready.Height-ready.Width/1.5) > tolerance {
				t.Errorf("ready height: got %v, want %v", ready.Height, ready.Width/1.5)
			}
		})
	}
}

func TestResolvers_RotationMatchesAnchors(t *testing.T) {
	det := wellFormed(t)
	// Tilt the right eye and right mouth corner downward.
	det.Landmarks[face.RightEye] = line(6, 235, 160, 5, 0)
	det.Landmarks[face.Mouth][face.MouthRightCorner] = face.Point{X: 240, Y: 230}

	left, _ := face.Mean(det.Points(face.LeftEye))
	right, _ := face.Mean(det.Points(face.RightEye))
	eyeAngle := math.Atan2(right.Y-left.Y, right.X-left.X)

	mouth := det.Points(face.Mouth)
	mouthAngle := math.Atan2(
		mouth[face.MouthRightCorner].Y-mouth[face.MouthLeftCorner].Y,
		mouth[face.MouthRightCorner].X-mouth[face.MouthLeftCorner].X,
	)

	tests := []struct {
		resolver Resolver
		want     float64
	}{
		{Crown{}, eyeAngle},
		{Mouth{}, mouthAngle},
		{Cheek{}, eyeAngle},
		{Aura{}, eyeAngle},
	}

	for _, tt := range tests {
		t.Run(tt.resolver.Kind(), func(t *testing.T) {
			p := tt.resolver.Resolve(det, surface, nil)
			if !p.Visible {
				t.Fatal("expected visible placement")
			}
			if math.Abs(p.Rotation-tt.want) > tolerance {
				t.Errorf("Rotation: got %v, want %v", p.Rotation, tt.want)
			}
		})
	}
}

func TestResolvers_TranslationInvariance(t *testing.T) {
	det := wellFormed(t)
	det.Landmarks[face.RightEye] = line(6, 235, 142, 5, 0)
	moved := det.Translate(37.5, -12.25)

	// Both positions keep every overlay on the surface, where hiding does not
	// apply.
	for _, r := range allResolvers() {
		for _, sz := range []Size{{}, surface} {
			t.Run(fmt.Sprintf("%s/%dx%d", r.Kind(), sz.Width, sz.Height), func(t *testing.T) {
				a := r.Resolve(det, sz, nil)
				b := r.Resolve(moved, sz, nil)
				if !a.Visible || !b.Visible {
					t.Fatal("expected visible placements")
				}
				if math.Abs(a.Rotation-b.Rotation) > tolerance {
					t.Errorf("rotation changed under translation: %v vs %v", a.Rotation, b.Rotation)
				}
				if math.Abs(a.Width-b.Width) > tolerance || math.Abs(a.Height-b.Height) > tolerance {
					t.Errorf("size changed under translation: %+v vs %+v", a, b)
				}
				if math.Abs(b.CenterX-a.CenterX-37.5) > tolerance || math.Abs(b.CenterY-a.CenterY+12.25) > tolerance {
					t.Errorf("center did not follow translation: %+v vs %+v", a, b)
				}
			})
		}
	}
}

func TestResolvers_Deterministic(t *testing.T) {
	det := wellFormed(t)
	aspects := fakeAspects{"crown": 1.25}

	for _, r := range allResolvers() {
		first := r.Resolve(det, surface, aspects)
		for i := 0; i < 5; i++ {
			if got := r.Resolve(det, surface, aspects); got != first {
				t.Fatalf("%s: resolve %d differs: %+v vs %+v", r.Kind(), i, got, first)
			}
		}
	}
}

func TestResolvers_OffSurfaceIsHidden(t *testing.T) {
	det := wellFormed(t).Translate(5000, 5000)

	for _, r := range allResolvers() {
		t.Run(r.Kind(), func(t *testing.T) {
			if p := r.Resolve(det, surface, nil); p.Visible {
				t.Errorf("expected hidden placement off-surface, got %+v", p)
			}
		})
	}
}

func TestAspectFor_RejectsBadRatios(t *testing.T) {
	tests := []struct {
		name    string
		aspects AspectSource
		want    float64
	}{
		{"nil source", nil, FallbackAspectRatio},
		{"not ready", fakeAspects{}, FallbackAspectRatio},
		{"zero ratio", fakeAspects{"k": 0}, FallbackAspectRatio},
		{"negative ratio", fakeAspects{"k": -2}, FallbackAspectRatio},
		{"ready", fakeAspects{"k": 1.25}, 1.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aspectFor(tt.aspects, "k"); got != tt.want {
				t.Errorf("aspectFor: got %v, want %v", got, tt.want)
			}
		})
	}
}
