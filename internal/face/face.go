// Package face holds the detection model shared by the detector clients, the
// geometry resolvers and the compositor.
//
// # Coordinate System
//
// All coordinates are in video-frame pixels with the origin at the top-left
// corner, X increasing rightward and Y increasing downward. Landmark groups
// follow the 68-point convention used by common face landmark models; the
// index constants below name the points the resolvers rely on.
package face

// Group names a set of landmark points outlining one facial feature.
type Group string

// Landmark groups reported by the detector.
const (
	Jaw       Group = "jaw"
	LeftEye   Group = "leftEye"
	RightEye  Group = "rightEye"
	LeftBrow  Group = "leftBrow"
	RightBrow Group = "rightBrow"
	Mouth     Group = "mouth"
	Nose      Group = "nose"
)

// Groups lists every landmark group in a stable order.
var Groups = []Group{Jaw, LeftEye, RightEye, LeftBrow, RightBrow, Mouth, Nose}

// Indices into the mouth, nose and jaw groups.
const (
	MouthLeftCorner  = 0
	MouthUpperCenter = 3
	MouthRightCorner = 6

	NoseBottom = 6

	JawRightCheek = 12
	JawRightEdge  = 14
)

// Point is a 2-D landmark position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned face bounding box.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 {
	return b.X + b.Width/2
}

// Detection is one face found in a single frame. It is produced fresh for
// every frame and must not be retained across frames.
type Detection struct {
	Box       Box               `json:"box"`
	Score     float64           `json:"score"`
	Landmarks map[Group][]Point `json:"landmarks"`
}

// Points returns the points of a landmark group, or nil when absent.
func (d Detection) Points(g Group) []Point {
	if d.Landmarks == nil {
		return nil
	}
	return d.Landmarks[g]
}

// Has reports whether group g carries at least n points.
func (d Detection) Has(g Group, n int) bool {
	return len(d.Points(g)) >= n
}

// Translate returns a copy of d with the box and every landmark shifted by
// (dx, dy).
func (d Detection) Translate(dx, dy float64) Detection {
	out := Detection{
		Box:   Box{X: d.Box.X + dx, Y: d.Box.Y + dy, Width: d.Box.Width, Height: d.Box.Height},
		Score: d.Score,
	}
	if d.Landmarks != nil {
		out.Landmarks = make(map[Group][]Point, len(d.Landmarks))
		for g, pts := range d.Landmarks {
			moved := make([]Point, len(pts))
			for i, p := range pts {
				moved[i] = Point{X: p.X + dx, Y: p.Y + dy}
			}
			out.Landmarks[g] = moved
		}
	}
	return out
}
