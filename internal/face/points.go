package face

import "math"

// Mean returns the centroid of pts. ok is false when pts is empty.
func Mean(pts []Point) (Point, bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	var sumX, sumY float64
	for _, p := range pts {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(pts))
	return Point{X: sumX / n, Y: sumY / n}, true
}

// MinY returns the smallest Y (the topmost point) across all groups given.
// ok is false when every group is empty.
func MinY(groups ...[]Point) (float64, bool) {
	found := false
	minY := math.Inf(1)
	for _, pts := range groups {
		for _, p := range pts {
			if p.Y < minY {
				minY = p.Y
			}
			found = true
		}
	}
	return minY, found
}

// Angle returns the angle of the line from a to b in radians
// (0 = horizontal right, positive = clockwise on screen since Y points down).
func Angle(a, b Point) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// EyeLine returns the centroids of the left and right eye groups.
// ok is false when either group is empty.
func (d Detection) EyeLine() (left, right Point, ok bool) {
	left, okL := Mean(d.Points(LeftEye))
	right, okR := Mean(d.Points(RightEye))
	return left, right, okL && okR
}
