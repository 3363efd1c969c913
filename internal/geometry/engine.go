// Package geometry implements the polygon predicates used to confirm
// bbox-level region matches against exact boundaries.
package geometry

import "math"

// Point is a lon/lat coordinate (X = lon, Y = lat).
type Point struct {
	X, Y float64
}

// Ring is a sequence of vertices. A repeated closing vertex is accepted but
// not required.
type Ring []Point

// tolerance for the per-axis range check on solved intersection points
const eps = 1e-9

// SegmentIntersect solves the two lines in standard form and returns the
// crossing point if it lies within both segments' extents (inclusive).
func SegmentIntersect(p1, p2, q1, q2 Point) (Point, bool) {
	a1 := p2.Y - p1.Y
	b1 := p1.X - p2.X
	c1 := a1*p1.X + b1*p1.Y

	a2 := q2.Y - q1.Y
	b2 := q1.X - q2.X
	c2 := a2*q1.X + b2*q1.Y

	det := a1*b2 - a2*b1
	if det == 0 {
		// parallel or colinear
		return Point{}, false
	}
	x := (b2*c1 - b1*c2) / det
	y := (a1*c2 - a2*c1) / det

	if !within(x, p1.X, p2.X) || !within(y, p1.Y, p2.Y) ||
		!within(x, q1.X, q2.X) || !within(y, q1.Y, q2.Y) {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

func within(v, a, b float64) bool {
	return v >= math.Min(a, b)-eps && v <= math.Max(a, b)+eps
}

// PointInPolygon applies the even-odd rule with a horizontal ray.
func PointInPolygon(pt Point, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i-1+n)%n]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// PolygonsIntersect is true when any edge of a crosses an edge of b, or a
// vertex of either ring lies inside the other. The containment checks catch
// one ring wholly inside the other.
func PolygonsIntersect(a, b Ring) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	na, nb := len(a), len(b)
	for i := 0; i < na; i++ {
		p1, p2 := a[i], a[(i+1)%na]
		for j := 0; j < nb; j++ {
			if _, ok := SegmentIntersect(p1, p2, b[j], b[(j+1)%nb]); ok {
				return true
			}
		}
	}
	for _, p := range a {
		if PointInPolygon(p, b) {
			return true
		}
	}
	for _, p := range b {
		if PointInPolygon(p, a) {
			return true
		}
	}
	return false
}
