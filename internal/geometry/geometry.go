package geometry

import (
	"fmt"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
)

// Geometry is a supported feature geometry: Polygon or MultiPolygon.
type Geometry interface {
	// Intersects tests the geometry against a viewport rectangle.
	Intersects(v model.BBox) bool
	Type() string
}

// Polygon holds its rings in document order. Interior rings are tested as
// independent polygons rather than subtracted from the exterior.
type Polygon []Ring

// MultiPolygon is a list of polygons.
type MultiPolygon []Polygon

func (p Polygon) Type() string      { return "Polygon" }
func (m MultiPolygon) Type() string { return "MultiPolygon" }

func (p Polygon) Intersects(v model.BBox) bool {
	vr := ViewportRing(v)
	for _, r := range p {
		if PolygonsIntersect(r, vr) {
			return true
		}
	}
	return false
}

func (m MultiPolygon) Intersects(v model.BBox) bool {
	for _, p := range m {
		if p.Intersects(v) {
			return true
		}
	}
	return false
}

// ViewportRing converts a bbox into a closed 5-point ring.
func ViewportRing(v model.BBox) Ring {
	coords := v.Ring()
	out := make(Ring, len(coords))
	for i, c := range coords {
		out[i] = Point{X: c[0], Y: c[1]}
	}
	return out
}

// Feature is one named geometry of a division's geometry document.
type Feature struct {
	Name     string
	Geometry Geometry
}

// AnyIntersects reports whether at least one feature overlaps v.
func AnyIntersects(features []Feature, v model.BBox) bool {
	for _, f := range features {
		if f.Geometry != nil && f.Geometry.Intersects(v) {
			return true
		}
	}
	return false
}

// UnsupportedGeometryError marks a feature whose geometry type is neither
// Polygon nor MultiPolygon. Such features are skipped.
type UnsupportedGeometryError struct {
	Index int
	Type  string
}

func (e *UnsupportedGeometryError) Error() string {
	t := e.Type
	if t == "" {
		t = "<none>"
	}
	return fmt.Sprintf("feature %d: unsupported geometry type %q", e.Index, t)
}
