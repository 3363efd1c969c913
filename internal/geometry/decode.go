package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/geojson"
	tgeom "github.com/tidwall/geojson/geometry"
)

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"features"`
}

// DecodeFeatures parses a FeatureCollection body. Features with unsupported
// or broken geometries are skipped and reported in warns; err is only set
// when the document itself cannot be read.
func DecodeFeatures(body []byte) (feats []Feature, warns []error, err error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if t := strings.TrimSpace(fc.Type); t != "" && t != "FeatureCollection" {
		return nil, nil, fmt.Errorf("unexpected document type %q (want FeatureCollection)", t)
	}

	feats = make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		g, err := DecodeGeometry(f.Geometry)
		if err != nil {
			var ue *UnsupportedGeometryError
			if errors.As(err, &ue) {
				ue.Index = i
			} else {
				err = fmt.Errorf("feature %d: %w", i, err)
			}
			warns = append(warns, err)
			continue
		}
		feats = append(feats, Feature{Name: f.Properties.Name, Geometry: g})
	}
	return feats, warns, nil
}

// DecodeGeometry converts a GeoJSON geometry object into a Polygon or
// MultiPolygon.
func DecodeGeometry(raw json.RawMessage) (Geometry, error) {
	var hdr struct {
		Type string `json:"type"`
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &UnsupportedGeometryError{}
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	switch strings.TrimSpace(hdr.Type) {
	case "Polygon", "MultiPolygon":
	default:
		return nil, &UnsupportedGeometryError{Type: hdr.Type}
	}

	obj, err := geojson.Parse(string(closeRings(hdr.Type, raw)), geojson.DefaultParseOptions)
	if err != nil {
		return nil, fmt.Errorf("parse %s coords: %w", hdr.Type, err)
	}
	switch o := obj.(type) {
	case *geojson.Polygon:
		return fromPoly(o.Base()), nil
	case *geojson.MultiPolygon:
		var mp MultiPolygon
		o.ForEach(func(child geojson.Object) bool {
			if p, ok := child.(*geojson.Polygon); ok {
				mp = append(mp, fromPoly(p.Base()))
			}
			return true
		})
		return mp, nil
	default:
		return nil, &UnsupportedGeometryError{Type: hdr.Type}
	}
}

// closeRings repeats the first vertex of every open ring; the parser only
// accepts closed ones. Bodies that do not have the expected shape are
// returned as is so the parser reports them.
func closeRings(typ string, raw json.RawMessage) json.RawMessage {
	var doc struct {
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}

	var polys [][][][]float64
	switch strings.TrimSpace(typ) {
	case "Polygon":
		var p [][][]float64
		if err := json.Unmarshal(doc.Coordinates, &p); err != nil {
			return raw
		}
		polys = [][][][]float64{p}
	case "MultiPolygon":
		if err := json.Unmarshal(doc.Coordinates, &polys); err != nil {
			return raw
		}
	default:
		return raw
	}

	changed := false
	for _, p := range polys {
		for i, r := range p {
			if len(r) < 3 || samePosition(r[0], r[len(r)-1]) {
				continue
			}
			p[i] = append(r, r[0])
			changed = true
		}
	}
	if !changed {
		return raw
	}

	var coords any = polys
	if strings.TrimSpace(typ) == "Polygon" {
		coords = polys[0]
	}
	out, err := json.Marshal(struct {
		Type        string `json:"type"`
		Coordinates any    `json:"coordinates"`
	}{Type: strings.TrimSpace(typ), Coordinates: coords})
	if err != nil {
		return raw
	}
	return out
}

func samePosition(a, b []float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return a[0] == b[0] && a[1] == b[1]
}

// exterior first, then holes, matching GeoJSON ring order
func fromPoly(p *tgeom.Poly) Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, 0, 1+len(p.Holes))
	if p.Exterior != nil {
		out = append(out, fromRing(p.Exterior))
	}
	for _, h := range p.Holes {
		out = append(out, fromRing(h))
	}
	return out
}

func fromRing(r tgeom.Ring) Ring {
	n := r.NumPoints()
	out := make(Ring, 0, n)
	for i := 0; i < n; i++ {
		pt := r.PointAt(i)
		out = append(out, Point{X: pt.X, Y: pt.Y})
	}
	return out
}
