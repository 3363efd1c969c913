// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
)

// BBox is an axis-aligned lon/lat rectangle in degrees. Min <= Max is not
// enforced here.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// String representation matching the bbox query parameter format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Intersects reports whether a and b overlap. Touching edges count.
func (b BBox) Intersects(o BBox) bool {
	return Intersects(b, o)
}

// Center returns the midpoint as lon, lat.
func (b BBox) Center() (float64, float64) {
	return (b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2
}

// Ring returns the rectangle as a closed 5-point ring of [lon, lat] pairs.
func (b BBox) Ring() [][2]float64 {
	return [][2]float64{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
}

// Intersects reports whether a and b overlap; shared edges count.
func Intersects(a, b BBox) bool {
	if a.MaxLon < b.MinLon || a.MinLon > b.MaxLon ||
		a.MaxLat < b.MinLat || a.MinLat > b.MaxLat {
		return false
	}
	return true
}

// AnyIntersects is true if at least one of boxes overlaps v.
func AnyIntersects(boxes []BBox, v BBox) bool {
	for _, b := range boxes {
		if Intersects(b, v) {
			return true
		}
	}
	return false
}

// Tier is one level of the administrative hierarchy.
type Tier int

const (
	TierCountry Tier = iota
	TierSubL1
	TierSubL2
	TierSubL3
)

func (t Tier) String() string {
	switch t {
	case TierCountry:
		return "country"
	case TierSubL1:
		return "subl1"
	case TierSubL2:
		return "subl2"
	case TierSubL3:
		return "subl3"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Source records how a match was established.
type Source string

const (
	SourceBBox    Source = "BBOX"
	SourceGeoJSON Source = "GEOJSON"
)

// ResultNode is one matched division. Children are keyed by display name.
type ResultNode struct {
	Code     string                 `json:"code"`
	Name     string                 `json:"name"`
	Tier     Tier                   `json:"tier"`
	Source   Source                 `json:"source"`
	Children map[string]*ResultNode `json:"children,omitempty"`
}

// Tree maps country display name to its matched subtree.
type Tree map[string]*ResultNode

// Clone returns a deep copy of n.
func (n *ResultNode) Clone() *ResultNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Children != nil {
		cp.Children = make(map[string]*ResultNode, len(n.Children))
		for k, c := range n.Children {
			cp.Children[k] = c.Clone()
		}
	}
	return &cp
}

// Level is the severity of a Diagnostic.
type Level string

const (
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Diagnostic describes a branch that was degraded during a resolve.
type Diagnostic struct {
	Level Level  `json:"level"`
	Tier  Tier   `json:"tier"`
	Code  string `json:"code,omitempty"`
	URL   string `json:"url,omitempty"`
	Err   string `json:"error"`
}

// Result is the outcome of a single resolve call.
type Result struct {
	Regions     Tree         `json:"regions"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}
