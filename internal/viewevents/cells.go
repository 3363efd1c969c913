package viewevents

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
)

// viewports whose cover would exceed this many cells are reported by their
// centre cell only
const maxCoverCells = 64

// average hexagon area at resolution 0, km^2
const res0AreaKm2 = 4357449.4

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func centreCell(bb model.BBox, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	lon, lat := bb.Center()
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

// coverCells returns the sorted cells whose centres fall inside bb, or
// errTooLarge when the estimate exceeds limit.
func coverCells(bb model.BBox, res, limit int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if estimateCells(bb, res) > float64(limit) {
		return nil, errTooLarge
	}
	outer := h3.GeoLoop{
		{Lat: bb.MinLat, Lng: bb.MinLon},
		{Lat: bb.MinLat, Lng: bb.MaxLon},
		{Lat: bb.MaxLat, Lng: bb.MaxLon},
		{Lat: bb.MaxLat, Lng: bb.MinLon},
	}
	idx, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	if len(idx) > limit {
		return nil, errTooLarge
	}

	out := make([]string, 0, len(idx))
	seen := make(map[string]struct{}, len(idx))
	for _, c := range idx {
		s := c.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

var errTooLarge = errors.New("viewport cover exceeds cell limit")

// rough: planar degree area against the average cell area at res
func estimateCells(bb model.BBox, res int) float64 {
	_, lat := bb.Center()
	const kmPerDeg = 111.32
	w := math.Abs(bb.MaxLon-bb.MinLon) * kmPerDeg * math.Cos(lat*math.Pi/180)
	h := math.Abs(bb.MaxLat-bb.MinLat) * kmPerDeg
	return w * h / (res0AreaKm2 / math.Pow(7, float64(res)))
}
