package viewevents

import (
	"errors"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
)

func TestCoverCells_SmallViewport(t *testing.T) {
	bb := model.BBox{MinLon: 18.0, MinLat: 59.30, MaxLon: 18.1, MaxLat: 59.35}
	cells, err := coverCells(bb, 7, maxCoverCells)
	if err != nil {
		t.Fatalf("coverCells: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("expected at least one cell")
	}
	if !sort.StringsAreSorted(cells) {
		t.Fatalf("cells must be sorted")
	}
	for _, s := range cells {
		var c h3.Cell
		if err := c.UnmarshalText([]byte(s)); err != nil || !c.IsValid() || c.Resolution() != 7 {
			t.Fatalf("bad cell %q", s)
		}
	}
}

func TestCoverCells_TooLarge(t *testing.T) {
	bb := model.BBox{MinLon: -80, MinLat: 25, MaxLon: -79, MaxLat: 26}
	if _, err := coverCells(bb, 9, maxCoverCells); !errors.Is(err, errTooLarge) {
		t.Fatalf("want errTooLarge, got %v", err)
	}
	if _, err := coverCells(bb, 16, maxCoverCells); err == nil {
		t.Fatalf("expected resolution error")
	}
}

func TestCentreCell(t *testing.T) {
	bb := model.BBox{MinLon: 18.0, MinLat: 59.3, MaxLon: 18.1, MaxLat: 59.4}
	got, err := centreCell(bb, 9)
	if err != nil {
		t.Fatalf("centreCell: %v", err)
	}
	want, _ := h3.LatLngToCell(h3.LatLng{Lat: 59.35, Lng: 18.05}, 9)
	if got != want.String() {
		t.Fatalf("got %s want %s", got, want)
	}
}
