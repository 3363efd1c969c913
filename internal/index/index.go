// Package index decodes country and division index documents.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
)

// Entry is one administrative unit of an index document.
type Entry struct {
	Code     string
	Name     string
	Boxes    Boxes
	Children []Entry
}

// Matches reports whether any of the entry's boxes intersects v.
func (e Entry) Matches(v model.BBox) bool {
	return model.AnyIntersects(e.Boxes, v)
}

// DisplayName falls back to the code when the document carries no name.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Code
}

// Boxes accepts either a single [minLon,minLat,maxLon,maxLat] array or an
// array of them.
type Boxes []model.BBox

func (b *Boxes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	var single []float64
	if err := json.Unmarshal(data, &single); err == nil {
		box, err := toBox(single)
		if err != nil {
			return err
		}
		*b = Boxes{box}
		return nil
	}

	var many [][]float64
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("bbox: want [4]number or [][4]number: %w", err)
	}
	out := make(Boxes, 0, len(many))
	for i, c := range many {
		box, err := toBox(c)
		if err != nil {
			return fmt.Errorf("bbox %d: %w", i, err)
		}
		out = append(out, box)
	}
	*b = out
	return nil
}

func toBox(c []float64) (model.BBox, error) {
	if len(c) != 4 {
		return model.BBox{}, fmt.Errorf("bbox has %d values, want 4", len(c))
	}
	return model.BBox{MinLon: c[0], MinLat: c[1], MaxLon: c[2], MaxLat: c[3]}, nil
}

type rawEntry struct {
	Name     string              `json:"name"`
	BBox     Boxes               `json:"bbox"`
	Children map[string]rawEntry `json:"children"`
}

// Decode parses an index document keyed by code. Entries, and their inline
// children, are returned sorted by code.
func Decode(body []byte) ([]Entry, error) {
	var raw map[string]rawEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return flatten(raw), nil
}

func flatten(raw map[string]rawEntry) []Entry {
	if len(raw) == 0 {
		return nil
	}
	codes := make([]string, 0, len(raw))
	for c := range raw {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	out := make([]Entry, 0, len(codes))
	for _, c := range codes {
		r := raw[c]
		out = append(out, Entry{
			Code:     c,
			Name:     r.Name,
			Boxes:    r.BBox,
			Children: flatten(r.Children),
		})
	}
	return out
}
