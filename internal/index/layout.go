package index

import (
	"net/url"
	"strings"
)

// Layout derives document URLs from the store's base URL.
type Layout struct {
	Base string
}

func NewLayout(base string) Layout {
	return Layout{Base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

func (l Layout) CountryIndexURL() string {
	return l.join("countries.json")
}

func (l Layout) SubL1IndexURL(country string) string {
	return l.join(url.PathEscape(country), "index.json")
}

func (l Layout) SubL2IndexURL(country, subl1 string) string {
	return l.join(url.PathEscape(country), url.PathEscape(subl1), "index.json")
}

// GeometryURL addresses the FeatureCollection of one SubL2 division.
func (l Layout) GeometryURL(country, subl1, subl2 string) string {
	return l.join(url.PathEscape(country), url.PathEscape(subl1), url.PathEscape(subl2)+".geojson")
}

func (l Layout) join(parts ...string) string {
	return l.Base + "/" + strings.Join(parts, "/")
}
