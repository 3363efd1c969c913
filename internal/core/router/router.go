package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/region-resolver/internal/core/config"
	"github.com/mohammed-shakir/region-resolver/internal/core/model"
	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
	"github.com/mohammed-shakir/region-resolver/internal/logger"
	"github.com/mohammed-shakir/region-resolver/internal/viewevents"
)

// Resolver answers validated viewport requests.
type Resolver interface {
	Resolve(ctx context.Context, viewport model.BBox, highPrecision bool) model.Result
}

type RegionsRequest struct {
	BBox          model.BBox
	HighPrecision bool
}

// validates input query params, resolves and writes the result as json
func HandleRegions(log *slog.Logger, cfg config.Config, res Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		q, err := ParseRegionsRequest(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/regions", http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		out := res.Resolve(r.Context(), q.BBox, q.HighPrecision)
		if out.Regions == nil {
			out.Regions = model.Tree{}
		}
		if len(out.Diagnostics) > 0 {
			log.InfoContext(r.Context(), "resolve degraded",
				"bbox", q.BBox.String(), "diagnostics", len(out.Diagnostics))
		}

		sw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(sw).Encode(out); err != nil {
			log.WarnContext(r.Context(), "write response", "err", err)
		}
		observability.ObserveHTTP(r.Method, "/regions", sw.code, time.Since(start).Seconds())

		if cfg.Events.Enabled {
			viewevents.Publish(viewevents.NewEvent(start, q.BBox, q.HighPrecision,
				countryNames(out.Regions), logger.RequestID(r.Context()), cfg.Events.H3Res))
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func ParseRegionsRequest(r *http.Request) (RegionsRequest, error) {
	q := r.URL.Query()

	raw := strings.TrimSpace(q.Get("bbox"))
	if raw == "" {
		return RegionsRequest{}, errors.New("missing required parameter: bbox")
	}
	bb, err := ParseBBox(raw)
	if err != nil {
		return RegionsRequest{}, fmt.Errorf("invalid bbox: %w", err)
	}

	var high bool
	switch p := strings.ToLower(strings.TrimSpace(q.Get("precision"))); p {
	case "", "bbox":
	case "high":
		high = true
	default:
		return RegionsRequest{}, fmt.Errorf("invalid precision %q (want high or bbox)", p)
	}
	return RegionsRequest{BBox: bb, HighPrecision: high}, nil
}

// ParseBBox reads "minLon,minLat,maxLon,maxLat" with an optional trailing
// EPSG:4326.
func ParseBBox(s string) (model.BBox, error) {
	parts := strings.Split(s, ",")
	switch len(parts) {
	case 4:
	case 5:
		if srid := strings.ToUpper(strings.TrimSpace(parts[4])); srid != "EPSG:4326" {
			return model.BBox{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
		}
	default:
		return model.BBox{}, errors.New("expected 4 comma-separated values: minLon,minLat,maxLon,maxLat")
	}

	var v [4]float64
	for i, name := range []string{"minLon", "minLat", "maxLon", "maxLat"} {
		f, err := parseFloat(parts[i])
		if err != nil {
			return model.BBox{}, fmt.Errorf("%s: %w", name, err)
		}
		v[i] = f
	}
	xMin, yMin, xMax, yMax := v[0], v[1], v[2], v[3]

	if !(xMin >= -180 && xMin <= 180 && xMax >= -180 && xMax <= 180) {
		return model.BBox{}, errors.New("longitude must be in [-180,180]")
	}
	if !(yMin >= -90 && yMin <= 90 && yMax >= -90 && yMax <= 90) {
		return model.BBox{}, errors.New("latitude must be in [-90,90]")
	}
	if xMax < xMin || yMax < yMin {
		return model.BBox{}, errors.New("coordinates must satisfy maxLon>=minLon and maxLat>=minLat")
	}
	return model.BBox{MinLon: xMin, MinLat: yMin, MaxLon: xMax, MaxLat: yMax}, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func countryNames(t model.Tree) []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
