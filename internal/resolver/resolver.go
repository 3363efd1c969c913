// Package resolver walks the division hierarchy for a viewport, fetching one
// index document per surviving tier and optionally confirming SubL2 matches
// against their polygon geometry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
	"github.com/mohammed-shakir/region-resolver/internal/docstore"
	"github.com/mohammed-shakir/region-resolver/internal/geometry"
	"github.com/mohammed-shakir/region-resolver/internal/index"
	"github.com/mohammed-shakir/region-resolver/internal/logger"
	"github.com/mohammed-shakir/region-resolver/internal/pruner"
)

// Documents is the document cache the resolver reads through.
type Documents interface {
	Fetch(ctx context.Context, url string) (docstore.Document, error)
}

type Config struct {
	// country codes resolved down to SubL3 with geometry escalation;
	// nil means {"USA"}
	DetailedCountries []string
	// upper bound on concurrent document fetches; 1 resolves siblings in order
	MaxConcurrentFetches int
	// decoded geometry documents kept in memory
	GeometryCacheSize int
}

const (
	defaultMaxConcurrent = 8
	defaultGeometryCache = 256
)

type Resolver struct {
	docs       Documents
	layout     index.Layout
	detailed   map[string]struct{}
	sem        chan struct{}
	sequential bool
	geoms      *lru.Cache[string, decodedGeometry]
	pruner     *pruner.Pruner
	logger     *slog.Logger
}

type decodedGeometry struct {
	features []geometry.Feature
	warnings []error
}

func New(docs Documents, layout index.Layout, cfg Config, log *slog.Logger) (*Resolver, error) {
	if docs == nil {
		return nil, errors.New("resolver: documents are required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	detailed := cfg.DetailedCountries
	if detailed == nil {
		detailed = []string{"USA"}
	}
	limit := cfg.MaxConcurrentFetches
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}
	size := cfg.GeometryCacheSize
	if size <= 0 {
		size = defaultGeometryCache
	}
	geoms, err := lru.New[string, decodedGeometry](size)
	if err != nil {
		return nil, fmt.Errorf("resolver: geometry cache: %w", err)
	}

	r := &Resolver{
		docs:       docs,
		layout:     layout,
		detailed:   make(map[string]struct{}, len(detailed)),
		sem:        make(chan struct{}, limit),
		sequential: limit == 1,
		geoms:      geoms,
		pruner:     pruner.New(detailed),
		logger:     log,
	}
	for _, c := range detailed {
		if c = strings.TrimSpace(c); c != "" {
			r.detailed[c] = struct{}{}
		}
	}
	return r, nil
}

// Resolve returns the divisions intersecting viewport. It never fails:
// branches whose documents cannot be fetched or decoded are left out and
// reported in Result.Diagnostics.
func (r *Resolver) Resolve(ctx context.Context, viewport model.BBox, highPrecision bool) model.Result {
	start := time.Now()
	defer func() { observability.ObserveResolve(highPrecision, time.Since(start).Seconds()) }()

	ctx = logger.WithComponent(ctx, "resolver")
	w := &walk{r: r, viewport: viewport, highPrecision: highPrecision}

	url := r.layout.CountryIndexURL()
	countries, ok := w.index(ctx, model.TierCountry, "", url)
	if !ok {
		return model.Result{Regions: model.Tree{}, Diagnostics: w.diags.sorted()}
	}

	candidates := matching(countries, viewport)
	nodes := make([]*model.ResultNode, len(candidates))
	r.each(len(candidates), func(i int) {
		nodes[i] = w.country(ctx, candidates[i])
	})

	tree := model.Tree(w.assemble(ctx, model.TierCountry, candidates, nodes))
	return model.Result{
		Regions:     r.pruner.Prune(tree),
		Diagnostics: w.diags.sorted(),
	}
}

// per-call traversal state
type walk struct {
	r             *Resolver
	viewport      model.BBox
	highPrecision bool
	diags         collector
}

func (w *walk) country(ctx context.Context, c index.Entry) *model.ResultNode {
	_, detailed := w.r.detailed[c.Code]
	ctx = logger.WithTier(ctx, model.TierCountry.String())

	subs, ok := w.index(ctx, model.TierCountry, c.Code, w.r.layout.SubL1IndexURL(c.Code))
	if !ok {
		return nil
	}
	candidates := matching(subs, w.viewport)
	nodes := make([]*model.ResultNode, len(candidates))
	w.r.each(len(candidates), func(i int) {
		nodes[i] = w.subL1(ctx, c.Code, candidates[i], detailed)
	})

	return w.parent(ctx, c, model.TierCountry, candidates, nodes)
}

func (w *walk) subL1(ctx context.Context, cc string, s index.Entry, detailed bool) *model.ResultNode {
	ctx = logger.WithTier(ctx, model.TierSubL1.String())

	subs, ok := w.index(ctx, model.TierSubL1, s.Code, w.r.layout.SubL2IndexURL(cc, s.Code))
	if !ok {
		return nil
	}
	candidates := matching(subs, w.viewport)
	nodes := make([]*model.ResultNode, len(candidates))
	if detailed {
		w.r.each(len(candidates), func(i int) {
			nodes[i] = w.subL2(ctx, cc, s.Code, candidates[i])
		})
	} else {
		for i, e := range candidates {
			nodes[i] = leaf(e, model.TierSubL2, model.SourceBBox)
		}
	}

	return w.parent(ctx, s, model.TierSubL1, candidates, nodes)
}

// subL2 handles a county of a detailed country: it needs at least one
// intersecting SubL3 entry and, in high precision mode, a geometry feature
// that intersects the viewport.
func (w *walk) subL2(ctx context.Context, cc, s string, c index.Entry) *model.ResultNode {
	survivors := matching(c.Children, w.viewport)
	if len(survivors) == 0 {
		return nil
	}

	src := model.SourceBBox
	if w.highPrecision {
		ctx = logger.WithTier(ctx, model.TierSubL2.String())
		if !w.confirm(ctx, c.Code, w.r.layout.GeometryURL(cc, s, c.Code)) {
			return nil
		}
		src = model.SourceGeoJSON
	}

	nodes := make([]*model.ResultNode, len(survivors))
	for i, e := range survivors {
		nodes[i] = leaf(e, model.TierSubL3, src)
	}
	n := leaf(c, model.TierSubL2, src)
	n.Children = w.assemble(ctx, model.TierSubL3, survivors, nodes)
	return n
}

// confirm loads the geometry document of a county and reports whether any
// of its features intersects the viewport. Load failures reject.
func (w *walk) confirm(ctx context.Context, code, url string) bool {
	g, ok := w.r.geoms.Get(url)
	if !ok {
		doc, err := w.r.fetch(ctx, url)
		if err != nil {
			observability.IncEscalation("failed")
			w.fail(ctx, model.TierSubL2, code, url, err)
			return false
		}
		feats, warns, err := geometry.DecodeFeatures(doc.Body)
		if err != nil {
			observability.IncEscalation("failed")
			w.fail(ctx, model.TierSubL2, code, url, &docstore.ParseError{URL: url, Err: err})
			return false
		}
		g = decodedGeometry{features: feats, warnings: warns}
		w.r.geoms.Add(url, g)
	}
	for _, warn := range g.warnings {
		w.warn(ctx, model.TierSubL2, code, url, warn)
	}

	if geometry.AnyIntersects(g.features, w.viewport) {
		observability.IncEscalation("confirmed")
		return true
	}
	observability.IncEscalation("rejected")
	w.r.logger.DebugContext(ctx, "geometry rejected bbox match", "code", code, "url", url)
	return false
}

// parent builds an inner node, dropped when no child survived. Its source
// is GEOJSON as soon as one child was confirmed by geometry.
func (w *walk) parent(ctx context.Context, e index.Entry, tier model.Tier, entries []index.Entry, nodes []*model.ResultNode) *model.ResultNode {
	kids := w.assemble(ctx, tier+1, entries, nodes)
	if len(kids) == 0 {
		return nil
	}
	n := leaf(e, tier, model.SourceBBox)
	for _, k := range kids {
		if k.Source == model.SourceGeoJSON {
			n.Source = model.SourceGeoJSON
			break
		}
	}
	n.Children = kids
	return n
}

// assemble keys nodes by display name. entries are in code order, so on a
// name clash the greater code wins.
func (w *walk) assemble(ctx context.Context, tier model.Tier, entries []index.Entry, nodes []*model.ResultNode) map[string]*model.ResultNode {
	var out map[string]*model.ResultNode
	for i, n := range nodes {
		if n == nil {
			continue
		}
		if out == nil {
			out = make(map[string]*model.ResultNode, len(nodes))
		}
		name := entries[i].DisplayName()
		if prev, ok := out[name]; ok {
			w.warn(ctx, tier, n.Code, "", fmt.Errorf("name %q shared by %s and %s, keeping %s", name, prev.Code, n.Code, n.Code))
		}
		out[name] = n
	}
	return out
}

// index fetches and decodes an index document, recording a diagnostic
// against the branch (tier, code) on failure.
func (w *walk) index(ctx context.Context, tier model.Tier, code, url string) ([]index.Entry, bool) {
	doc, err := w.r.fetch(ctx, url)
	if err != nil {
		w.fail(ctx, tier, code, url, err)
		return nil, false
	}
	entries, err := index.Decode(doc.Body)
	if err != nil {
		w.fail(ctx, tier, code, url, &docstore.ParseError{URL: url, Err: err})
		return nil, false
	}
	return entries, true
}

func (w *walk) fail(ctx context.Context, tier model.Tier, code, url string, err error) {
	observability.IncDegraded(tier.String())
	w.r.logger.WarnContext(ctx, "branch degraded", "tier", tier.String(), "code", code, "url", url, "err", err)
	w.diags.add(model.Diagnostic{Level: model.LevelError, Tier: tier, Code: code, URL: url, Err: err.Error()})
}

func (w *walk) warn(ctx context.Context, tier model.Tier, code, url string, err error) {
	w.r.logger.WarnContext(ctx, "resolve warning", "tier", tier.String(), "code", code, "url", url, "err", err)
	w.diags.add(model.Diagnostic{Level: model.LevelWarn, Tier: tier, Code: code, URL: url, Err: err.Error()})
}

func (r *Resolver) fetch(ctx context.Context, url string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, &docstore.FetchError{URL: url, Err: err}
	}
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return docstore.Document{}, &docstore.FetchError{URL: url, Err: ctx.Err()}
	}
	defer func() { <-r.sem }()
	return r.docs.Fetch(ctx, url)
}

// each runs fn for 0..n-1, concurrently unless the resolver is sequential.
// Callers write results by index so assembly order does not depend on
// scheduling.
func (r *Resolver) each(n int, fn func(i int)) {
	if r.sequential || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func matching(entries []index.Entry, v model.BBox) []index.Entry {
	var out []index.Entry
	for _, e := range entries {
		if e.Matches(v) {
			out = append(out, e)
		}
	}
	return out
}

func leaf(e index.Entry, tier model.Tier, src model.Source) *model.ResultNode {
	return &model.ResultNode{Code: e.Code, Name: e.DisplayName(), Tier: tier, Source: src}
}
