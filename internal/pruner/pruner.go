// Package pruner removes result branches that have no matching leaf.
package pruner

import (
	"strings"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
)

// Pruner knows which countries carry the three-level shape.
type Pruner struct {
	detailed map[string]struct{}
}

func New(detailed []string) *Pruner {
	p := &Pruner{detailed: make(map[string]struct{}, len(detailed))}
	for _, c := range detailed {
		if c = strings.TrimSpace(c); c != "" {
			p.detailed[c] = struct{}{}
		}
	}
	return p
}

// leaf tier for a country: SubL3 when detailed, SubL2 otherwise
func (p *Pruner) leafTier(countryCode string) model.Tier {
	if _, ok := p.detailed[countryCode]; ok {
		return model.TierSubL3
	}
	return model.TierSubL2
}

// Prune returns a copy of tree without countries, SubL1 or SubL2 nodes that
// have no surviving leaf beneath them. The input is not modified.
func (p *Pruner) Prune(tree model.Tree) model.Tree {
	out := make(model.Tree, len(tree))
	for name, country := range tree {
		if country == nil {
			continue
		}
		if kept := prune(country, p.leafTier(country.Code)); kept != nil {
			out[name] = kept
		}
	}
	return out
}

// bottom-up: returns nil when n should be dropped
func prune(n *model.ResultNode, leaf model.Tier) *model.ResultNode {
	if n.Tier >= leaf {
		return n.Clone()
	}
	var kids map[string]*model.ResultNode
	for name, c := range n.Children {
		if c == nil {
			continue
		}
		if kept := prune(c, leaf); kept != nil {
			if kids == nil {
				kids = make(map[string]*model.ResultNode, len(n.Children))
			}
			kids[name] = kept
		}
	}
	if len(kids) == 0 {
		return nil
	}
	cp := *n
	cp.Children = kids
	return &cp
}
