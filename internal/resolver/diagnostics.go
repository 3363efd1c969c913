package resolver

import (
	"sort"
	"sync"

	"github.com/mohammed-shakir/region-resolver/internal/core/model"
)

type collector struct {
	mu   sync.Mutex
	list []model.Diagnostic
}

func (c *collector) add(d model.Diagnostic) {
	c.mu.Lock()
	c.list = append(c.list, d)
	c.mu.Unlock()
}

// sorted returns diagnostics in a scheduling-independent order
func (c *collector) sorted() []model.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.list) == 0 {
		return nil
	}
	out := make([]model.Diagnostic, len(c.list))
	copy(out, c.list)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.Err < b.Err
	})
	return out
}
