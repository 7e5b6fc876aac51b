package entitle

import (
	"fmt"
	"time"

	"leadengine/internal/config"
)

// Catalog is the sellable plan set, keyed by plan code.
type Catalog struct {
	plans map[string]config.Plan
}

func NewCatalog(plans []config.Plan) *Catalog {
	m := make(map[string]config.Plan, len(plans))
	for _, p := range plans {
		m[p.Code] = p
	}
	return &Catalog{plans: m}
}

func (c *Catalog) Lookup(code string) (config.Plan, error) {
	p, ok := c.plans[code]
	if !ok {
		return config.Plan{}, fmt.Errorf("unknown plan %q", code)
	}
	return p, nil
}

func (c *Catalog) Plans() []config.Plan {
	out := make([]config.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	return out
}

func duration(p config.Plan) time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
