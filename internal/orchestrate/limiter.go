package orchestrate

import (
	"sync"

	"golang.org/x/time/rate"

	"leadengine/internal/config"
)

// limiters hands out one token bucket per source so a burst on one feed
// cannot starve the others.
type limiters struct {
	mu   sync.Mutex
	byID map[string]*rate.Limiter
	cfg  map[string]config.Source
}

func newLimiters(sources []config.Source) *limiters {
	cfg := make(map[string]config.Source, len(sources))
	for _, s := range sources {
		cfg[s.ID] = s
	}
	return &limiters{byID: make(map[string]*rate.Limiter), cfg: cfg}
}

func (l *limiters) get(sourceID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.byID[sourceID]; ok {
		return lim
	}
	r, burst := 1.0, 1
	if s, ok := l.cfg[sourceID]; ok {
		if s.RatePerSec > 0 {
			r = s.RatePerSec
		}
		if s.Burst > 0 {
			burst = s.Burst
		}
	}
	lim := rate.NewLimiter(rate.Limit(r), burst)
	l.byID[sourceID] = lim
	return lim
}
