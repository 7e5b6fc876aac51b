package orchestrate

import (
	"math/rand"
	"time"
)

// backoff returns the wait before retry attempt n (1-based): base doubled
// per attempt, capped at max, plus up to 25% jitter.
func backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
