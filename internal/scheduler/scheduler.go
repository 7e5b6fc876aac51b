package scheduler

import (
	"context"
	"log"
	"math/rand"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on a fixed interval until ctx
// cancels. Task errors are logged, never fatal.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	// run immediately
	go func() {
		if err := task(ctx); err != nil {
			log.Printf("[%s] error: %v", name, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := task(ctx); err != nil {
				log.Printf("[%s] error: %v", name, err)
			}
		}
	}
}

// EveryJittered is Every with a random 0..jitter sleep before each run,
// so several loops on the same interval don't fire in lockstep.
func EveryJittered(ctx context.Context, interval, jitter time.Duration, name string, task Task) {
	Every(ctx, interval, name, func(ctx context.Context) error {
		if jitter > 0 {
			d := time.Duration(rand.Int63n(int64(jitter)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
		return task(ctx)
	})
}
