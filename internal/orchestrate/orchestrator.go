package orchestrate

import (
	"context"
	"sync"
	"time"

	"leadengine/internal/config"
	"leadengine/internal/dedupe"
	"leadengine/internal/events"
	exec "leadengine/internal/exec"
	"leadengine/internal/normalize"
	"leadengine/internal/scheduler"
	"leadengine/internal/source"
	"leadengine/internal/store"
)

type adapterEntry struct {
	src     config.Source
	adapter source.Adapter
}

// Orchestrator owns the two loops of the engine: the scan loop that pulls
// and ingests leads, and the action loop that works them off.
type Orchestrator struct {
	cfg       config.Config
	db        *store.DB
	hub       *events.Hub
	norm      *normalize.Normalizer
	resolver  *dedupe.Resolver
	adapters  []adapterEntry
	executors []exec.Executor
	limiters  *limiters

	mu       sync.Mutex
	lastScan *ScanSummary
	scanning bool
}

func New(cfg config.Config, db *store.DB, hub *events.Hub, executors []exec.Executor) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:       cfg,
		db:        db,
		hub:       hub,
		norm:      normalize.New(cfg.Filters),
		resolver:  &dedupe.Resolver{Cfg: cfg.Dedupe},
		executors: executors,
		limiters:  newLimiters(cfg.Sources),
	}
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		a, err := source.New(src)
		if err != nil {
			return nil, err
		}
		o.adapters = append(o.adapters, adapterEntry{src: src, adapter: a})
	}
	return o, nil
}

// Run blocks until ctx cancels, driving the scan and action loops on
// their configured cadences.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Every(ctx, o.scanInterval(), "scan", func(ctx context.Context) error {
			return o.triggerScan(ctx)
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		jitter := time.Duration(o.cfg.Actions.JitterSeconds) * time.Second
		scheduler.EveryJittered(ctx, time.Minute, jitter, "actions", o.RunActionsOnce)
	}()

	wg.Wait()
}

// scanInterval is the shortest cadence across enabled sources; each
// adapter still respects its own rate limit inside the scan.
func (o *Orchestrator) scanInterval() time.Duration {
	interval := 5 * time.Minute
	for _, a := range o.adapters {
		if c := a.src.Cadence(); c < interval {
			interval = c
		}
	}
	return interval
}

// triggerScan runs one scan unless one is already in flight.
func (o *Orchestrator) triggerScan(ctx context.Context) error {
	o.mu.Lock()
	if o.scanning {
		o.mu.Unlock()
		return nil
	}
	o.scanning = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.scanning = false
		o.mu.Unlock()
	}()

	_, err := o.ScanOnce(ctx)
	return err
}

// TriggerScan is the API entry: it reports whether a scan was started or
// one was already running.
func (o *Orchestrator) TriggerScan(ctx context.Context) bool {
	o.mu.Lock()
	running := o.scanning
	o.mu.Unlock()
	if running {
		return false
	}
	go func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_ = o.triggerScan(sctx)
	}()
	return true
}

func (o *Orchestrator) setLastScan(s ScanSummary) {
	o.mu.Lock()
	o.lastScan = &s
	o.mu.Unlock()
}

// Status reports the last finished scan and whether one is running now.
func (o *Orchestrator) Status() (last *ScanSummary, scanning bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastScan, o.scanning
}
