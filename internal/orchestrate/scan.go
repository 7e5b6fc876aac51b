package orchestrate

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"leadengine/internal/dedupe"
	"leadengine/internal/domain"
	"leadengine/internal/events"
	"leadengine/internal/metrics"
	"leadengine/internal/store"
)

// SourceResult summarizes one source's contribution to a scan.
type SourceResult struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	New      int    `json:"new"`
	Updated  int    `json:"updated"`
	Merged   int    `json:"merged"`
	Rejected int    `json:"rejected"`
	Err      string `json:"error,omitempty"`
}

// ScanSummary is what /scan/status reports.
type ScanSummary struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceResult `json:"sources"`
}

// ScanOnce runs every adapter concurrently, each under its own timeout and
// rate limiter, and funnels the records through normalize and dedupe. One
// broken source never cancels its siblings.
func (o *Orchestrator) ScanOnce(ctx context.Context) (ScanSummary, error) {
	summary := ScanSummary{StartedAt: time.Now().UTC()}

	var g errgroup.Group
	var mu sync.Mutex

	for _, a := range o.adapters {
		a := a
		g.Go(func() error {
			res := o.scanSource(ctx, a)
			mu.Lock()
			summary.Sources = append(summary.Sources, res)
			mu.Unlock()
			return nil // best-effort: don't cancel siblings
		})
	}
	_ = g.Wait()

	summary.FinishedAt = time.Now().UTC()
	o.setLastScan(summary)
	o.hub.Emit(events.TypeScanFinished, summary)
	return summary, nil
}

func (o *Orchestrator) scanSource(ctx context.Context, a adapterEntry) SourceResult {
	res := SourceResult{Source: a.adapter.Name()}

	sctx, cancel := context.WithTimeout(ctx, a.src.Timeout())
	defer cancel()

	if err := o.limiters.get(a.src.ID).Wait(sctx); err != nil {
		res.Err = err.Error()
		return res
	}

	cursor, _, err := store.Cursor(sctx, o.db.Pool, a.src.ID)
	if err != nil {
		res.Err = err.Error()
		return res
	}

	log.Printf("[scan:%s] running cursor=%q", a.src.ID, cursor)
	records, next, err := a.adapter.Scan(sctx, cursor)
	if err != nil {
		metrics.ScanError(a.src.ID)
		log.Printf("[scan:%s] error: %v", a.src.ID, err)
		res.Err = err.Error()
		return res
	}
	res.Fetched = len(records)

	now := time.Now().UTC()
	for _, raw := range records {
		if err := sctx.Err(); err != nil {
			res.Err = err.Error()
			break
		}
		lead, ref, err := o.norm.Normalize(raw, a.src, now)
		if err != nil {
			var rej *domain.RejectError
			if errors.As(err, &rej) {
				res.Rejected++
				metrics.RecordRejected(a.src.ID, rej.Reason)
				continue
			}
			res.Err = err.Error()
			break
		}

		r, err := dedupe.Ingest(sctx, o.db, o.resolver, lead, ref)
		if err != nil {
			log.Printf("[scan:%s] ingest %s: %v", a.src.ID, lead.ID, err)
			continue
		}
		metrics.LeadIngested(a.src.ID, string(r.Kind))
		switch r.Kind {
		case dedupe.KindNew:
			res.New++
			o.hub.Emit(events.TypeLeadIngested, map[string]any{
				"lead_id": r.LeadID, "source": a.src.ID, "title": lead.Title,
			})
			if r.Flagged {
				o.hub.Emit(events.TypeLeadFlagged, map[string]any{"lead_id": r.LeadID})
			}
		case dedupe.KindUpdate:
			res.Updated++
		case dedupe.KindDuplicate:
			res.Merged++
		}
	}

	if err := store.SetCursor(ctx, o.db.Pool, a.src.ID, next, now); err != nil {
		log.Printf("[scan:%s] save cursor: %v", a.src.ID, err)
	}
	return res
}
