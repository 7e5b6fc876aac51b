package dedupe

import (
	"context"
	"database/sql"
	"strings"

	"leadengine/internal/config"
	"leadengine/internal/domain"
	"leadengine/internal/normalize"
	"leadengine/internal/store"
)

// Kind names how a candidate lead resolved against the store.
type Kind string

const (
	KindNew       Kind = "new"       // first sighting anywhere
	KindUpdate    Kind = "update"    // same source saw it again
	KindDuplicate Kind = "duplicate" // another source carries the same opportunity
)

// Resolution is the outcome of running one candidate through the resolver.
type Resolution struct {
	Kind    Kind
	LeadID  string
	Flagged bool // near-match above the flag threshold but below merge
}

// Resolver applies the three-tier duplicate check: exact source reference,
// exact fingerprint, then fuzzy title+company similarity over a bounded
// window of recent leads.
type Resolver struct {
	Cfg config.Dedupe
}

// Resolve decides what a candidate is without mutating anything. It runs
// inside the caller's transaction so the decision and the write that
// follows see the same snapshot.
func (r *Resolver) Resolve(ctx context.Context, q store.Queryer, lead domain.Lead, ref domain.SourceRef) (Resolution, error) {
	if id, err := store.FindRef(ctx, q, ref.SourceID, ref.ExternalID); err == nil {
		return Resolution{Kind: KindUpdate, LeadID: id}, nil
	} else if err != domain.ErrNotFound {
		return Resolution{}, err
	}

	if id, err := store.FindFingerprint(ctx, q, lead.Fingerprint); err == nil {
		return Resolution{Kind: KindDuplicate, LeadID: id}, nil
	} else if err != domain.ErrNotFound {
		return Resolution{}, err
	}

	if !r.Cfg.FuzzyEnabled {
		return Resolution{Kind: KindNew, LeadID: lead.ID}, nil
	}

	recent, err := store.RecentLeads(ctx, q, r.Cfg.Window)
	if err != nil {
		return Resolution{}, err
	}
	candTokens := tokens(lead.Title, lead.Company)
	bestScore := 0.0
	bestID := ""
	for _, other := range recent {
		s := jaccard(candTokens, tokens(other.Title, other.Company))
		if s > bestScore {
			bestScore, bestID = s, other.ID
		}
	}
	switch {
	case bestScore >= r.Cfg.FuzzyThreshold:
		return Resolution{Kind: KindDuplicate, LeadID: bestID}, nil
	case bestScore >= r.Cfg.FlagThreshold:
		return Resolution{Kind: KindNew, LeadID: lead.ID, Flagged: true}, nil
	}
	return Resolution{Kind: KindNew, LeadID: lead.ID}, nil
}

// Ingest resolves and persists one candidate in a single transaction.
// Re-running it with the same input is a no-op beyond last_seen_at.
func Ingest(ctx context.Context, db *store.DB, r *Resolver, lead domain.Lead, ref domain.SourceRef) (Resolution, error) {
	var res Resolution
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = r.Resolve(ctx, tx, lead, ref)
		if err != nil {
			return err
		}
		switch res.Kind {
		case KindNew:
			lead.PossibleDuplicate = res.Flagged
			ref.LeadID = lead.ID
			return store.InsertLead(ctx, tx, lead, ref)
		default:
			ref.LeadID = res.LeadID
			return store.TouchSighting(ctx, tx, res.LeadID, ref, lead)
		}
	})
	return res, err
}

// tokens folds title and company into a set of comparison tokens.
func tokens(title, company string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(normalize.FoldText(title + " " + company)) {
		set[f] = struct{}{}
	}
	return set
}

// jaccard is intersection over union of the two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
