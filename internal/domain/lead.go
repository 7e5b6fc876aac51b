package domain

import "time"

// LeadStatus values advance forward along a lattice:
// new -> queued -> contacted/applied -> replied, or divert to skipped/expired.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusQueued    LeadStatus = "queued"
	StatusContacted LeadStatus = "contacted"
	StatusApplied   LeadStatus = "applied"
	StatusReplied   LeadStatus = "replied"
	StatusSkipped   LeadStatus = "skipped"
	StatusExpired   LeadStatus = "expired"
)

// Rank orders the lattice. contacted and applied share a rank; skipped and
// expired are terminal diversions reachable from any non-terminal status.
func (s LeadStatus) Rank() int {
	switch s {
	case StatusNew:
		return 0
	case StatusQueued:
		return 1
	case StatusContacted, StatusApplied:
		return 2
	case StatusReplied:
		return 3
	case StatusSkipped, StatusExpired:
		return 4
	}
	return -1
}

func (s LeadStatus) Valid() bool { return s.Rank() >= 0 }

func (s LeadStatus) Terminal() bool {
	return s == StatusSkipped || s == StatusExpired || s == StatusReplied
}

// CanAdvance reports whether a transition moves forward along the lattice.
// Manual overrides bypass this check and are recorded as explicit events.
func CanAdvance(from, to LeadStatus) bool {
	if from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	return to.Rank() > from.Rank()
}

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelApply    Channel = "apply"
	ChannelTelegram Channel = "telegram"
	// ChannelManual marks operator overrides in the event log.
	ChannelManual Channel = "manual"
)

// Lead is the canonical record for one real-world opportunity. Per-source
// attribution (source_id, external_id) lives in SourceRef rows so that the
// same opportunity reported by two sources stays a single Lead.
type Lead struct {
	ID                string // equals Fingerprint; one row per opportunity
	Fingerprint       string
	Title             string
	Company           string
	Location          string
	Contact           string // email address or messaging handle, may be empty
	URL               string
	Status            LeadStatus
	Score             int
	PossibleDuplicate bool
	PostedAt          *time.Time
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
	RawJSON           string
}

// SourceRef cross-references a Lead to one sighting source.
type SourceRef struct {
	LeadID      string
	SourceID    string
	ExternalID  string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeFailed      Outcome = "failed"
	OutcomeNeedsManual Outcome = "needs_manual"
)

// ContactEvent is one recorded outreach/apply attempt. At most one sent
// event may exist per (lead_id, channel); the store enforces this.
type ContactEvent struct {
	ID          int64
	LeadID      string
	Channel     Channel
	Outcome     Outcome
	AttemptedAt time.Time
	Detail      string
}

// RawRecord is what a source adapter hands the normalizer. Fields the
// adapter could not extract stay empty; the normalizer decides what is
// mandatory.
type RawRecord struct {
	ExternalID  string
	Title       string
	Company     string
	Location    string
	Contact     string
	URL         string
	Description string
	PostedAt    string // source-native timestamp text, parsed by the normalizer
	RawJSON     string
}
