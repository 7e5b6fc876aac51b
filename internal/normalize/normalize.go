package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"leadengine/internal/config"
	"leadengine/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// CleanText collapses whitespace (incl. NBSP) and trims.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// FoldText lowercases and compatibility-normalizes, so "Développeur" and
// full-width forms compare equal.
func FoldText(s string) string {
	return CleanText(folder.String(norm.NFKC.String(s)))
}

// Key reduces text to folded alphanumerics only. Two titles that differ in
// punctuation or spacing produce the same key.
func Key(s string) string {
	var b strings.Builder
	for _, r := range FoldText(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint is the stable identity of an opportunity: a SHA-1 over the
// normalized title and company. No per-run seed, so reprocessing the same
// record always yields the same value, and the same opportunity reported
// by two different sources collides on purpose.
func Fingerprint(title, company string) string {
	h := sha1.Sum([]byte(Key(title) + "|" + Key(company)))
	return hex.EncodeToString(h[:])
}

// ResolveURL resolves href against base; absolute hrefs pass through.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTime parses source-native timestamp text into UTC. Unix seconds are
// accepted too. Returns nil when nothing matches; a missing posted_at is
// not a rejection reason.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		u := time.Unix(secs, 0).UTC()
		return &u
	}
	return nil
}

type Normalizer struct {
	Filters config.Filters
}

func New(filters config.Filters) *Normalizer {
	return &Normalizer{Filters: filters}
}

// Normalize maps a raw record to the canonical Lead shape, or rejects it.
// Rejection is terminal for the record: reported, never retried.
func (n *Normalizer) Normalize(raw domain.RawRecord, src config.Source, now time.Time) (domain.Lead, domain.SourceRef, error) {
	title := CleanText(raw.Title)
	if title == "" {
		return domain.Lead{}, domain.SourceRef{}, &domain.RejectError{SourceID: src.ID, Reason: "missing_title"}
	}

	leadURL := ResolveURL(src.BaseURL, raw.URL)
	if leadURL == "" {
		return domain.Lead{}, domain.SourceRef{}, &domain.RejectError{SourceID: src.ID, Reason: "missing_url"}
	}

	company := CleanText(raw.Company)
	location := CleanText(raw.Location)
	contact := strings.ToLower(CleanText(raw.Contact))

	cand := domain.Lead{
		Title:    title,
		Company:  company,
		Location: location,
		Contact:  contact,
		URL:      leadURL,
		Status:   domain.StatusNew,
		PostedAt: ParseTime(raw.PostedAt),
		RawJSON:  raw.RawJSON,
	}

	keep, score, reason := Evaluate(n.Filters, cand, raw.Description)
	if !keep {
		return domain.Lead{}, domain.SourceRef{}, &domain.RejectError{SourceID: src.ID, Reason: reason}
	}
	cand.Score = score

	cand.Fingerprint = Fingerprint(title, company)
	cand.ID = cand.Fingerprint
	cand.FirstSeenAt = now.UTC()
	cand.LastSeenAt = now.UTC()

	externalID := CleanText(raw.ExternalID)
	if externalID == "" {
		externalID = leadURL
	}

	ref := domain.SourceRef{
		LeadID:      cand.ID,
		SourceID:    src.ID,
		ExternalID:  externalID,
		FirstSeenAt: now.UTC(),
		LastSeenAt:  now.UTC(),
	}
	return cand, ref, nil
}
