package normalize

import (
	"strings"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

// Evaluate applies the configured content filter to a candidate and scores
// it. The score only counts include-keyword hits; it is deterministic for a
// given config and input.
func Evaluate(f config.Filters, lead domain.Lead, description string) (keep bool, score int, reason string) {
	text := FoldText(strings.Join([]string{lead.Title, lead.Company, lead.Location, description}, " "))

	for _, kw := range f.ExcludeKeywords {
		if k := FoldText(kw); k != "" && strings.Contains(text, k) {
			return false, 0, "excluded_keyword"
		}
	}

	if !passesLocation(f, lead, text) {
		return false, 0, "location"
	}

	score = scoreText(f.IncludeKeywords, text)
	if len(f.IncludeKeywords) > 0 && score == 0 {
		return false, 0, "no_keyword_match"
	}
	if score < f.MinScore {
		return false, score, "below_min_score"
	}
	return true, score, ""
}

func scoreText(include []string, text string) int {
	if len(include) == 0 {
		return 1
	}
	score := 0
	for _, kw := range include {
		if k := FoldText(kw); k != "" && strings.Contains(text, k) {
			score++
		}
	}
	return score
}

func passesLocation(f config.Filters, lead domain.Lead, text string) bool {
	loc := FoldText(lead.Location)
	isRemote := strings.Contains(text, "remote") || strings.Contains(text, "worldwide") || strings.Contains(text, "anywhere")

	// Blocklist wins
	for _, b := range f.LocationsBlock {
		if k := FoldText(b); k != "" && (strings.Contains(loc, k) || strings.Contains(text, k)) {
			return false
		}
	}

	if isRemote {
		return f.RemoteOK
	}

	// Allowlist: empty means allow everything not blocked
	if len(f.LocationsAllow) == 0 {
		return true
	}
	for _, a := range f.LocationsAllow {
		if k := FoldText(a); k != "" && (strings.Contains(loc, k) || strings.Contains(text, k)) {
			return true
		}
	}
	return false
}
