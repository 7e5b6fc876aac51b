package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything worth
// telling the operator about before the engine starts.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.IncludeKeywords = trimList(out.Filters.IncludeKeywords)
	out.Filters.ExcludeKeywords = trimList(out.Filters.ExcludeKeywords)
	out.Filters.LocationsAllow = trimList(out.Filters.LocationsAllow)
	out.Filters.LocationsBlock = trimList(out.Filters.LocationsBlock)

	// ---- Sources ----

	seenIDs := map[string]bool{}
	enabled := 0
	for i, s := range out.Sources {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			res.addErr("sources[%d]: id is required", i)
			continue
		}
		if seenIDs[id] {
			res.addErr("sources[%d]: duplicate id %q", i, id)
		}
		seenIDs[id] = true

		switch s.Kind {
		case "httpjson", "board":
			if strings.TrimSpace(s.URL) == "" {
				res.addErr("source %q: url is required for kind %q", id, s.Kind)
			}
		case "csvfile":
			if strings.TrimSpace(s.Path) == "" {
				res.addErr("source %q: path is required for kind csvfile", id)
			}
		default:
			res.addErr("source %q: unknown kind %q", id, s.Kind)
		}
		if s.Enabled {
			enabled++
		}
		if s.CadenceSeconds > 0 && s.CadenceSeconds < 30 {
			res.addWarn("source %q: cadence_seconds=%d is very low and may hit rate limits", id, s.CadenceSeconds)
		}
		if s.RatePerSec < 0 {
			res.addErr("source %q: rate_per_sec must be >= 0", id)
		}
	}
	if enabled == 0 {
		res.addWarn("no sources enabled; the engine will only serve the API")
	}

	// ---- Dedupe ----

	if out.Dedupe.FuzzyThreshold == 0 {
		out.Dedupe.FuzzyThreshold = 0.85
	}
	if out.Dedupe.FlagThreshold == 0 {
		out.Dedupe.FlagThreshold = 0.70
	}
	if out.Dedupe.Window <= 0 {
		out.Dedupe.Window = 500
	}
	if out.Dedupe.FuzzyThreshold <= out.Dedupe.FlagThreshold {
		res.addErr("dedupe.fuzzy_threshold (%.2f) must be above dedupe.flag_threshold (%.2f)",
			out.Dedupe.FuzzyThreshold, out.Dedupe.FlagThreshold)
	}
	if out.Dedupe.FuzzyThreshold > 1 || out.Dedupe.FlagThreshold < 0 {
		res.addErr("dedupe thresholds must stay within [0,1]")
	}

	// ---- Actions ----

	if out.Actions.Workers <= 0 {
		out.Actions.Workers = 2
	}
	if out.Actions.MaxAttempts <= 0 {
		out.Actions.MaxAttempts = 3
	}
	if out.Actions.BackoffBaseSeconds <= 0 {
		out.Actions.BackoffBaseSeconds = 5
	}
	if out.Actions.BackoffMaxSeconds <= 0 {
		out.Actions.BackoffMaxSeconds = 300
	}
	if out.Actions.MinDelaySeconds < 0 {
		res.addErr("actions.min_delay_seconds must be >= 0")
	}
	if out.Actions.MinDelaySeconds == 0 {
		res.addWarn("actions.min_delay_seconds is 0; outreach pacing is effectively disabled")
	}

	// ---- Mail / bounce ----

	if out.Mail.Enabled {
		if strings.TrimSpace(out.Mail.SMTPHost) == "" {
			res.addErr("mail.smtp_host is required when mail.enabled=true")
		}
		if out.Mail.SMTPPort == 0 {
			res.addErr("mail.smtp_port is required when mail.enabled=true")
		}
		if strings.TrimSpace(out.Mail.From) == "" {
			res.addErr("mail.from is required when mail.enabled=true")
		}
	}
	if out.Bounce.Enabled {
		if strings.TrimSpace(out.Bounce.IMAPHost) == "" {
			res.addErr("bounce.imap_host is required when bounce.enabled=true")
		}
		if strings.TrimSpace(out.Bounce.Mailbox) == "" {
			out.Bounce.Mailbox = "INBOX"
		}
		if out.Bounce.IntervalSeconds <= 0 {
			out.Bounce.IntervalSeconds = 600
		}
	}

	// ---- Plans ----

	seenPlans := map[string]bool{}
	for i, p := range out.Plans {
		code := strings.TrimSpace(p.Code)
		if code == "" {
			res.addErr("plans[%d]: code is required", i)
			continue
		}
		if seenPlans[code] {
			res.addErr("plans[%d]: duplicate code %q", i, code)
		}
		seenPlans[code] = true
		if p.Amount <= 0 {
			res.addErr("plan %q: amount must be > 0", code)
		}
		if strings.TrimSpace(p.Currency) == "" {
			res.addErr("plan %q: currency is required", code)
		}
		if p.DurationDays <= 0 {
			res.addErr("plan %q: duration_days must be > 0", code)
		}
	}

	// allow/block conflict check
	blockSet := map[string]bool{}
	for _, b := range out.Filters.LocationsBlock {
		blockSet[strings.ToLower(b)] = true
	}
	for _, a := range out.Filters.LocationsAllow {
		if blockSet[strings.ToLower(a)] {
			res.addWarn("location appears in both allow and block: %q", a)
		}
	}

	return out, res
}
