package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadengine/internal/config"
	"leadengine/internal/domain"
	"leadengine/internal/normalize"
)

// board scans an HTML listing page. CSS selectors come from the source
// config with defaults that match common job-board markup. Boards expose
// no reliable pagination state, so the cursor stays empty.
type board struct {
	cfg config.Source
	hc  *http.Client
}

func newBoard(src config.Source) *board {
	return &board{
		cfg: src,
		hc:  &http.Client{Timeout: src.Timeout()},
	}
}

func (s *board) Name() string { return s.cfg.ID }

func (s *board) Scan(ctx context.Context, cursor string) ([]domain.RawRecord, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, cursor, err
	}
	req.Header.Set("User-Agent", "LeadEngine/1.0 (+local)")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, cursor, &domain.TransientError{Op: "board get", Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return nil, cursor, &domain.TransientError{
			Op:  "board get",
			Err: fmt.Errorf("status %d", res.StatusCode),
		}
	}
	if res.StatusCode >= 400 {
		return nil, cursor, fmt.Errorf("board %s: status %d", s.cfg.ID, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, cursor, fmt.Errorf("board %s: parse html: %w", s.cfg.ID, err)
	}

	base := s.cfg.BaseURL
	if base == "" {
		base = s.cfg.URL
	}

	seen := map[string]bool{}
	var records []domain.RawRecord
	doc.Find(s.sel("item", "a[href*='/jobs/']")).Each(func(_ int, item *goquery.Selection) {
		href := itemAttr(item, s.sel("url", ""), "href")
		abs := normalize.ResolveURL(base, strings.TrimSpace(href))
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true

		title := itemText(item, s.sel("title", ""))
		if title == "" {
			title = normalize.CleanText(item.Text())
		}

		rec := domain.RawRecord{
			ExternalID: abs,
			Title:      title,
			Company:    itemText(item, s.sel("company", ".company")),
			Location:   itemText(item, s.sel("location", ".location")),
			URL:        abs,
		}
		raw, _ := json.Marshal(map[string]string{
			"title": rec.Title, "company": rec.Company, "location": rec.Location, "url": abs,
		})
		rec.RawJSON = string(raw)
		records = append(records, rec)
	})

	return records, cursor, nil
}

func (s *board) sel(name, fallback string) string {
	if v, ok := s.cfg.Fields[name]; ok && v != "" {
		return v
	}
	return fallback
}

// itemText reads a sub-selection's text; an empty selector means the item
// itself.
func itemText(item *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	return normalize.CleanText(item.Find(sel).First().Text())
}

func itemAttr(item *goquery.Selection, sel, attr string) string {
	target := item
	if sel != "" {
		target = item.Find(sel).First()
	}
	v, _ := target.Attr(attr)
	return v
}
