package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

// httpJSON scans a JSON listing endpoint. Field paths come from the source
// config, so one adapter covers any feed shape gjson can address. The
// cursor is the endpoint's ETag; an unchanged feed costs one 304.
type httpJSON struct {
	cfg config.Source
	hc  *http.Client
}

func newHTTPJSON(src config.Source) *httpJSON {
	return &httpJSON{
		cfg: src,
		hc:  &http.Client{Timeout: src.Timeout()},
	}
}

func (s *httpJSON) Name() string { return s.cfg.ID }

func (s *httpJSON) Scan(ctx context.Context, cursor string) ([]domain.RawRecord, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, cursor, err
	}
	req.Header.Set("User-Agent", "LeadEngine/1.0 (+local)")
	req.Header.Set("Accept", "application/json")
	if cursor != "" {
		req.Header.Set("If-None-Match", cursor)
	}

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, cursor, &domain.TransientError{Op: "httpjson get", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified {
		return nil, cursor, nil
	}
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return nil, cursor, &domain.TransientError{
			Op:  "httpjson get",
			Err: fmt.Errorf("status %d", res.StatusCode),
		}
	}
	if res.StatusCode >= 400 {
		return nil, cursor, fmt.Errorf("httpjson %s: status %d", s.cfg.ID, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, cursor, &domain.TransientError{Op: "httpjson read", Err: err}
	}

	itemsPath := s.field("items", "items")
	var records []domain.RawRecord
	gjson.GetBytes(body, itemsPath).ForEach(func(_, item gjson.Result) bool {
		records = append(records, domain.RawRecord{
			ExternalID:  item.Get(s.field("external_id", "id")).String(),
			Title:       item.Get(s.field("title", "title")).String(),
			Company:     item.Get(s.field("company", "company")).String(),
			Location:    item.Get(s.field("location", "location")).String(),
			Contact:     item.Get(s.field("contact", "contact")).String(),
			URL:         item.Get(s.field("url", "url")).String(),
			Description: item.Get(s.field("description", "description")).String(),
			PostedAt:    item.Get(s.field("posted_at", "posted_at")).String(),
			RawJSON:     item.Raw,
		})
		return true
	})

	next := res.Header.Get("ETag")
	if next == "" {
		next = time.Now().UTC().Format(time.RFC3339)
	}
	return records, next, nil
}

func (s *httpJSON) field(name, fallback string) string {
	if p, ok := s.cfg.Fields[name]; ok && p != "" {
		return p
	}
	return fallback
}
