package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

// csvFile scans a local CSV drop (manual exports, partner dumps). The
// header row names the columns; the cursor is the file's mtime, so an
// untouched file is skipped outright.
type csvFile struct {
	cfg config.Source
}

func newCSVFile(src config.Source) *csvFile {
	return &csvFile{cfg: src}
}

func (s *csvFile) Name() string { return s.cfg.ID }

func (s *csvFile) Scan(ctx context.Context, cursor string) ([]domain.RawRecord, string, error) {
	fi, err := os.Stat(s.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cursor, nil
		}
		return nil, cursor, err
	}
	mtime := fi.ModTime().UTC().Format(time.RFC3339)
	if cursor == mtime {
		return nil, cursor, nil
	}

	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return nil, cursor, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, mtime, nil
		}
		return nil, cursor, fmt.Errorf("csv %s: read header: %w", s.cfg.ID, err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var records []domain.RawRecord
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, cursor, err
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cursor, fmt.Errorf("csv %s: line %d: %w", s.cfg.ID, line, err)
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		rec := domain.RawRecord{
			ExternalID:  get("external_id"),
			Title:       get("title"),
			Company:     get("company"),
			Location:    get("location"),
			Contact:     get("contact"),
			URL:         get("url"),
			Description: get("description"),
			PostedAt:    get("posted_at"),
		}
		raw, _ := json.Marshal(rowMap(header, row))
		rec.RawJSON = string(raw)
		records = append(records, rec)
	}
	return records, mtime, nil
}

func rowMap(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(row) {
			m[strings.ToLower(strings.TrimSpace(h))] = row[i]
		}
	}
	return m
}
