package source

import (
	"context"
	"fmt"

	"leadengine/internal/config"
	"leadengine/internal/domain"
)

// Adapter pulls raw records from one configured source. Scan receives the
// cursor returned by the previous scan (empty on the first run) and
// returns the records plus the cursor the next scan should resume from.
// The cursor is opaque to everything outside the adapter.
type Adapter interface {
	Name() string
	Scan(ctx context.Context, cursor string) ([]domain.RawRecord, string, error)
}

// New builds the adapter for one source definition.
func New(src config.Source) (Adapter, error) {
	switch src.Kind {
	case "httpjson":
		return newHTTPJSON(src), nil
	case "board":
		return newBoard(src), nil
	case "csvfile":
		return newCSVFile(src), nil
	}
	return nil, fmt.Errorf("source %s: unknown kind %q", src.ID, src.Kind)
}
