package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/btouchard/boardcast/internal/item"
)

// Page is one page of raw records returned by the external store, in the
// order the store sorted them.
type Page struct {
	Records    []json.RawMessage
	HasMore    bool
	NextCursor string
}

// PageQuerier is the paginated read interface of the external store.
// An empty cursor requests the first page.
type PageQuerier interface {
	QueryPage(ctx context.Context, cursor string) (Page, error)
}

// Fetcher drives cursor pagination and normalizes every record.
type Fetcher struct {
	querier    PageQuerier
	normalizer *item.Normalizer
}

// NewFetcher creates a Fetcher reading from querier.
func NewFetcher(querier PageQuerier, normalizer *item.Normalizer) *Fetcher {
	return &Fetcher{querier: querier, normalizer: normalizer}
}

// FetchAll materializes the whole record set as Items, preserving page order
// and the order within each page. Records without a name are skipped; a
// repeated id keeps its first occurrence. Any page failure discards what was
// accumulated and returns an *UpstreamQueryError.
func (f *Fetcher) FetchAll(ctx context.Context) ([]item.Item, error) {
	start := time.Now()
	items := make([]item.Item, 0)
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	var cursor string
	pages, excluded := 0, 0
	for {
		page, err := f.querier.QueryPage(ctx, cursor)
		if err != nil {
			slog.Warn("store query failed",
				"page", pages+1,
				"error", err)
			if IsUpstreamQuery(err) {
				return nil, err
			}
			return nil, upstreamWrapError(err, "source: query page", cursor, 0, map[string]any{"page": pages + 1})
		}
		pages++

		for _, raw := range page.Records {
			it, ok := f.normalizer.Normalize(raw)
			if !ok {
				excluded++
				continue
			}
			if _, dup := seen[it.ID]; dup {
				slog.Debug("duplicate record id across pages", "id", it.ID)
				continue
			}
			seen[it.ID] = struct{}{}
			items = append(items, it)
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		if _, loop := visited[page.NextCursor]; loop {
			return nil, upstreamError("source: store repeated a pagination cursor", page.NextCursor, 0,
				map[string]any{"page": pages})
		}
		visited[page.NextCursor] = struct{}{}
		cursor = page.NextCursor
	}

	slog.Debug("store fetch complete",
		"pages", pages,
		"items", len(items),
		"excluded", excluded,
		"duration", time.Since(start))

	return items, nil
}
