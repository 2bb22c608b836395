package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/btouchard/boardcast/internal/config"
)

const maxResponseBytes int64 = 10 << 20 // 10MB

// HTTPDoer is the subset of *http.Client used by NotionClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotionClient queries a Notion database page by page.
type NotionClient struct {
	client     HTTPDoer
	baseURL    string
	token      string
	databaseID string
	apiVersion string
	pageSize   int
	sortBy     string
}

// NewNotionClient creates a client from the store configuration. A nil
// client gets an http.Client with cfg.Timeout (zero means no timeout).
func NewNotionClient(cfg config.StoreConfig, client HTTPDoer) *NotionClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &NotionClient{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		apiVersion: cfg.APIVersion,
		pageSize:   pageSize,
		sortBy:     cfg.Properties.Level,
	}
}

type querySort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

type queryRequest struct {
	PageSize    int         `json:"page_size"`
	StartCursor string      `json:"start_cursor,omitempty"`
	Sorts       []querySort `json:"sorts"`
}

type queryResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

// QueryPage fetches one page. Ordering is delegated to the store: level
// ascending, then last edit time ascending.
func (c *NotionClient) QueryPage(ctx context.Context, cursor string) (Page, error) {
	if c.databaseID == "" {
		return Page{}, upstreamError("source: store database id is not configured", cursor, 0, nil)
	}

	sorts := make([]querySort, 0, 2)
	if c.sortBy != "" {
		sorts = append(sorts, querySort{Property: c.sortBy, Direction: "ascending"})
	}
	sorts = append(sorts, querySort{Timestamp: "last_edited_time", Direction: "ascending"})

	body, err := json.Marshal(queryRequest{
		PageSize:    c.pageSize,
		StartCursor: cursor,
		Sorts:       sorts,
	})
	if err != nil {
		return Page{}, upstreamWrapError(err, "source: encode query", cursor, 0, nil)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, c.databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Page{}, upstreamWrapError(err, "source: create request", cursor, 0, nil)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, upstreamWrapError(err, "source: execute query", cursor, 0, nil)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return Page{}, upstreamWrapError(err, "source: read response", cursor, resp.StatusCode, nil)
	}
	if int64(len(data)) > maxResponseBytes {
		return Page{}, upstreamError(
			fmt.Sprintf("source: response exceeds %d bytes", maxResponseBytes),
			cursor, resp.StatusCode, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, upstreamError(
			fmt.Sprintf("source: store returned status %d: %s", resp.StatusCode, excerpt(data)),
			cursor, resp.StatusCode,
			map[string]any{"status_code": resp.StatusCode})
	}

	var qr queryResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return Page{}, upstreamWrapError(err, "source: decode response", cursor, resp.StatusCode, nil)
	}
	if qr.Results == nil {
		return Page{}, upstreamError("source: response has no results array", cursor, resp.StatusCode, nil)
	}

	page := Page{Records: qr.Results, HasMore: qr.HasMore}
	if qr.NextCursor != nil {
		page.NextCursor = *qr.NextCursor
	}
	return page, nil
}

func excerpt(data []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(data))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var _ PageQuerier = (*NotionClient)(nil)
