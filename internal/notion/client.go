// Package notion implements the remote source boundary: a minimal client for
// the Notion REST API covering database queries, block trees, comments, file
// downloads and the database schema.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/taskmill/taskmill/internal/retry"
	"github.com/taskmill/taskmill/internal/types"
)

const (
	DefaultBaseURL  = "https://api.notion.com"
	DefaultVersion  = "2022-06-28"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 100
)

// Client talks to one Notion database. All calls go through the retry policy;
// rate-limit responses surface as transient errors carrying the server's
// requested cooldown.
type Client struct {
	BaseURL    string
	Token      string
	DatabaseID string
	Version    string
	PageSize   int
	HTTPClient *http.Client
	Retry      retry.Policy
}

// NewClient creates a client for the given database.
func NewClient(baseURL, token, databaseID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		DatabaseID: databaseID,
		Version:    DefaultVersion,
		PageSize:   DefaultPageSize,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Retry:      retry.Default(),
	}
}

// request sends one API request under the retry policy and returns the
// response body.
func (c *Client) request(ctx context.Context, op, method, path string, body interface{}) ([]byte, error) {
	var respBody []byte
	err := c.Retry.Do(ctx, func() error {
		var bodyReader io.Reader
		if body != nil {
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Notion-Version", c.Version)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return &types.TransientError{Op: op, Err: err}
		}

		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return &types.TransientError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return &types.TransientError{
				Op:         op,
				RetryAfter: retryAfter(resp),
				Err:        fmt.Errorf("rate limited (status 429)"),
			}
		case resp.StatusCode >= 500:
			return &types.TransientError{
				Op:  op,
				Err: fmt.Errorf("server error: %s (status %d)", data, resp.StatusCode),
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("API error: %s (status %d)", data, resp.StatusCode)
		}

		respBody = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// retryAfter parses the cooldown the server asked for, if any.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// ListRecords fetches one page of the database listing. An empty cursor
// starts from the beginning; the returned cursor is empty once exhausted.
func (c *Client) ListRecords(ctx context.Context, cursor string) ([]Record, string, error) {
	if c.DatabaseID == "" {
		return nil, "", fmt.Errorf("database ID not configured")
	}

	body := map[string]interface{}{"page_size": c.PageSize}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	resp, err := c.request(ctx, "query", "POST", "/v1/databases/"+c.DatabaseID+"/query", body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query database: %w", err)
	}

	var page listResponse[Record]
	if err := json.Unmarshal(resp, &page); err != nil {
		return nil, "", fmt.Errorf("failed to parse query results: %w", err)
	}

	next := ""
	if page.HasMore && page.NextCursor != nil {
		next = *page.NextCursor
	}
	return page.Results, next, nil
}

// BlockTree fetches the full content tree under a block, descending into
// every block that reports children (toggles, tables, nested lists). Blocks
// keep the order the API reports them in.
func (c *Client) BlockTree(ctx context.Context, blockID string) ([]Block, error) {
	blocks, err := c.blockChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if !blocks[i].HasChildren {
			continue
		}
		children, err := c.BlockTree(ctx, blocks[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch children of block %s: %w", blocks[i].ID, err)
		}
		blocks[i].Children = children
	}
	return blocks, nil
}

// blockChildren fetches the direct children of one block, following the
// cursor until exhausted.
func (c *Client) blockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var all []Block
	cursor := ""
	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(c.PageSize))
		if cursor != "" {
			params.Set("start_cursor", cursor)
		}

		resp, err := c.request(ctx, "blocks", "GET", "/v1/blocks/"+blockID+"/children?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list block children: %w", err)
		}

		var page listResponse[Block]
		if err := json.Unmarshal(resp, &page); err != nil {
			return nil, fmt.Errorf("failed to parse block children: %w", err)
		}
		all = append(all, page.Results...)

		if !page.HasMore || page.NextCursor == nil {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}

// Comments fetches all comments on a page, following the cursor until
// exhausted.
func (c *Client) Comments(ctx context.Context, pageID string) ([]Comment, error) {
	var all []Comment
	cursor := ""
	for {
		params := url.Values{}
		params.Set("block_id", pageID)
		params.Set("page_size", strconv.Itoa(c.PageSize))
		if cursor != "" {
			params.Set("start_cursor", cursor)
		}

		resp, err := c.request(ctx, "comments", "GET", "/v1/comments?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments: %w", err)
		}

		var page listResponse[Comment]
		if err := json.Unmarshal(resp, &page); err != nil {
			return nil, fmt.Errorf("failed to parse comments: %w", err)
		}
		all = append(all, page.Results...)

		if !page.HasMore || page.NextCursor == nil {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}

// DownloadFile fetches an attachment. Hosted file URLs are presigned, so no
// auth headers are sent.
func (c *Client) DownloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	var data []byte
	err := c.Retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return &types.TransientError{Op: "download", Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return &types.TransientError{
				Op:         "download",
				RetryAfter: retryAfter(resp),
				Err:        fmt.Errorf("rate limited (status 429)"),
			}
		case resp.StatusCode >= 500:
			return &types.TransientError{
				Op:  "download",
				Err: fmt.Errorf("server error (status %d)", resp.StatusCode),
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("download error (status %d)", resp.StatusCode)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return &types.TransientError{Op: "download", Err: fmt.Errorf("failed to read file body: %w", err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Schema fetches the database schema for health checks.
func (c *Client) Schema(ctx context.Context) (*Database, error) {
	if c.DatabaseID == "" {
		return nil, fmt.Errorf("database ID not configured")
	}

	resp, err := c.request(ctx, "schema", "GET", "/v1/databases/"+c.DatabaseID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch database schema: %w", err)
	}

	var db Database
	if err := json.Unmarshal(resp, &db); err != nil {
		return nil, fmt.Errorf("failed to parse database schema: %w", err)
	}
	return &db, nil
}
