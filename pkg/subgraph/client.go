// Package subgraph talks to GraphQL-indexed event sources (token program
// subgraph, delegation registry) and crawls cursor-paginated collections.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/utils"
)

// Client is a minimal GraphQL-over-HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(endpoint string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query executes a single GraphQL query and unmarshals the "data" field
// into out. Query-level errors reported by the server are returned as an
// error, never partially decoded.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = utils.DrainAndClose(resp.Body)
		return fmt.Errorf("graphql endpoint returned status %d", resp.StatusCode)
	}

	var decoded gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		_ = utils.DrainAndClose(resp.Body)
		return fmt.Errorf("decode response: %w", err)
	}
	if cerr := utils.DrainAndClose(resp.Body); cerr != nil {
		return cerr
	}

	if len(decoded.Errors) > 0 {
		return fmt.Errorf("graphql errors: %s", decoded.Errors[0].Message)
	}

	if out != nil {
		if err := json.Unmarshal(decoded.Data, out); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return nil
}

const defaultPageSize = 1000

// PagedQuery describes one cursor-paginated collection. The query must
// accept $lastId and $limit variables and return items in ascending id
// order so the last item's id can serve as the next cursor.
type PagedQuery[T any] struct {
	Query     string
	Variables map[string]any
	// Extract pulls the item slice out of the response data envelope.
	Extract func(data json.RawMessage) ([]T, error)
	// Cursor returns the pagination id of an item.
	Cursor func(item T) string
	Limit  int
}

// FetchAll crawls all pages of a collection. A page returning fewer items
// than the limit ends the crawl. A failed page also ends the crawl,
// returning what was accumulated so far: downstream aggregation tolerates
// incomplete sets, and the next refresh cycle is the retry.
func FetchAll[T any](ctx context.Context, c *Client, q PagedQuery[T]) []T {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var all []T
	lastID := ""
	for {
		vars := map[string]any{"lastId": lastID, "limit": limit}
		for k, v := range q.Variables {
			vars[k] = v
		}

		var data json.RawMessage
		if err := c.Query(ctx, q.Query, vars, &data); err != nil {
			c.logger.Warn("Subgraph page fetch failed, returning partial collection",
				zap.String("endpoint", c.endpoint),
				zap.Int("accumulated", len(all)),
				zap.Error(err))
			return all
		}

		items, err := q.Extract(data)
		if err != nil {
			c.logger.Warn("Subgraph page decode failed, returning partial collection",
				zap.String("endpoint", c.endpoint),
				zap.Int("accumulated", len(all)),
				zap.Error(err))
			return all
		}

		all = append(all, items...)
		if len(items) < limit {
			return all
		}
		lastID = q.Cursor(items[len(items)-1])
	}
}
