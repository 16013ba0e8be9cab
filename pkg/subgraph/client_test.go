package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeItem struct {
	ID string `json:"id"`
}

func itemsQuery() PagedQuery[fakeItem] {
	return PagedQuery[fakeItem]{
		Query: `query Items($lastId: ID!, $limit: Int!) { items(first: $limit, where: { id_gt: $lastId }) { id } }`,
		Extract: func(data json.RawMessage) ([]fakeItem, error) {
			var env struct {
				Items []fakeItem `json:"items"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, err
			}
			return env.Items, nil
		},
		Cursor: func(i fakeItem) string { return i.ID },
		Limit:  2,
	}
}

func decodeVars(t *testing.T, r *http.Request) (lastID string, limit int) {
	t.Helper()
	var req struct {
		Variables map[string]any `json:"variables"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	lastID, _ = req.Variables["lastId"].(string)
	if f, ok := req.Variables["limit"].(float64); ok {
		limit = int(f)
	}
	return lastID, limit
}

func TestFetchAllAdvancesCursorUntilShortPage(t *testing.T) {
	pages := map[string][]string{
		"":   {"a", "b"},
		"b":  {"c", "d"},
		"d":  {"e"}, // short page ends the crawl
	}
	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		lastID, limit := decodeVars(t, r)
		assert.Equal(t, 2, limit)

		items := make([]fakeItem, 0, len(pages[lastID]))
		for _, id := range pages[lastID] {
			items = append(items, fakeItem{ID: id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"items": items}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	got := FetchAll(context.Background(), c, itemsQuery())

	require.Len(t, got, 5)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "e", got[4].ID)
	assert.Equal(t, 3, requests)
}

func TestFetchAllReturnsPartialOnServerError(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = decodeVars(t, r)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"items": []fakeItem{{ID: "a"}, {ID: "b"}},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	got := FetchAll(context.Background(), c, itemsQuery())

	// The first full page is kept; the failed second page ends the crawl.
	require.Len(t, got, 2)
	assert.Equal(t, 2, requests)
}

func TestFetchAllReturnsPartialOnQueryErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = decodeVars(t, r)
		if requests > 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]string{{"message": "indexing in progress"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"items": []fakeItem{{ID: "a"}, {ID: "b"}},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	got := FetchAll(context.Background(), c, itemsQuery())

	require.Len(t, got, 2)
}

func TestQueryReturnsGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"message": "boom"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	var out json.RawMessage
	err := c.Query(context.Background(), "query { x }", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestVestingScheduleActive(t *testing.T) {
	now := int64(1_000_000)

	for name, tc := range map[string]struct {
		vs     VestingSchedule
		active bool
	}{
		"running":  {VestingSchedule{EndDate: fmt.Sprint(now + 100)}, true},
		"ended":    {VestingSchedule{EndDate: fmt.Sprint(now - 100)}, false},
		"deleted":  {VestingSchedule{EndDate: fmt.Sprint(now + 100), DeletedAt: "123"}, false},
		"failed":   {VestingSchedule{EndDate: fmt.Sprint(now + 100), FailedAt: "456"}, false},
		"zeroends": {VestingSchedule{EndDate: "0"}, false},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.active, tc.vs.Active(now))
		})
	}
}
