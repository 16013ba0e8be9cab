package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/d10r/sup-metrics-api/pkg/subgraph"
)

func newHub(t *testing.T, fail *bool, fetches *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*fetches++
		if *fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"space": map[string]any{
					"network": "8453",
					"strategies": []map[string]any{
						{"name": "erc20-balance-of"},
						{"name": "delegation"},
					},
				},
			},
		})
	}))
}

func TestSpaceCacheServesFreshValueWithoutRefetch(t *testing.T) {
	fail := false
	fetches := 0
	hub := newHub(t, &fail, &fetches)
	defer hub.Close()

	sc := NewSpaceCache(subgraph.NewClient(hub.URL, zaptest.NewLogger(t)), "test.eth", zaptest.NewLogger(t))

	cfg, err := sc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8453", cfg.Network)
	require.Len(t, cfg.Strategies, 2)

	_, err = sc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}

func TestSpaceCacheRefetchesWhenStale(t *testing.T) {
	fail := false
	fetches := 0
	hub := newHub(t, &fail, &fetches)
	defer hub.Close()

	sc := NewSpaceCache(subgraph.NewClient(hub.URL, zaptest.NewLogger(t)), "test.eth", zaptest.NewLogger(t))

	_, err := sc.Get(context.Background())
	require.NoError(t, err)

	// Move the clock past the TTL.
	sc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, err = sc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestSpaceCacheFallsBackToStaleOnError(t *testing.T) {
	fail := false
	fetches := 0
	hub := newHub(t, &fail, &fetches)
	defer hub.Close()

	sc := NewSpaceCache(subgraph.NewClient(hub.URL, zaptest.NewLogger(t)), "test.eth", zaptest.NewLogger(t))

	first, err := sc.Get(context.Background())
	require.NoError(t, err)

	sc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	fail = true

	second, err := sc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSpaceCacheErrorsWithoutFallback(t *testing.T) {
	fail := true
	fetches := 0
	hub := newHub(t, &fail, &fetches)
	defer hub.Close()

	sc := NewSpaceCache(subgraph.NewClient(hub.URL, zaptest.NewLogger(t)), "test.eth", zaptest.NewLogger(t))

	_, err := sc.Get(context.Background())
	require.Error(t, err)
}
