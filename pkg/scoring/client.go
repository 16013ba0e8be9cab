// Package scoring computes per-address voting power by delegating to an
// external scoring engine, parameterized by a governance space's strategy
// set. Requests are chunked to respect the engine's request-size limit.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/retry"
	"github.com/d10r/sup-metrics-api/pkg/utils"
)

// Strategy is one scoring rule of a space (e.g. token balance, delegation
// passthrough). Params are passed through to the engine untouched.
type Strategy struct {
	Name    string          `json:"name"`
	Network string          `json:"network,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsDelegation reports whether a strategy routes delegated inflow.
// "Own" voting power is always scored without these so delegated power is
// never double counted.
func (s Strategy) IsDelegation() bool {
	return strings.Contains(strings.ToLower(s.Name), "delegation")
}

// WithoutDelegation filters delegation-type strategies out of a set.
func WithoutDelegation(strategies []Strategy) []Strategy {
	out := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if !s.IsDelegation() {
			out = append(out, s)
		}
	}
	return out
}

// Client talks to the external scoring engine.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	retryCfg retry.Config
}

func NewClient(endpoint string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
		retryCfg: retry.DefaultConfig(),
	}
}

type scoreRequest struct {
	Params scoreParams `json:"params"`
}

type scoreParams struct {
	Space      string     `json:"space"`
	Network    string     `json:"network"`
	Snapshot   string     `json:"snapshot"`
	Strategies []Strategy `json:"strategies"`
	Addresses  []string   `json:"addresses"`
}

type scoreResponse struct {
	Result struct {
		// One map per strategy, address -> voting power component.
		Scores []map[string]float64 `json:"scores"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

// GetScores scores one batch of addresses against the given strategy set,
// summing per-strategy components per address. Keys are lowercased.
func (c *Client) GetScores(ctx context.Context, space, network string, strategies []Strategy, addresses []string) (map[string]float64, error) {
	payload, err := json.Marshal(scoreRequest{Params: scoreParams{
		Space:      space,
		Network:    network,
		Snapshot:   "latest",
		Strategies: strategies,
		Addresses:  addresses,
	}})
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	var decoded scoreResponse
	err = retry.WithBackoff(ctx, c.retryCfg, c.logger, "score batch", func() error {
		req, rErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if rErr != nil {
			return rErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, dErr := c.http.Do(req)
		if dErr != nil {
			return dErr
		}
		if resp.StatusCode != http.StatusOK {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("scoring engine returned status %d", resp.StatusCode)
		}
		decoded = scoreResponse{}
		if jErr := json.NewDecoder(resp.Body).Decode(&decoded); jErr != nil {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("decode score response: %w", jErr)
		}
		if cErr := utils.DrainAndClose(resp.Body); cErr != nil {
			return cErr
		}
		if len(decoded.Error) > 0 && string(decoded.Error) != "null" {
			return fmt.Errorf("scoring engine error: %s", decoded.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(addresses))
	for _, strategyScores := range decoded.Result.Scores {
		for addr, vp := range strategyScores {
			scores[utils.NormalizeAddress(addr)] += vp
		}
	}
	return scores, nil
}

// GetScoresChunked splits the address set into chunks of at most chunkSize
// and merges the per-chunk results. Any failed chunk fails the whole call:
// own voting power is load bearing for everything downstream, a hole in it
// would silently zero out members.
func (c *Client) GetScoresChunked(ctx context.Context, space, network string, strategies []Strategy, addresses []string, chunkSize int) (map[string]float64, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}

	merged := make(map[string]float64, len(addresses))
	for start := 0; start < len(addresses); start += chunkSize {
		end := start + chunkSize
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		scores, err := c.GetScores(ctx, space, network, strategies, chunk)
		if err != nil {
			return nil, fmt.Errorf("score chunk %d-%d of %d: %w", start, end, len(addresses), err)
		}
		for addr, vp := range scores {
			merged[addr] = vp
		}

		c.logger.Debug("Scored address chunk",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(addresses)))
	}
	return merged, nil
}
