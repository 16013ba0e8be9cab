// Package chainrpc issues read-only contract calls against an EVM JSON-RPC
// endpoint. Calls are batched; failures are captured per item so one bad
// address never aborts a whole batch.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/retry"
	"github.com/d10r/sup-metrics-api/pkg/utils"
)

// Client wraps an http.Client with a token-bucket so batches stay inside
// the provider's rate limit.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	retryCfg retry.Config

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	nextID atomic.Uint64
}

// Opts is the set of options for a new Client.
type Opts struct {
	Endpoint string
	Timeout  time.Duration
	RPS      int
	Burst    int
}

// New creates a Client with default rate limits.
func New(endpoint string, logger *zap.Logger) *Client {
	return NewWithOpts(Opts{Endpoint: endpoint}, logger)
}

// NewWithOpts creates a new Client with the given options.
func NewWithOpts(o Opts, logger *zap.Logger) *Client {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}

	c := &Client{
		endpoint:    o.Endpoint,
		client:      &http.Client{Timeout: o.Timeout},
		logger:      logger,
		retryCfg:    retry.DefaultConfig(),
		maxTokens:   int64(o.Burst),
		refillEvery: time.Second / time.Duration(o.RPS),
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// refill refills the token-bucket with new tokens if necessary.
func (c *Client) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

// acquire acquires a token from the token-bucket, blocking if necessary.
// The decrement is a CAS so concurrent callers cannot overdraw the bucket.
func (c *Client) acquire() {
	for {
		c.refill()
		t := atomic.LoadInt64(&c.tokens)
		if t <= 0 {
			time.Sleep(c.refillEvery / 2)
			continue
		}
		if atomic.CompareAndSwapInt64(&c.tokens, t, t-1) {
			return
		}
	}
}

// Call is one read-only contract call.
type Call struct {
	To   string
	Data string
}

// Result holds the outcome of one call in a batch: the raw hex return
// value, or the error that call produced.
type Result struct {
	Raw string
	Err error
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// BatchCall issues one eth_call per entry in a single JSON-RPC batch
// request. The returned slice is positionally aligned with calls; per-item
// errors land in Result.Err. The error return covers transport-level
// failure of the whole batch only, and is retried with backoff first.
func (c *Client) BatchCall(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	baseID := c.nextID.Add(uint64(len(calls))) - uint64(len(calls))
	reqs := make([]rpcRequest, len(calls))
	for i, call := range calls {
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			ID:      baseID + uint64(i),
			Method:  "eth_call",
			Params:  []any{map[string]string{"to": call.To, "data": call.Data}, "latest"},
		}
	}

	payload, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	var responses []rpcResponse
	err = retry.WithBackoff(ctx, c.retryCfg, c.logger, "rpc batch call", func() error {
		c.acquire()

		req, rErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if rErr != nil {
			return rErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, dErr := c.client.Do(req)
		if dErr != nil {
			return dErr
		}
		if resp.StatusCode != http.StatusOK {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
		}
		responses = nil
		if jErr := json.NewDecoder(resp.Body).Decode(&responses); jErr != nil {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("decode batch response: %w", jErr)
		}
		return utils.DrainAndClose(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	// Responses may arrive in any order; match by id.
	byID := make(map[uint64]rpcResponse, len(responses))
	for _, r := range responses {
		byID[r.ID] = r
	}

	results := make([]Result, len(calls))
	for i := range calls {
		r, ok := byID[baseID+uint64(i)]
		switch {
		case !ok:
			results[i] = Result{Err: fmt.Errorf("missing response for call %d", i)}
		case r.Error != nil:
			results[i] = Result{Err: fmt.Errorf("rpc error %d: %s", r.Error.Code, r.Error.Message)}
		default:
			var raw string
			if uErr := json.Unmarshal(r.Result, &raw); uErr != nil {
				results[i] = Result{Err: fmt.Errorf("decode result for call %d: %w", i, uErr)}
				continue
			}
			results[i] = Result{Raw: raw}
		}
	}
	return results, nil
}

// CallOne is a convenience wrapper for a single eth_call.
func (c *Client) CallOne(ctx context.Context, to, data string) (string, error) {
	results, err := c.BatchCall(ctx, []Call{{To: to, Data: data}})
	if err != nil {
		return "", err
	}
	if results[0].Err != nil {
		return "", results[0].Err
	}
	return results[0].Raw, nil
}
