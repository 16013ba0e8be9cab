package metrics

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/d10r/sup-metrics-api/pkg/chainrpc"
	"github.com/d10r/sup-metrics-api/pkg/subgraph"
)

const (
	hostToken       = "0x7777777777777777777777777777777777777777"
	l1Token         = "0x8888888888888888888888888888888888888888"
	communityCharge = "0x3333333333333333333333333333333333333333"
	vestingTreasury = "0x4444444444444444444444444444444444444444"
	daoTreasury     = "0x5555555555555555555555555555555555555555"
	foundation      = "0x6666666666666666666666666666666666666666"
)

// weiHex encodes a whole-token amount as a hex uint256 return word.
func weiHex(tokens int64) string {
	wei := new(big.Int).Mul(big.NewInt(tokens), big.NewInt(1e18))
	return "0x" + wei.Text(16)
}

func TestDistributionComputeBreaksDownSupply(t *testing.T) {
	nowUnix := int64(1_000_000)

	programs := graphServer(t, func(query string, vars map[string]any) map[string]any {
		switch {
		case strings.Contains(query, "pools("):
			return map[string]any{"pools": []map[string]any{{"id": "0xp001"}}}
		case strings.Contains(query, "poolMembers("):
			return map[string]any{"poolMembers": []map[string]any{
				{"id": "0xp001-1", "account": map[string]any{"id": lockerOne}},
				{"id": "0xp001-2", "account": map[string]any{"id": lockerTwo}},
			}}
		case strings.Contains(query, "vestingSchedules("):
			return map[string]any{"vestingSchedules": []map[string]any{
				// Active treasury stream with 100s left at 1 token/s.
				{"id": "vs1", "receiver": daoTreasury, "flowRate": "1000000000000000000", "endDate": "1000100"},
				// Deleted stream, skipped.
				{"id": "vs2", "receiver": daoTreasury, "flowRate": "1000000000000000000", "endDate": "2000000", "deletedAt": "999"},
				// Different receiver, skipped.
				{"id": "vs3", "receiver": accountA, "flowRate": "1000000000000000000", "endDate": "2000000"},
			}}
		}
		t.Fatalf("unexpected query: %s", query)
		return nil
	})
	defer programs.Close()

	host := chainServer(t, func(to, data string) (string, error) {
		require.Equal(t, hostToken, to)
		switch data {
		case chainrpc.TotalSupplyData():
			return weiHex(1000), nil
		case chainrpc.BalanceOfData(communityCharge):
			return weiHex(100), nil
		case chainrpc.BalanceOfData(vestingTreasury):
			return weiHex(200), nil
		case chainrpc.BalanceOfData(lockerOne):
			return weiHex(10), nil
		case chainrpc.BalanceOfData(lockerTwo):
			// A failed read contributes zero, it does not abort.
			return "", errors.New("execution reverted")
		}
		return "", errors.New("unexpected call")
	})
	defer host.Close()

	l1 := chainServer(t, func(to, data string) (string, error) {
		require.Equal(t, l1Token, to)
		switch data {
		case chainrpc.BalanceOfData(daoTreasury):
			return weiHex(50), nil
		case chainrpc.BalanceOfData(foundation):
			return weiHex(25), nil
		}
		return "", errors.New("unexpected call")
	})
	defer l1.Close()

	logger := zaptest.NewLogger(t)
	agg := NewDistributionAggregator(
		logger,
		subgraph.NewClient(programs.URL, logger),
		chainrpc.New(host.URL, logger),
		chainrpc.New(l1.URL, logger),
		DistributionConfig{
			Token:           hostToken,
			L1Token:         l1Token,
			ProgramManager:  "0xadmin",
			CommunityCharge: communityCharge,
			VestingTreasury: vestingTreasury,
			DAOTreasury:     daoTreasury,
			Foundation:      foundation,
		},
	)
	agg.now = func() time.Time { return time.Unix(nowUnix, 0) }

	m, err := agg.Compute(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1000, m.TotalSupply, 1e-6)
	assert.InDelta(t, 10, m.Lockers, 1e-6)
	assert.InDelta(t, 100, m.CommunityCharge, 1e-6)
	assert.InDelta(t, 200, m.InvestorsTeam, 1e-6)
	// On-chain balance plus the 100 tokens still streaming in.
	assert.InDelta(t, 150, m.DAOTreasury, 1e-6)
	assert.InDelta(t, 25, m.Foundation, 1e-6)
	assert.InDelta(t, 515, m.Other, 1e-6)

	accounted := m.Lockers + m.CommunityCharge + m.InvestorsTeam + m.DAOTreasury + m.Foundation
	assert.InDelta(t, m.TotalSupply, accounted+m.Other, 1e-6)
}

func TestDistributionComputeAbortsOnCancelledContext(t *testing.T) {
	logger := zaptest.NewLogger(t)
	agg := NewDistributionAggregator(
		logger,
		subgraph.NewClient("http://unused", logger),
		chainrpc.New("http://unused", logger),
		chainrpc.New("http://unused", logger),
		DistributionConfig{
			Token:           hostToken,
			L1Token:         l1Token,
			ProgramManager:  "0xadmin",
			CommunityCharge: communityCharge,
			VestingTreasury: vestingTreasury,
			DAOTreasury:     daoTreasury,
			Foundation:      foundation,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The fan-out's tasks are skipped, so no result slice gets populated;
	// the cycle must abort with an error rather than fold empty results.
	_, err := agg.Compute(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")
}

func TestDistributionComputeAbortsWithoutTotalSupply(t *testing.T) {
	programs := graphServer(t, func(string, map[string]any) map[string]any {
		return map[string]any{
			"pools":            []map[string]any{},
			"poolMembers":      []map[string]any{},
			"vestingSchedules": []map[string]any{},
		}
	})
	defer programs.Close()

	host := chainServer(t, func(_, data string) (string, error) {
		if data == chainrpc.TotalSupplyData() {
			return "", errors.New("execution reverted")
		}
		return weiHex(1), nil
	})
	defer host.Close()

	l1 := chainServer(t, func(string, string) (string, error) {
		return weiHex(1), nil
	})
	defer l1.Close()

	logger := zaptest.NewLogger(t)
	agg := NewDistributionAggregator(
		logger,
		subgraph.NewClient(programs.URL, logger),
		chainrpc.New(host.URL, logger),
		chainrpc.New(l1.URL, logger),
		DistributionConfig{
			Token:           hostToken,
			L1Token:         l1Token,
			ProgramManager:  "0xadmin",
			CommunityCharge: communityCharge,
			VestingTreasury: vestingTreasury,
			DAOTreasury:     daoTreasury,
			Foundation:      foundation,
		},
	)

	_, err := agg.Compute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "totalSupply")
}
