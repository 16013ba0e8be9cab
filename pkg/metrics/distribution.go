package metrics

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/chainrpc"
	"github.com/d10r/sup-metrics-api/pkg/subgraph"
	"github.com/d10r/sup-metrics-api/pkg/utils"
)

// DistributionConfig parameterizes the supply breakdown computation.
// Token, program manager, community charge and vesting treasury live on the
// token's host chain; the L1 token, DAO treasury and foundation on mainnet.
type DistributionConfig struct {
	Token           string
	L1Token         string
	ProgramManager  string
	CommunityCharge string
	VestingTreasury string
	DAOTreasury     string
	Foundation      string

	BalanceBatchSize int
}

// DistributionAggregator computes the per-category supply totals from
// independent sources: locker balances, fixed-contract reads on two chains
// and the vesting stream adjustment towards the DAO treasury.
type DistributionAggregator struct {
	logger   *zap.Logger
	programs *subgraph.Client
	host     *chainrpc.Client
	l1       *chainrpc.Client
	cfg      DistributionConfig

	now func() time.Time
}

func NewDistributionAggregator(
	logger *zap.Logger,
	programs *subgraph.Client,
	host, l1 *chainrpc.Client,
	cfg DistributionConfig,
) *DistributionAggregator {
	if cfg.BalanceBatchSize <= 0 {
		cfg.BalanceBatchSize = 50
	}
	return &DistributionAggregator{
		logger:   logger,
		programs: programs,
		host:     host,
		l1:       l1,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Compute builds a fresh DistributionMetrics. Total supply is load bearing
// (other is derived from it) so its failure aborts the cycle; individual
// category and per-locker reads contribute zero on failure.
func (a *DistributionAggregator) Compute(ctx context.Context) (DistributionMetrics, error) {
	start := time.Now()

	var (
		hostResults, l1Results []chainrpc.Result
		hostErr, l1Err         error
		lockersWei             *big.Int
	)

	// The two chains and the locker crawl are independent; fan out.
	pool := pond.NewPool(3)
	group := pool.NewGroupContext(ctx)

	group.Submit(func() {
		hostResults, hostErr = a.host.BatchCall(ctx, []chainrpc.Call{
			{To: a.cfg.Token, Data: chainrpc.TotalSupplyData()},
			{To: a.cfg.Token, Data: chainrpc.BalanceOfData(a.cfg.CommunityCharge)},
			{To: a.cfg.Token, Data: chainrpc.BalanceOfData(a.cfg.VestingTreasury)},
		})
	})
	group.Submit(func() {
		l1Results, l1Err = a.l1.BatchCall(ctx, []chainrpc.Call{
			{To: a.cfg.L1Token, Data: chainrpc.BalanceOfData(a.cfg.DAOTreasury)},
			{To: a.cfg.L1Token, Data: chainrpc.BalanceOfData(a.cfg.Foundation)},
		})
	})
	group.Submit(func() {
		lockersWei = a.sumLockerBalances(ctx)
	})

	waitErr := group.Wait()
	pool.StopAndWait()

	// A cancelled context skips submitted tasks, leaving the result slices
	// empty; the cycle is aborted, never folded.
	if waitErr != nil {
		return DistributionMetrics{}, fmt.Errorf("distribution cycle aborted: %w", waitErr)
	}
	if hostErr != nil {
		return DistributionMetrics{}, fmt.Errorf("host chain reads: %w", hostErr)
	}
	if l1Err != nil {
		return DistributionMetrics{}, fmt.Errorf("mainnet reads: %w", l1Err)
	}

	totalSupplyWei, err := resultUint(hostResults[0])
	if err != nil {
		return DistributionMetrics{}, fmt.Errorf("totalSupply: %w", err)
	}

	communityWei := a.uintOrZero(hostResults[1], "communityCharge")
	investorsWei := a.uintOrZero(hostResults[2], "vestingTreasury")
	daoWei := a.uintOrZero(l1Results[0], "daoTreasury")
	foundationWei := a.uintOrZero(l1Results[1], "foundation")

	// Value already committed to the treasury by active vesting streams but
	// not yet transferred.
	daoWei.Add(daoWei, a.treasuryStreamRemainder(ctx))

	m := DistributionMetrics{
		TotalSupply:     chainrpc.ToTokens(totalSupplyWei),
		Lockers:         chainrpc.ToTokens(lockersWei),
		CommunityCharge: chainrpc.ToTokens(communityWei),
		InvestorsTeam:   chainrpc.ToTokens(investorsWei),
		DAOTreasury:     chainrpc.ToTokens(daoWei),
		Foundation:      chainrpc.ToTokens(foundationWei),
	}
	accounted := m.Lockers + m.CommunityCharge + m.InvestorsTeam + m.DAOTreasury + m.Foundation
	// Not clamped: a negative remainder tells operators accounting overlaps.
	m.Other = m.TotalSupply - accounted

	a.logger.Info("Computed distribution metrics",
		zap.Float64("totalSupply", m.TotalSupply),
		zap.Float64("other", m.Other),
		zap.Duration("elapsed", time.Since(start)))

	return m, nil
}

// sumLockerBalances discovers all known lockers via the program subgraph
// and sums their token balances in fixed-size batches. A failed read
// contributes zero rather than aborting the batch.
func (a *DistributionAggregator) sumLockerBalances(ctx context.Context) *big.Int {
	lockerSet := map[string]bool{}
	for _, p := range a.programs.Pools(ctx, a.cfg.ProgramManager) {
		for _, m := range a.programs.PoolMembers(ctx, p.ID) {
			if l := utils.NormalizeAddress(m.Account.ID); l != "" {
				lockerSet[l] = true
			}
		}
	}
	lockers := make([]string, 0, len(lockerSet))
	for l := range lockerSet {
		lockers = append(lockers, l)
	}

	var (
		mu     sync.Mutex
		sum    = new(big.Int)
		failed int
	)

	pool := pond.NewPool(4)
	group := pool.NewGroupContext(ctx)
	for start := 0; start < len(lockers); start += a.cfg.BalanceBatchSize {
		end := start + a.cfg.BalanceBatchSize
		if end > len(lockers) {
			end = len(lockers)
		}
		batch := lockers[start:end]

		group.Submit(func() {
			calls := make([]chainrpc.Call, len(batch))
			for i, locker := range batch {
				calls[i] = chainrpc.Call{To: a.cfg.Token, Data: chainrpc.BalanceOfData(locker)}
			}
			results, err := a.host.BatchCall(ctx, calls)
			if err != nil {
				mu.Lock()
				failed += len(batch)
				mu.Unlock()
				a.logger.Warn("Locker balance batch failed, counting as zero",
					zap.Int("batchSize", len(batch)),
					zap.Error(err))
				return
			}
			batchSum := new(big.Int)
			batchFailed := 0
			for _, r := range results {
				wei, rErr := resultUint(r)
				if rErr != nil {
					batchFailed++
					continue
				}
				batchSum.Add(batchSum, wei)
			}
			mu.Lock()
			sum.Add(sum, batchSum)
			failed += batchFailed
			mu.Unlock()
		})
	}
	if err := group.Wait(); err != nil {
		a.logger.Warn("Locker balance crawl interrupted", zap.Error(err))
	}
	pool.StopAndWait()

	if failed > 0 {
		a.logger.Warn("Some locker balance reads failed",
			zap.Int("failed", failed),
			zap.Int("lockers", len(lockers)))
	}
	return sum
}

// treasuryStreamRemainder sums flowRate * remaining seconds over active
// vesting schedules targeting the DAO treasury, in wei.
func (a *DistributionAggregator) treasuryStreamRemainder(ctx context.Context) *big.Int {
	nowUnix := a.now().Unix()
	remainder := new(big.Int)

	for _, vs := range a.programs.VestingSchedules(ctx) {
		if utils.NormalizeAddress(vs.Receiver) != a.cfg.DAOTreasury {
			continue
		}
		if !vs.Active(nowUnix) {
			continue
		}
		flowRate, ok := new(big.Int).SetString(vs.FlowRate, 10)
		if !ok {
			a.logger.Warn("Unparseable flow rate on vesting schedule",
				zap.String("schedule", vs.ID),
				zap.String("flowRate", vs.FlowRate))
			continue
		}
		seconds := vs.EndDateUnix() - nowUnix
		if seconds <= 0 {
			continue
		}
		remainder.Add(remainder, new(big.Int).Mul(flowRate, big.NewInt(seconds)))
	}
	return remainder
}

func resultUint(r chainrpc.Result) (*big.Int, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return chainrpc.ParseUint(r.Raw)
}

func (a *DistributionAggregator) uintOrZero(r chainrpc.Result, what string) *big.Int {
	wei, err := resultUint(r)
	if err != nil {
		a.logger.Warn("Category read failed, counting as zero",
			zap.String("category", what),
			zap.Error(err))
		return new(big.Int)
	}
	return wei
}
