package metrics

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/chainrpc"
	"github.com/d10r/sup-metrics-api/pkg/scoring"
	"github.com/d10r/sup-metrics-api/pkg/subgraph"
	"github.com/d10r/sup-metrics-api/pkg/utils"
)

// ScoresConfig parameterizes the unified scores computation.
type ScoresConfig struct {
	ProgramManager         string
	SpaceID                string
	ScoreChunkSize         int
	OwnerLookupParallelism int
	// Optional newline-separated file with extra holder addresses.
	HoldersFile string
}

// ScoresAggregator orchestrates pool discovery, locker-owner resolution,
// delegation edge discovery, chunked voting-power scoring and delegated
// power aggregation into one UnifiedScores model.
type ScoresAggregator struct {
	logger      *zap.Logger
	programs    *subgraph.Client
	delegations *subgraph.Client
	scoring     *scoring.Client
	space       *scoring.SpaceCache
	chain       *chainrpc.Client
	cfg         ScoresConfig
}

func NewScoresAggregator(
	logger *zap.Logger,
	programs, delegations *subgraph.Client,
	scoringClient *scoring.Client,
	space *scoring.SpaceCache,
	chain *chainrpc.Client,
	cfg ScoresConfig,
) *ScoresAggregator {
	if cfg.OwnerLookupParallelism <= 0 {
		cfg.OwnerLookupParallelism = 16
	}
	return &ScoresAggregator{
		logger:      logger,
		programs:    programs,
		delegations: delegations,
		scoring:     scoringClient,
		space:       space,
		chain:       chain,
		cfg:         cfg,
	}
}

// Compute builds a fresh UnifiedScores model. Individual locker failures
// and partial subgraph pages degrade accuracy but never abort; only the
// scoring engine and an unavailable space config are fatal to the cycle.
func (a *ScoresAggregator) Compute(ctx context.Context) (UnifiedScores, error) {
	start := time.Now()

	// Stage 1: pool discovery.
	pools := a.programs.Pools(ctx, a.cfg.ProgramManager)

	// Stage 2: membership and locker-owner resolution.
	lockerOwners := a.resolveLockerOwners(ctx, pools)

	accounts := map[string]bool{}
	ownerLocker := make(map[string]string, len(lockerOwners))
	for locker, owner := range lockerOwners {
		accounts[owner] = true
		ownerLocker[owner] = locker
	}

	for _, vs := range a.programs.VestingSchedules(ctx) {
		if r := utils.NormalizeAddress(vs.Receiver); r != "" {
			accounts[r] = true
		}
	}

	for _, h := range a.loadExtraHolders() {
		accounts[h] = true
	}

	// Stage 3: delegation edge discovery.
	edges := a.delegations.Delegations(ctx, a.cfg.SpaceID)
	currentDelegate := dedupEdges(edges)
	for delegator, delegate := range currentDelegate {
		accounts[delegator] = true
		accounts[delegate] = true
	}

	// Stage 4: own voting power, scored without delegation strategies so
	// delegated inflow is never double counted.
	spaceCfg, err := a.space.Get(ctx)
	if err != nil {
		return UnifiedScores{}, fmt.Errorf("space config: %w", err)
	}
	strategies := scoring.WithoutDelegation(spaceCfg.Strategies)

	addresses := make([]string, 0, len(accounts))
	for addr := range accounts {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	scores, err := a.scoring.GetScoresChunked(ctx, a.cfg.SpaceID, spaceCfg.Network, strategies, addresses, a.cfg.ScoreChunkSize)
	if err != nil {
		return UnifiedScores{}, fmt.Errorf("score accounts: %w", err)
	}

	// Stage 5: delegated power aggregation and final merge.
	result := NewUnifiedScores()
	member := func(addr string) *MemberData {
		if m, ok := result.Members[addr]; ok {
			return m
		}
		m := &MemberData{}
		result.Members[addr] = m
		return m
	}

	for _, addr := range addresses {
		m := member(addr)
		m.OwnVP = scores[addr]
		if locker, ok := ownerLocker[addr]; ok {
			m.Locker = locker
		}
	}

	for delegator, delegate := range currentDelegate {
		member(delegator).Delegate = delegate
		if vp := member(delegator).OwnVP; vp > 0 {
			target := member(delegate)
			target.DelegatedVP += vp
			target.NrDelegators++
		}
	}

	result.Ranking = rankMembers(result.Members)

	a.logger.Info("Computed unified scores",
		zap.Int("pools", len(pools)),
		zap.Int("lockers", len(lockerOwners)),
		zap.Int("edges", len(edges)),
		zap.Int("members", len(result.Members)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// resolveLockerOwners pages through each pool's members and resolves every
// locker's owning account via a best-effort contract read. Failed lookups
// are counted and dropped; they abort neither the pool nor the cycle.
func (a *ScoresAggregator) resolveLockerOwners(ctx context.Context, pools []subgraph.Pool) map[string]string {
	lockerSet := map[string]bool{}
	for _, p := range pools {
		for _, m := range a.programs.PoolMembers(ctx, p.ID) {
			if l := utils.NormalizeAddress(m.Account.ID); l != "" {
				lockerSet[l] = true
			}
		}
	}

	owners := xsync.NewMapOf[string, string]()
	var failed atomic.Int64

	pool := pond.NewPool(a.cfg.OwnerLookupParallelism)
	group := pool.NewGroupContext(ctx)
	for locker := range lockerSet {
		locker := locker
		group.Submit(func() {
			owner, err := a.chain.Owner(ctx, locker)
			if err != nil {
				failed.Add(1)
				a.logger.Debug("Locker owner lookup failed, dropping",
					zap.String("locker", locker),
					zap.Error(err))
				return
			}
			owners.Store(locker, owner)
		})
	}
	if err := group.Wait(); err != nil {
		a.logger.Warn("Locker owner crawl interrupted", zap.Error(err))
	}
	pool.StopAndWait()

	if n := failed.Load(); n > 0 {
		a.logger.Warn("Some locker owner lookups failed",
			zap.Int64("failed", n),
			zap.Int("lockers", len(lockerSet)))
	}

	out := make(map[string]string, owners.Size())
	owners.Range(func(locker, owner string) bool {
		out[locker] = owner
		return true
	})
	return out
}

func (a *ScoresAggregator) loadExtraHolders() []string {
	if a.cfg.HoldersFile == "" {
		return nil
	}
	raw, err := os.ReadFile(a.cfg.HoldersFile)
	if err != nil {
		a.logger.Warn("Failed to read holders file, ignoring",
			zap.String("path", a.cfg.HoldersFile),
			zap.Error(err))
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, utils.NormalizeAddress(line))
	}
	return out
}

// dedupEdges keeps one authoritative edge per delegator: the edge with the
// greatest timestamp; on equal timestamps the later edge in source order
// wins. Historical superseded edges never contribute to aggregation.
func dedupEdges(edges []subgraph.Delegation) map[string]string {
	type pick struct {
		delegate string
		ts       int64
	}
	best := map[string]pick{}
	for _, e := range edges {
		delegator := utils.NormalizeAddress(e.Delegator)
		delegate := utils.NormalizeAddress(e.Delegate)
		if delegator == "" || delegate == "" {
			continue
		}
		if prev, ok := best[delegator]; !ok || e.TimestampUnix() >= prev.ts {
			best[delegator] = pick{delegate: delegate, ts: e.TimestampUnix()}
		}
	}
	out := make(map[string]string, len(best))
	for delegator, p := range best {
		out[delegator] = p.delegate
	}
	return out
}

// rankMembers orders addresses by total effective power, descending.
// Ties break on address so the ranking is deterministic.
func rankMembers(members map[string]*MemberData) []string {
	ranking := make([]string, 0, len(members))
	for addr := range members {
		ranking = append(ranking, addr)
	}
	sort.Slice(ranking, func(i, j int) bool {
		ti, tj := members[ranking[i]].TotalVP(), members[ranking[j]].TotalVP()
		if ti != tj {
			return ti > tj
		}
		return ranking[i] < ranking[j]
	})
	return ranking
}
