// Package app wires configuration, external clients, aggregators, caches
// and the HTTP server into one runnable service.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/app/types"
	"github.com/d10r/sup-metrics-api/pkg/cache"
	"github.com/d10r/sup-metrics-api/pkg/chainrpc"
	"github.com/d10r/sup-metrics-api/pkg/config"
	"github.com/d10r/sup-metrics-api/pkg/logging"
	"github.com/d10r/sup-metrics-api/pkg/metrics"
	"github.com/d10r/sup-metrics-api/pkg/scoring"
	"github.com/d10r/sup-metrics-api/pkg/store"
	"github.com/d10r/sup-metrics-api/pkg/subgraph"
)

// Initialize builds the full application. Persisted snapshots are loaded
// here so callers always have something to serve before the first refresh.
func Initialize(ctx context.Context) (*types.App, error) {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return nil, err
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	programs := subgraph.NewClient(cfg.ProgramSubgraphURL, logger)
	delegations := subgraph.NewClient(cfg.DelegationSubgraphURL, logger)
	hub := subgraph.NewClient(cfg.SpaceHubURL, logger)

	scoringClient := scoring.NewClient(cfg.ScoreAPIURL, logger)
	spaceCache := scoring.NewSpaceCache(hub, cfg.SpaceID, logger)

	hostChain := chainrpc.New(cfg.RPCURL, logger)
	l1Chain := chainrpc.New(cfg.EthRPCURL, logger)

	scoresAgg := metrics.NewScoresAggregator(logger, programs, delegations, scoringClient, spaceCache, hostChain, metrics.ScoresConfig{
		ProgramManager:         cfg.ProgramManagerAddress,
		SpaceID:                cfg.SpaceID,
		ScoreChunkSize:         cfg.ScoreChunkSize,
		OwnerLookupParallelism: cfg.OwnerLookupParallelism,
		HoldersFile:            cfg.HoldersFile,
	})

	distributionAgg := metrics.NewDistributionAggregator(logger, programs, hostChain, l1Chain, metrics.DistributionConfig{
		Token:            cfg.TokenAddress,
		L1Token:          cfg.L1TokenAddress,
		ProgramManager:   cfg.ProgramManagerAddress,
		CommunityCharge:  cfg.CommunityChargeAddress,
		VestingTreasury:  cfg.VestingTreasuryAddress,
		DAOTreasury:      cfg.DAOTreasuryAddress,
		Foundation:       cfg.FoundationAddress,
		BalanceBatchSize: cfg.BalanceBatchSize,
	})

	app := &types.App{
		Config: cfg,
		Logger: logger,
		Scores: cache.NewManager(
			metrics.UnifiedScoresCacheName,
			metrics.UnifiedScoresSchemaVersion,
			metrics.NewUnifiedScores(),
			scoresAgg.Compute,
			st,
			cfg.ScoresRefreshInterval,
			logger,
		),
		Distribution: cache.NewManager(
			metrics.DistributionCacheName,
			metrics.DistributionSchemaVersion,
			metrics.DistributionMetrics{},
			distributionAgg.Compute,
			st,
			cfg.DistributionRefreshInterval,
			logger,
		),
	}

	app.Scores.Load(ctx)
	app.Distribution.Load(ctx)

	if err := NewServer(app); err != nil {
		return nil, err
	}

	return app, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(ctx, logger)
	case "file":
		return store.NewFileStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
