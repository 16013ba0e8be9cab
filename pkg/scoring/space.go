package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/subgraph"
)

// SpaceConfig parameterizes voting-power scoring for one governance space.
type SpaceConfig struct {
	Network       string     `json:"network"`
	Strategies    []Strategy `json:"strategies"`
	LastUpdatedAt int64      `json:"lastUpdatedAt"`
}

const spaceQuery = `
	query Space($id: String!) {
		space(id: $id) {
			network
			strategies {
				name
				network
				params
			}
		}
	}
`

// DefaultSpaceTTL is the freshness window for a cached space config.
const DefaultSpaceTTL = 24 * time.Hour

// SpaceCache fetches and caches the strategy configuration of a space.
// On fetch failure it falls back to the last good value; it only errors
// when there is nothing to fall back to.
type SpaceCache struct {
	hub     *subgraph.Client
	spaceID string
	ttl     time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	last *SpaceConfig

	now func() time.Time
}

func NewSpaceCache(hub *subgraph.Client, spaceID string, logger *zap.Logger) *SpaceCache {
	return &SpaceCache{
		hub:     hub,
		spaceID: spaceID,
		ttl:     DefaultSpaceTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the space config, refetching when the cached value is older
// than the TTL.
func (s *SpaceCache) Get(ctx context.Context) (*SpaceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowUnix := s.now().Unix()
	if s.last != nil && nowUnix-s.last.LastUpdatedAt < int64(s.ttl.Seconds()) {
		return s.last, nil
	}

	cfg, err := s.fetch(ctx)
	if err != nil {
		if s.last != nil {
			s.logger.Warn("Space config fetch failed, using stale value",
				zap.String("space", s.spaceID),
				zap.Int64("age", nowUnix-s.last.LastUpdatedAt),
				zap.Error(err))
			return s.last, nil
		}
		return nil, fmt.Errorf("fetch space config %s: %w", s.spaceID, err)
	}

	cfg.LastUpdatedAt = nowUnix
	s.last = cfg
	s.logger.Info("Refreshed space config",
		zap.String("space", s.spaceID),
		zap.String("network", cfg.Network),
		zap.Int("strategies", len(cfg.Strategies)))
	return s.last, nil
}

func (s *SpaceCache) fetch(ctx context.Context) (*SpaceConfig, error) {
	var env struct {
		Space *SpaceConfig `json:"space"`
	}
	if err := s.hub.Query(ctx, spaceQuery, map[string]any{"id": s.spaceID}, &env); err != nil {
		return nil, err
	}
	if env.Space == nil {
		return nil, fmt.Errorf("space %s not found", s.spaceID)
	}
	return env.Space, nil
}
