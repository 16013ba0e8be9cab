package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/cache"
	"github.com/d10r/sup-metrics-api/pkg/config"
	"github.com/d10r/sup-metrics-api/pkg/metrics"
)

type App struct {
	Config *config.Config

	// Per-metric snapshot caches. They refresh independently; each
	// endpoint's lastUpdatedAt is its own consistency boundary.
	Scores       *cache.Manager[metrics.UnifiedScores]
	Distribution *cache.Manager[metrics.DistributionMetrics]

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the API.
	Server *http.Server
}

// Start runs the schedulers and the HTTP server until the context ends.
func (a *App) Start(ctx context.Context) {
	a.Scores.Start(ctx)
	a.Distribution.Start(ctx)

	go func() { _ = a.Server.ListenAndServe() }()
	a.Logger.Info("Serving metrics API", zap.String("addr", a.Server.Addr))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	a.Scores.Stop()
	a.Distribution.Stop()

	a.Logger.Info("Shutdown complete")
}
