// Package cache wraps a metric computation with a persisted, versioned
// snapshot and a non-overlapping periodic refresh scheduler. Readers always
// see the last committed snapshot, never partial state.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/pkg/store"
)

// Snapshot is one committed result of a metric computation. Immutable once
// written; the Manager owns its lifecycle.
type Snapshot[T any] struct {
	SchemaVersion int   `json:"schemaVersion"`
	LastUpdatedAt int64 `json:"lastUpdatedAt"`
	Data          T     `json:"data"`
}

// ComputeFunc produces a fresh value for the metric. It is the only thing
// a Manager knows about its upstream.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

// Manager owns one metric's snapshot: loads it from durable storage at
// startup, refreshes it on a fixed cadence with at most one refresh in
// flight, and persists every committed replacement.
type Manager[T any] struct {
	name          string
	schemaVersion int
	interval      time.Duration
	compute       ComputeFunc[T]
	store         store.Store
	logger        *zap.Logger

	inFlight atomic.Bool

	mu      sync.RWMutex
	current Snapshot[T]

	cron *cron.Cron
	// wg tracks the initial refresh goroutine, which runs outside the cron.
	wg sync.WaitGroup

	now func() time.Time
}

// NewManager creates a Manager serving initial until the first committed
// refresh. A non-positive interval disables scheduling; Refresh can still
// be called explicitly.
func NewManager[T any](name string, schemaVersion int, initial T, compute ComputeFunc[T], st store.Store, interval time.Duration, logger *zap.Logger) *Manager[T] {
	return &Manager[T]{
		name:          name,
		schemaVersion: schemaVersion,
		interval:      interval,
		compute:       compute,
		store:         st,
		logger:        logger,
		current:       Snapshot[T]{SchemaVersion: schemaVersion, Data: initial},
		now:           time.Now,
	}
}

// Load restores a persisted snapshot. A missing blob, an unreadable blob or
// a schema version mismatch all mean cold start: the initial value stays in
// place and nothing is adopted partially.
func (m *Manager[T]) Load(ctx context.Context) {
	data, err := m.store.Read(ctx, m.name)
	if err != nil {
		m.logger.Warn("Failed to read persisted snapshot, starting cold",
			zap.String("cache", m.name),
			zap.Error(err))
		return
	}
	if data == nil {
		m.logger.Info("No persisted snapshot, starting cold", zap.String("cache", m.name))
		return
	}

	var snap Snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("Persisted snapshot unreadable, starting cold",
			zap.String("cache", m.name),
			zap.Error(err))
		return
	}
	if snap.SchemaVersion != m.schemaVersion {
		m.logger.Info("Persisted snapshot has different schema version, starting cold",
			zap.String("cache", m.name),
			zap.Int("found", snap.SchemaVersion),
			zap.Int("expected", m.schemaVersion))
		return
	}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	m.logger.Info("Loaded persisted snapshot",
		zap.String("cache", m.name),
		zap.Int64("lastUpdatedAt", snap.LastUpdatedAt))
}

// Current returns the last committed value and its timestamp. It never
// blocks on a refresh and never triggers one.
func (m *Manager[T]) Current() (T, int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Data, m.current.LastUpdatedAt
}

// Refresh computes a fresh value and commits it. While one refresh is in
// flight a concurrent call is a logged no-op, so timer ticks and explicit
// triggers never stack upstream load. Compute failure leaves the previous
// snapshot in place; Refresh never propagates errors to its caller.
func (m *Manager[T]) Refresh(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.Info("Refresh already in flight, skipping", zap.String("cache", m.name))
		return
	}
	defer m.inFlight.Store(false)

	start := m.now()
	m.logger.Info("Refreshing metric", zap.String("cache", m.name))

	data, err := m.compute(ctx)
	if err != nil {
		m.logger.Error("Metric refresh failed, keeping previous snapshot",
			zap.String("cache", m.name),
			zap.Duration("elapsed", m.now().Sub(start)),
			zap.Error(err))
		return
	}

	snap := Snapshot[T]{
		SchemaVersion: m.schemaVersion,
		LastUpdatedAt: m.now().Unix(),
		Data:          data,
	}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	m.persist(ctx, snap)

	m.logger.Info("Committed metric snapshot",
		zap.String("cache", m.name),
		zap.Duration("elapsed", m.now().Sub(start)))
}

func (m *Manager[T]) persist(ctx context.Context, snap Snapshot[T]) {
	blob, err := json.Marshal(snap)
	if err != nil {
		m.logger.Error("Failed to marshal snapshot", zap.String("cache", m.name), zap.Error(err))
		return
	}
	if err := m.store.Write(ctx, m.name, blob); err != nil {
		// The in-memory snapshot is already committed; persistence failure
		// only costs warm restarts.
		m.logger.Error("Failed to persist snapshot", zap.String("cache", m.name), zap.Error(err))
	}
}

// Start begins periodic refreshing. If the loaded snapshot is fresher than
// the interval the immediate refresh is skipped and the timer alone drives
// updates; otherwise a refresh is kicked off right away.
func (m *Manager[T]) Start(ctx context.Context) {
	if m.interval <= 0 {
		m.logger.Info("Refresh scheduling disabled", zap.String("cache", m.name))
		return
	}

	_, last := m.Current()
	age := m.now().Unix() - last
	if last > 0 && age < int64(m.interval.Seconds()) {
		m.logger.Info("Cached snapshot still fresh, skipping initial refresh",
			zap.String("cache", m.name),
			zap.Int64("ageSeconds", age))
	} else {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.Refresh(ctx)
		}()
	}

	m.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), func() {
		m.Refresh(ctx)
	})
	if err != nil {
		m.logger.Error("Failed to schedule refresh", zap.String("cache", m.name), zap.Error(err))
		return
	}
	m.cron.Start()
	m.logger.Info("Scheduled periodic refresh",
		zap.String("cache", m.name),
		zap.Duration("interval", m.interval))
}

// Stop halts the scheduler, waiting for a running tick and for the initial
// refresh to finish.
func (m *Manager[T]) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	m.wg.Wait()
}
