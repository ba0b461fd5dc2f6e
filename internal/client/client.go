// Package client is the data-access layer the dashboard calls.
//
// Reads go cache first, then through the batch coalescer and the concurrency
// limiter to the injected store executor. Successful results populate the TTL
// cache; mutations elsewhere invalidate by category through the bus. The
// whole path is timed by the performance monitor.
package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fleetsync/internal/cache"
	"fleetsync/internal/coalescer"
	"fleetsync/internal/config"
	"fleetsync/internal/limiter"
	"fleetsync/internal/metrics"
	"fleetsync/internal/perf"
	"fleetsync/internal/query"
	"fleetsync/internal/store"
)

// Batch keys grouping concurrent calls served by one store call
const (
	batchKeyPilots  = "pilot-batch"
	batchKeyChecks  = "check-batch"
	batchKeyRecords = "compliance-batch"
)

// Store is the executor contract against the remote compliance store. Every
// batch fetch must return one result per input element, in input order, or
// fail for the whole batch.
type Store interface {
	FetchPilots(ctx context.Context, ids []string) ([]store.Pilot, error)
	FetchPilotChecks(ctx context.Context, pilotIDs []string) ([][]store.CertificationCheck, error)
	FetchComplianceRecords(ctx context.Context, pilotIDs []string) ([][]store.ComplianceRecord, error)
	FetchComplianceSummary(ctx context.Context) (store.ComplianceSummary, error)
}

// Stats is the snapshot consumed by the monitoring widget
type Stats struct {
	TotalQueries    int     `json:"totalQueries"`
	ActiveQueries   int     `json:"activeQueries"`
	LoadingQueries  int     `json:"loadingQueries"`
	ErrorQueries    int     `json:"errorQueries"`
	MemoryCacheSize int     `json:"memoryCacheSize"`
	CacheHitRatio   float64 `json:"cacheHitRatio"`
}

// Client ties the optimization layer together in front of a Store
type Client struct {
	cfg     *config.Config
	store   Store
	cache   *cache.Cache
	bus     *cache.Bus
	queries *query.Registry
	limiter *limiter.Limiter
	perf    *perf.Monitor
	metrics *metrics.Collector // nil when metrics are disabled

	pilots  *coalescer.Coalescer[string, store.Pilot]
	checks  *coalescer.Coalescer[string, []store.CertificationCheck]
	records *coalescer.Coalescer[string, []store.ComplianceRecord]

	logger zerolog.Logger
}

// New creates a Client. clock may be nil for the system clock; collector may
// be nil when Prometheus export is disabled.
func New(cfg *config.Config, st Store, clock coalescer.Clock, collector *metrics.Collector, logger zerolog.Logger) (*Client, error) {
	registry, err := query.NewRegistry(cfg.QueryRegistrySize, logger)
	if err != nil {
		return nil, err
	}

	resultCache := cache.New(logger)
	lim := limiter.New(cfg.MaxConcurrent, logger)
	window := cfg.GetBatchWindowDuration()

	c := &Client{
		cfg:     cfg,
		store:   st,
		cache:   resultCache,
		bus:     cache.NewBus(resultCache, registry, logger),
		queries: registry,
		limiter: lim,
		perf:    perf.NewMonitor(cfg.SampleWindow, cfg.GetSlowQueryThresholdDuration(), logger),
		metrics: collector,
		pilots:  coalescer.New[string, store.Pilot](window, clock, lim, logger),
		checks:  coalescer.New[string, []store.CertificationCheck](window, clock, lim, logger),
		records: coalescer.New[string, []store.ComplianceRecord](window, clock, lim, logger),
		logger:  logger.With().Str("component", "client").Logger(),
	}
	return c, nil
}

// Pilot returns one pilot profile, coalescing concurrent lookups into a
// single store call
func (c *Client) Pilot(ctx context.Context, id string) (store.Pilot, error) {
	key := cache.ScopedKey("pilots", id)
	return fetchCached(c, ctx, key, "pilot", c.cfg.TTL.GetMediumDuration(), func() (store.Pilot, error) {
		return c.pilots.Enqueue(ctx, batchKeyPilots, id, c.fetchPilotBatch)
	})
}

// PilotChecks returns one pilot's certification checks
func (c *Client) PilotChecks(ctx context.Context, pilotID string) ([]store.CertificationCheck, error) {
	key := cache.ScopedKey("certification-checks", pilotID)
	return fetchCached(c, ctx, key, "pilot-checks", c.cfg.TTL.GetShortDuration(), func() ([]store.CertificationCheck, error) {
		return c.checks.Enqueue(ctx, batchKeyChecks, pilotID, c.fetchCheckBatch)
	})
}

// ComplianceRecords returns one pilot's compliance rollups
func (c *Client) ComplianceRecords(ctx context.Context, pilotID string) ([]store.ComplianceRecord, error) {
	key := cache.ScopedKey("pilot-compliance", pilotID)
	return fetchCached(c, ctx, key, "compliance-records", c.cfg.TTL.GetShortDuration(), func() ([]store.ComplianceRecord, error) {
		return c.records.Enqueue(ctx, batchKeyRecords, pilotID, c.fetchRecordBatch)
	})
}

// ComplianceSummary returns the fleet-wide rollup. The summary is a single
// document so it skips coalescing and goes straight through the limiter.
func (c *Client) ComplianceSummary(ctx context.Context) (store.ComplianceSummary, error) {
	return fetchCached(c, ctx, "fleet-compliance-summary", "compliance-summary", c.cfg.TTL.GetShortDuration(), func() (store.ComplianceSummary, error) {
		return limiter.Run(ctx, c.limiter, func() (store.ComplianceSummary, error) {
			return c.store.FetchComplianceSummary(ctx)
		})
	})
}

// InvalidateCategory signals that a category of store data changed, e.g.
// after a write completes
func (c *Client) InvalidateCategory(category string, id ...string) {
	c.bus.InvalidateCategory(category, id...)
}

// Stats returns the monitoring snapshot. Read-only, no side effects.
func (c *Client) Stats() Stats {
	counts := c.queries.Snapshot()
	return Stats{
		TotalQueries:    counts.Total,
		ActiveQueries:   counts.Active,
		LoadingQueries:  counts.Loading,
		ErrorQueries:    counts.Errors,
		MemoryCacheSize: c.cache.Size(),
		CacheHitRatio:   c.cache.HitRatio(),
	}
}

// PerfStats returns the rolling performance statistics per traced operation
func (c *Client) PerfStats() map[string]perf.Stats {
	return c.perf.All()
}

// Close flushes pending batches and shuts the coalescers down
func (c *Client) Close() {
	c.pilots.Close()
	c.checks.Close()
	c.records.Close()
	c.logger.Info().Msg("client closed")
}

func (c *Client) fetchPilotBatch(ctx context.Context, ids []string) ([]store.Pilot, error) {
	c.recordBatch(len(ids))
	return c.store.FetchPilots(ctx, ids)
}

func (c *Client) fetchCheckBatch(ctx context.Context, pilotIDs []string) ([][]store.CertificationCheck, error) {
	c.recordBatch(len(pilotIDs))
	return c.store.FetchPilotChecks(ctx, pilotIDs)
}

func (c *Client) fetchRecordBatch(ctx context.Context, pilotIDs []string) ([][]store.ComplianceRecord, error) {
	c.recordBatch(len(pilotIDs))
	return c.store.FetchComplianceRecords(ctx, pilotIDs)
}

// fetchCached runs one read through the full path: cache lookup, then the
// supplied fetch (coalescer and limiter behind it), populating the cache on
// success. The whole path is timed under timerName.
func fetchCached[T any](c *Client, ctx context.Context, key, timerName string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	stop := c.perf.StartTimer(timerName)
	defer stop()
	start := time.Now()

	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			c.queries.MarkSuccess(key)
			c.observe(start, true, nil)
			return typed, nil
		}
		// Type drift means the entry is unusable; drop it and refetch.
		c.cache.Invalidate(key)
	}

	c.queries.MarkLoading(key)
	v, err := fetch()
	if err != nil {
		c.queries.MarkError(key)
		c.observe(start, false, err)
		var zero T
		return zero, err
	}

	c.cache.Set(key, v, ttl)
	c.queries.MarkSuccess(key)
	c.observe(start, false, nil)
	return v, nil
}

func (c *Client) observe(start time.Time, hit bool, err error) {
	if c.metrics == nil {
		return
	}

	elapsed := time.Since(start)
	c.metrics.RecordQuery(elapsed.Seconds())
	if err != nil {
		c.metrics.RecordFailure()
	}
	if hit {
		c.metrics.RecordCacheHit()
	} else {
		c.metrics.RecordCacheMiss()
	}
	if elapsed > c.cfg.GetSlowQueryThresholdDuration() {
		c.metrics.RecordSlowQuery()
	}

	c.metrics.UpdateLimiterStats(c.limiter.Active(), c.limiter.Queued())
	c.metrics.UpdateCacheSize(c.cache.Size())
}

func (c *Client) recordBatch(size int) {
	if c.metrics != nil {
		c.metrics.RecordBatch(size)
	}
}
