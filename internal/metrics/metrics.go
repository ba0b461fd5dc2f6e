// Package metrics exposes data-access-layer counters to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for the data access layer
type Collector struct {
	queriesTotal      prometheus.Counter
	queriesFailed     prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	batchesDispatched prometheus.Counter
	slowQueries       prometheus.Counter

	batchSize    prometheus.Histogram
	queryLatency prometheus.Histogram

	tasksInFlight prometheus.Gauge
	tasksQueued   prometheus.Gauge
	cacheEntries  prometheus.Gauge
}

// NewCollector creates and registers the collectors
func NewCollector() *Collector {
	c := &Collector{
		queriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsync_queries_total",
			Help: "Total number of dashboard queries served",
		}),
		queriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsync_queries_failed_total",
			Help: "Total number of dashboard queries that failed",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsync_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsync_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		batchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsync_batches_dispatched_total",
			Help: "Total number of coalesced batches sent to the store",
		}),
		slowQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetsync_slow_queries_total",
			Help: "Total number of queries exceeding the slow threshold",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetsync_batch_size",
			Help:    "Number of coalesced callers per dispatched batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetsync_query_latency_seconds",
			Help:    "Dashboard query latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsync_tasks_in_flight",
			Help: "Current number of store calls holding a limiter slot",
		}),
		tasksQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsync_tasks_queued",
			Help: "Current number of store calls waiting for a limiter slot",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetsync_cache_entries",
			Help: "Current number of entries in the TTL cache",
		}),
	}

	prometheus.MustRegister(c.queriesTotal)
	prometheus.MustRegister(c.queriesFailed)
	prometheus.MustRegister(c.cacheHits)
	prometheus.MustRegister(c.cacheMisses)
	prometheus.MustRegister(c.batchesDispatched)
	prometheus.MustRegister(c.slowQueries)
	prometheus.MustRegister(c.batchSize)
	prometheus.MustRegister(c.queryLatency)
	prometheus.MustRegister(c.tasksInFlight)
	prometheus.MustRegister(c.tasksQueued)
	prometheus.MustRegister(c.cacheEntries)

	return c
}

// RecordQuery records one served query and its latency
func (c *Collector) RecordQuery(latencySeconds float64) {
	c.queriesTotal.Inc()
	c.queryLatency.Observe(latencySeconds)
}

// RecordFailure records one failed query
func (c *Collector) RecordFailure() {
	c.queriesFailed.Inc()
}

// RecordCacheHit records one cache hit
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss records one cache miss
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordBatch records one dispatched batch and the callers it coalesced
func (c *Collector) RecordBatch(size int) {
	c.batchesDispatched.Inc()
	c.batchSize.Observe(float64(size))
}

// RecordSlowQuery records one query over the slow threshold
func (c *Collector) RecordSlowQuery() {
	c.slowQueries.Inc()
}

// UpdateLimiterStats updates the limiter gauges
func (c *Collector) UpdateLimiterStats(inFlight, queued int) {
	c.tasksInFlight.Set(float64(inFlight))
	c.tasksQueued.Set(float64(queued))
}

// UpdateCacheSize updates the cache-entry gauge
func (c *Collector) UpdateCacheSize(entries int) {
	c.cacheEntries.Set(float64(entries))
}

// StartServer starts the Prometheus metrics HTTP server
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
