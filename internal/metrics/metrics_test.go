package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector() *Collector {
	// Fresh registry per test to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	return NewCollector()
}

func TestNewCollector(t *testing.T) {
	c := newTestCollector()
	require.NotNil(t, c)

	assert.NotNil(t, c.queriesTotal)
	assert.NotNil(t, c.queriesFailed)
	assert.NotNil(t, c.cacheHits)
	assert.NotNil(t, c.cacheMisses)
	assert.NotNil(t, c.batchesDispatched)
	assert.NotNil(t, c.slowQueries)
	assert.NotNil(t, c.batchSize)
	assert.NotNil(t, c.queryLatency)
	assert.NotNil(t, c.tasksInFlight)
	assert.NotNil(t, c.tasksQueued)
	assert.NotNil(t, c.cacheEntries)
}

func TestRecordQuery(t *testing.T) {
	c := newTestCollector()

	c.RecordQuery(0.05)
	c.RecordQuery(0.10)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.queriesTotal))
}

func TestRecordCacheCounters(t *testing.T) {
	c := newTestCollector()

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses))
}

func TestRecordBatchAndFailures(t *testing.T) {
	c := newTestCollector()

	c.RecordBatch(3)
	c.RecordFailure()
	c.RecordSlowQuery()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchesDispatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queriesFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.slowQueries))
}

func TestGauges(t *testing.T) {
	c := newTestCollector()

	c.UpdateLimiterStats(4, 7)
	c.UpdateCacheSize(12)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.tasksInFlight))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.tasksQueued))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.cacheEntries))
}
