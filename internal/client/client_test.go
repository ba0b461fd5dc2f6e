package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetsync/internal/cache"
	"fleetsync/internal/config"
	"fleetsync/internal/store"
)

type fakeStore struct {
	mu           sync.Mutex
	pilotCalls   [][]string
	checkCalls   [][]string
	recordCalls  [][]string
	summaryCalls int
	failPilots   error
}

func (f *fakeStore) FetchPilots(ctx context.Context, ids []string) ([]store.Pilot, error) {
	f.mu.Lock()
	f.pilotCalls = append(f.pilotCalls, ids)
	fail := f.failPilots
	f.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	pilots := make([]store.Pilot, len(ids))
	for i, id := range ids {
		pilots[i] = store.Pilot{ID: id, Name: "Pilot " + id}
	}
	return pilots, nil
}

func (f *fakeStore) FetchPilotChecks(ctx context.Context, pilotIDs []string) ([][]store.CertificationCheck, error) {
	f.mu.Lock()
	f.checkCalls = append(f.checkCalls, pilotIDs)
	f.mu.Unlock()

	checks := make([][]store.CertificationCheck, len(pilotIDs))
	for i, id := range pilotIDs {
		checks[i] = []store.CertificationCheck{{ID: "chk-" + id, PilotID: id, CheckType: "line-check"}}
	}
	return checks, nil
}

func (f *fakeStore) FetchComplianceRecords(ctx context.Context, pilotIDs []string) ([][]store.ComplianceRecord, error) {
	f.mu.Lock()
	f.recordCalls = append(f.recordCalls, pilotIDs)
	f.mu.Unlock()

	records := make([][]store.ComplianceRecord, len(pilotIDs))
	for i, id := range pilotIDs {
		records[i] = []store.ComplianceRecord{{ID: "rec-" + id, PilotID: id, Category: "medical"}}
	}
	return records, nil
}

func (f *fakeStore) FetchComplianceSummary(ctx context.Context) (store.ComplianceSummary, error) {
	f.mu.Lock()
	f.summaryCalls++
	f.mu.Unlock()
	return store.ComplianceSummary{TotalPilots: 10, CompliantPilots: 9}, nil
}

func (f *fakeStore) pilotCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pilotCalls)
}

func testConfig(windowMs int) *config.Config {
	return &config.Config{
		StoreURL:           "https://compliance.example.com",
		LogLevel:           "info",
		MaxConcurrent:      2,
		BatchWindow:        windowMs,
		SlowQueryThreshold: 1000,
		SampleWindow:       50,
		QueryRegistrySize:  128,
		TTL: &config.TTLConfig{
			Short:  30000,
			Medium: 300000,
			Long:   3600000,
			Static: 86400000,
		},
	}
}

func newTestClient(t *testing.T, fs *fakeStore, windowMs int) *Client {
	t.Helper()
	c, err := New(testConfig(windowMs), fs, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestPilot_CoalescesConcurrentLookups(t *testing.T) {
	fs := &fakeStore{}
	// Window generous enough that all three goroutines land inside it.
	c := newTestClient(t, fs, 200)

	type result struct {
		id    string
		pilot store.Pilot
		err   error
	}
	results := make(chan result, 3)
	for _, id := range []string{"p1", "p2", "p3"} {
		id := id
		go func() {
			p, err := c.Pilot(context.Background(), id)
			results <- result{id: id, pilot: p, err: err}
		}()
	}

	for i := 0; i < 3; i++ {
		r := <-results
		require.NoError(t, r.err)
		assert.Equal(t, r.id, r.pilot.ID)
		assert.Equal(t, "Pilot "+r.id, r.pilot.Name)
	}

	require.Equal(t, 1, fs.pilotCallCount(), "three lookups in one window must make one store call")
	assert.Len(t, fs.pilotCalls[0], 3)
}

func TestPilot_CacheHitSkipsStore(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	first, err := c.Pilot(context.Background(), "p1")
	require.NoError(t, err)

	second, err := c.Pilot(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fs.pilotCallCount(), "second lookup must be served from cache")
}

func TestPilot_FailureReachesEveryWaiter(t *testing.T) {
	fs := &fakeStore{failPilots: errors.New("store down")}
	c := newTestClient(t, fs, 100)

	errs := make(chan error, 3)
	for _, id := range []string{"p1", "p2", "p3"} {
		id := id
		go func() {
			_, err := c.Pilot(context.Background(), id)
			errs <- err
		}()
	}

	for i := 0; i < 3; i++ {
		err := <-errs
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store down")
	}

	stats := c.Stats()
	assert.Equal(t, 3, stats.ErrorQueries)
}

func TestInvalidateCategory_ForcesRefetch(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	_, err := c.Pilot(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 1, fs.pilotCallCount())

	c.InvalidateCategory(cache.CategoryPilot)

	_, err = c.Pilot(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, fs.pilotCallCount(), "invalidated entry must be refetched")
}

func TestInvalidateCategory_UnrelatedDataSurvives(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	_, err := c.PilotChecks(context.Background(), "p1")
	require.NoError(t, err)

	// Pilot changes do not map to certification-checks.
	c.InvalidateCategory(cache.CategoryPilot)

	_, err = c.PilotChecks(context.Background(), "p1")
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Len(t, fs.checkCalls, 1, "checks cache must survive a pilot invalidation")
}

func TestComplianceSummary_Cached(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	first, err := c.ComplianceSummary(context.Background())
	require.NoError(t, err)
	second, err := c.ComplianceSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 1, fs.summaryCalls)
}

func TestComplianceRecords_PerPilot(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	records, err := c.ComplianceRecords(context.Background(), "p7")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-p7", records[0].ID)
	assert.Equal(t, "p7", records[0].PilotID)
}

func TestStats_Snapshot(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	_, err := c.Pilot(context.Background(), "p1")
	require.NoError(t, err)
	_, err = c.Pilot(context.Background(), "p1") // cache hit
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, 1, stats.ActiveQueries)
	assert.Equal(t, 0, stats.LoadingQueries)
	assert.Equal(t, 0, stats.ErrorQueries)
	assert.Equal(t, 1, stats.MemoryCacheSize)
	assert.Greater(t, stats.CacheHitRatio, 0.0)
	assert.LessOrEqual(t, stats.CacheHitRatio, 1.0)
}

func TestPerfStats_TracksOperations(t *testing.T) {
	fs := &fakeStore{}
	c := newTestClient(t, fs, 10)

	_, err := c.Pilot(context.Background(), "p1")
	require.NoError(t, err)

	perfStats := c.PerfStats()
	require.Contains(t, perfStats, "pilot")
	assert.Equal(t, 1, perfStats["pilot"].Count)

	elapsed := time.Duration(0)
	assert.GreaterOrEqual(t, perfStats["pilot"].Max, elapsed)
}
