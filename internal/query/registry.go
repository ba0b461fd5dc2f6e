// Package query tracks the lifecycle state of dashboard queries.
//
// The registry is the downstream layer the invalidation bus signals: it does
// not hold result data (the cache does), only per-query state and staleness,
// which the monitoring widget reads as aggregate counts.
package query

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of one tracked query
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateError
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

type record struct {
	state     State
	stale     bool
	updatedAt time.Time
}

// Counts is an aggregate snapshot of tracked query states
type Counts struct {
	Total   int
	Active  int // loading or fresh successful queries
	Loading int
	Errors  int
}

// Registry tracks query states, bounded by an LRU so long-lived dashboards
// cannot grow it without limit
type Registry struct {
	queries *lru.Cache[string, *record]
	logger  zerolog.Logger
	mu      sync.Mutex
	now     func() time.Time
}

// NewRegistry creates a Registry tracking at most size queries
func NewRegistry(size int, logger zerolog.Logger) (*Registry, error) {
	queries, err := lru.New[string, *record](size)
	if err != nil {
		return nil, err
	}
	return &Registry{
		queries: queries,
		logger:  logger.With().Str("component", "query-registry").Logger(),
		now:     time.Now,
	}, nil
}

// MarkLoading records that a query started fetching
func (r *Registry) MarkLoading(key string) {
	r.set(key, StateLoading, false)
}

// MarkSuccess records a completed fetch and clears staleness
func (r *Registry) MarkSuccess(key string) {
	r.set(key, StateSuccess, false)
}

// MarkError records a failed fetch
func (r *Registry) MarkError(key string) {
	r.set(key, StateError, false)
}

func (r *Registry) set(key string, state State, stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.queries.Get(key); ok {
		rec.state = state
		rec.stale = stale
		rec.updatedAt = r.now()
		return
	}
	r.queries.Add(key, &record{state: state, stale: stale, updatedAt: r.now()})
}

// InvalidateQueries marks every tracked query whose key starts with one of
// the given identifiers as stale. Implements the invalidation bus contract;
// marking an already-stale query again is a no-op.
func (r *Registry) InvalidateQueries(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for _, key := range r.queries.Keys() {
		rec, ok := r.queries.Peek(key)
		if !ok || rec.stale {
			continue
		}
		for _, id := range ids {
			if strings.HasPrefix(key, id) {
				rec.stale = true
				marked++
				break
			}
		}
	}

	if marked > 0 {
		r.logger.Debug().Int("marked", marked).Strs("ids", ids).Msg("queries marked stale")
	}
}

// IsStale reports whether a tracked query has been invalidated
func (r *Registry) IsStale(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.queries.Peek(key)
	return ok && rec.stale
}

// StateOf returns the tracked state for a query key
func (r *Registry) StateOf(key string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.queries.Peek(key)
	if !ok {
		return StateIdle, false
	}
	return rec.state, true
}

// Snapshot returns aggregate counts over every tracked query
func (r *Registry) Snapshot() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := Counts{Total: r.queries.Len()}
	for _, key := range r.queries.Keys() {
		rec, ok := r.queries.Peek(key)
		if !ok {
			continue
		}
		switch rec.state {
		case StateLoading:
			counts.Loading++
			counts.Active++
		case StateSuccess:
			if !rec.stale {
				counts.Active++
			}
		case StateError:
			counts.Errors++
		}
	}
	return counts
}
