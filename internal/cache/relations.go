package cache

import (
	"github.com/rs/zerolog"
)

// Entity categories recognized by the invalidation bus
const (
	CategoryPilot      = "pilot"
	CategoryCheck      = "check"
	CategoryCompliance = "compliance"
)

// relationships maps an entity category to the query identifiers whose cached
// results go stale when that category changes. Defined at construction, never
// mutated at runtime.
var relationships = map[string][]string{
	CategoryPilot: {
		"pilots",
		"pilot-compliance",
		"fleet-compliance-summary",
	},
	CategoryCheck: {
		"certification-checks",
		"check-types",
		"pilot-compliance",
		"fleet-compliance-summary",
	},
	CategoryCompliance: {
		"pilot-compliance",
		"compliance-records",
		"fleet-compliance-summary",
	},
}

// Invalidator is the downstream query layer notified when results for a query
// identifier go stale. The bus does not own that layer's state; it only
// signals staleness.
type Invalidator interface {
	InvalidateQueries(ids ...string)
}

// Bus translates category-level change signals into concrete cache-key
// invalidations plus staleness signals for the downstream query layer.
type Bus struct {
	cache       *Cache
	invalidator Invalidator
	logger      zerolog.Logger
}

// NewBus creates a Bus over the given cache. invalidator may be nil when no
// downstream query layer is attached.
func NewBus(c *Cache, invalidator Invalidator, logger zerolog.Logger) *Bus {
	return &Bus{
		cache:       c,
		invalidator: invalidator,
		logger:      logger.With().Str("component", "invalidation-bus").Logger(),
	}
}

// InvalidateCategory drops every cached key mapped from category and signals
// the downstream query layer. When id is supplied, the id-scoped query
// identifiers are signalled in addition to the category-wide ones.
// Invalidating an already-invalidated category is a no-op.
func (b *Bus) InvalidateCategory(category string, id ...string) {
	queryIDs, ok := relationships[category]
	if !ok {
		b.logger.Warn().Str("category", category).Msg("unknown invalidation category")
		return
	}

	removed := 0
	signals := make([]string, 0, len(queryIDs)*2)
	for _, qid := range queryIDs {
		removed += b.cache.InvalidatePrefix(qid)
		signals = append(signals, qid)
		for _, scoped := range id {
			signals = append(signals, qid+":"+scoped)
		}
	}

	if b.invalidator != nil {
		b.invalidator.InvalidateQueries(signals...)
	}

	b.logger.Debug().
		Str("category", category).
		Strs("queries", queryIDs).
		Int("removed", removed).
		Msg("category invalidated")
}

// QueryIDs returns the query identifiers mapped from a category
func QueryIDs(category string) []string {
	ids := relationships[category]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
