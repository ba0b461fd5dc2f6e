// Package perf times traced operations and keeps rolling statistics per name.
package perf

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stats is the derived view over one operation's rolling sample window
type Stats struct {
	Count     int
	Average   time.Duration
	Min       time.Duration
	Max       time.Duration
	SlowCount int
}

// stat holds the bounded FIFO of recent durations for one operation name.
// Created lazily on first observation, never removed. Once the slice reaches
// the window size it is reused as a ring with head marking the oldest sample,
// so steady-state recording never reallocates.
type stat struct {
	samples []time.Duration
	head    int
}

// Monitor records operation durations and flags slow ones as they happen.
// Slow-operation warnings are observability only and never affect control
// flow.
type Monitor struct {
	windowSize    int
	slowThreshold time.Duration
	stats         map[string]*stat
	logger        zerolog.Logger
	mu            sync.Mutex
}

// NewMonitor creates a Monitor keeping the last windowSize samples per name
// and warning on durations above slowThreshold
func NewMonitor(windowSize int, slowThreshold time.Duration, logger zerolog.Logger) *Monitor {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Monitor{
		windowSize:    windowSize,
		slowThreshold: slowThreshold,
		stats:         make(map[string]*stat),
		logger:        logger.With().Str("component", "perf").Logger(),
	}
}

// StartTimer begins timing one operation. Calling the returned function
// records a single duration sample for name.
func (m *Monitor) StartTimer(name string) func() {
	start := time.Now()
	return func() {
		m.Record(name, time.Since(start))
	}
}

// Record adds one duration sample for name, evicting the oldest sample once
// the window bound is exceeded
func (m *Monitor) Record(name string, d time.Duration) {
	m.mu.Lock()
	s := m.stats[name]
	if s == nil {
		s = &stat{samples: make([]time.Duration, 0, m.windowSize)}
		m.stats[name] = s
	}
	if len(s.samples) < m.windowSize {
		s.samples = append(s.samples, d)
	} else {
		s.samples[s.head] = d
		s.head = (s.head + 1) % m.windowSize
	}
	m.mu.Unlock()

	if d > m.slowThreshold {
		m.logger.Warn().
			Str("operation", name).
			Dur("duration", d).
			Dur("threshold", m.slowThreshold).
			Msg("slow operation")
	}
}

// Stats returns the derived statistics for one operation name
func (m *Monitor) Stats(name string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[name]
	if !ok {
		return Stats{}, false
	}
	return m.deriveLocked(s), true
}

// All returns derived statistics for every observed operation
func (m *Monitor) All() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.stats))
	for name, s := range m.stats {
		out[name] = m.deriveLocked(s)
	}
	return out
}

func (m *Monitor) deriveLocked(s *stat) Stats {
	derived := Stats{Count: len(s.samples)}
	if derived.Count == 0 {
		return derived
	}

	var total time.Duration
	derived.Min = s.samples[0]
	derived.Max = s.samples[0]
	for _, d := range s.samples {
		total += d
		if d < derived.Min {
			derived.Min = d
		}
		if d > derived.Max {
			derived.Max = d
		}
		if d > m.slowThreshold {
			derived.SlowCount++
		}
	}
	derived.Average = total / time.Duration(derived.Count)
	return derived
}
